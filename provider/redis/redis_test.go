package redis

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewRequiresClient(t *testing.T) {
	_, err := New(Config{})
	assert.ErrorIs(t, err, ErrNilClient)
}
