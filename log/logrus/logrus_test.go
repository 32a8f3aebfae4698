package logrus

import (
	"errors"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unkn0wn-root/datacache"
)

func TestLoggerFieldsAndError(t *testing.T) {
	base, hook := test.NewNullLogger()
	base.SetLevel(logrus.DebugLevel)
	l := Logger{E: logrus.NewEntry(base)}

	cause := errors.New("boom")
	l.Warn("lock wait timed out", datacache.Fields{"key": "k", "lock": "key", "err": cause})
	l.Debug("quiet", nil)

	require.Len(t, hook.AllEntries(), 2)
	warn := hook.AllEntries()[0]
	assert.Equal(t, logrus.WarnLevel, warn.Level)
	assert.Equal(t, "k", warn.Data["key"])
	assert.Equal(t, "key", warn.Data["lock"])
	assert.Equal(t, cause, warn.Data[logrus.ErrorKey])
	assert.NotContains(t, warn.Data, "err")

	assert.Equal(t, logrus.DebugLevel, hook.LastEntry().Level)
}
