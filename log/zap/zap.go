// Package zap adapts a *zap.Logger to datacache.Logger.
package zap

import (
	"maps"
	"slices"

	"go.uber.org/zap"

	"github.com/unkn0wn-root/datacache"
)

type Logger struct{ L *zap.Logger }

var _ datacache.Logger = Logger{}

func (z Logger) Debug(msg string, f datacache.Fields) { z.L.Debug(msg, fields(f)...) }
func (z Logger) Info(msg string, f datacache.Fields)  { z.L.Info(msg, fields(f)...) }
func (z Logger) Warn(msg string, f datacache.Fields)  { z.L.Warn(msg, fields(f)...) }
func (z Logger) Error(msg string, f datacache.Fields) { z.L.Error(msg, fields(f)...) }

// fields emits keys in sorted order; an error under "err" becomes zap.Error.
func fields(f datacache.Fields) []zap.Field {
	if len(f) == 0 {
		return nil
	}
	out := make([]zap.Field, 0, len(f))
	for _, k := range slices.Sorted(maps.Keys(f)) {
		v := f[k]
		if err, ok := v.(error); ok && k == "err" {
			out = append(out, zap.Error(err))
			continue
		}
		out = append(out, zap.Any(k, v))
	}
	return out
}
