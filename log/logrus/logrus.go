// Package logrus adapts a *logrus.Entry to datacache.Logger.
package logrus

import (
	"github.com/sirupsen/logrus"

	"github.com/unkn0wn-root/datacache"
)

type Logger struct{ E *logrus.Entry }

var _ datacache.Logger = Logger{}

func (l Logger) Debug(msg string, f datacache.Fields) { l.with(f).Debug(msg) }
func (l Logger) Info(msg string, f datacache.Fields)  { l.with(f).Info(msg) }
func (l Logger) Warn(msg string, f datacache.Fields)  { l.with(f).Warn(msg) }
func (l Logger) Error(msg string, f datacache.Fields) { l.with(f).Error(msg) }

// with moves an error under "err" to logrus' own error key.
func (l Logger) with(f datacache.Fields) *logrus.Entry {
	if len(f) == 0 {
		return l.E
	}
	lf := make(logrus.Fields, len(f))
	e := l.E
	for k, v := range f {
		if err, ok := v.(error); ok && k == "err" {
			e = e.WithError(err)
			continue
		}
		lf[k] = v
	}
	return e.WithFields(lf)
}
