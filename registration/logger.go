package registration

import (
	"io"

	"github.com/sirupsen/logrus"
)

var logger = logrus.StandardLogger()

// SetLogger replaces the package logger. Passing nil mutes it.
func SetLogger(l *logrus.Logger) {
	if l == nil {
		muted := logrus.New()
		muted.SetOutput(io.Discard)
		logger = muted
		return
	}
	logger = l
}
