// Package osclog provides the structured logger shared by the online
// schema change engine packages. dbsafe's own CLI writes straight to
// os.Stderr with fmt.Fprintf; the engine runs unattended for minutes to
// hours per migration and needs level-filterable, greppable output, so
// this wraps logrus instead.
package osclog

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// New returns a logrus.Logger configured the way dbsafe-osc expects:
// text formatter, full timestamps, writing to stderr so stdout stays
// free for renderer output. verbose bumps the level to Debug, which is
// where every engine-issued SQL statement is logged.
func New(verbose bool) *logrus.Logger {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	l.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})
	if verbose {
		l.SetLevel(logrus.DebugLevel)
	} else {
		l.SetLevel(logrus.InfoLevel)
	}
	return l
}

// Discard returns a logger that drops everything, used as the default
// when a caller constructs an Invoker without supplying one.
func Discard() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}
