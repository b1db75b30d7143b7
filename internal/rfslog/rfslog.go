// Package rfslog provides the one shared logger construction used by both
// the client and the server: a single leveled logger rather than ad hoc
// log.Printf calls scattered through the stubs and dispatcher.
package rfslog

import (
	"os"

	"github.com/sirupsen/logrus"
)

// New builds a text-formatted logger writing to stderr at Info level.
// Set the RFS_DEBUG environment variable to anything non-empty to get
// Debug-level output (one line per server request, tagged with the
// connection id and naming the operation).
func New() *logrus.Logger {
	l := logrus.New()
	l.Out = os.Stderr
	l.Formatter = &logrus.TextFormatter{FullTimestamp: true}
	l.Level = logrus.InfoLevel
	if os.Getenv("RFS_DEBUG") != "" {
		l.Level = logrus.DebugLevel
	}
	return l
}
