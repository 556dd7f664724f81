// Package logging configures the process-wide logrus logger.
package logging

import (
	"os"

	"github.com/sirupsen/logrus"
)

// Entry is a logging call site with fields attached, re-exported so
// callers need not import logrus directly.
type Entry = logrus.Entry

// Log is the shared logger used by every package in this module.
var Log = logrus.New()

func init() {
	Log.SetOutput(os.Stderr)
	Log.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})
	Log.SetLevel(logrus.InfoLevel)
}

// SetVerbose switches the shared logger to debug level.
func SetVerbose(v bool) {
	if v {
		Log.SetLevel(logrus.DebugLevel)
	} else {
		Log.SetLevel(logrus.InfoLevel)
	}
}

// For convenience, component packages tag their entries with WithField("component", name).
func For(component string) *logrus.Entry {
	return Log.WithField("component", component)
}
