// Package logger provides the process-wide diagnostic logger. All
// diagnostics go to stderr; stdout is reserved for the result report.
package logger

import (
	"io"
	"os"
	"sync"

	"github.com/sirupsen/logrus"
)

var (
	log *logrus.Logger
	mu  sync.Mutex
)

func init() {
	log = logrus.New()
	log.SetOutput(os.Stderr)
	log.SetLevel(logrus.InfoLevel)
	log.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "15:04:05.000",
	})
}

// SetDebug toggles debug-level output (--debug).
func SetDebug(enabled bool) {
	mu.Lock()
	defer mu.Unlock()
	if enabled {
		log.SetLevel(logrus.DebugLevel)
	} else {
		log.SetLevel(logrus.InfoLevel)
	}
}

// SetQuiet silences everything below error (--quiet).
func SetQuiet(quiet bool) {
	mu.Lock()
	defer mu.Unlock()
	if quiet {
		log.SetLevel(logrus.ErrorLevel)
	}
}

// SetOutput redirects log output (for tests).
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	log.SetOutput(w)
}

// WithField returns an entry with one structured field attached.
func WithField(key string, value interface{}) *logrus.Entry {
	return log.WithField(key, value)
}

// WithFields returns an entry with structured fields attached.
func WithFields(fields logrus.Fields) *logrus.Entry {
	return log.WithFields(fields)
}

// Debug logs a debug message.
func Debug(format string, v ...interface{}) {
	log.Debugf(format, v...)
}

// Info logs an info message.
func Info(format string, v ...interface{}) {
	log.Infof(format, v...)
}

// Warn logs a warning message.
func Warn(format string, v ...interface{}) {
	log.Warnf(format, v...)
}

// Error logs an error message.
func Error(format string, v ...interface{}) {
	log.Errorf(format, v...)
}
