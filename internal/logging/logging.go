// Package logging provides structured logging for the coordination
// subsystem, grounded on infrastructure/logging in the r3e-network example
// (logrus wrapper with a service field and JSON/text formatter switch).
package logging

import (
	"io"
	"os"
	"time"

	"github.com/sirupsen/logrus"
)

// Logger wraps logrus.Logger with a fixed component field.
type Logger struct {
	*logrus.Logger
	component string
}

// Options configures a new Logger.
type Options struct {
	Level     string // "debug", "info", "warn", "error"
	JSON      bool
	Output    io.Writer // defaults to os.Stderr
	Component string
}

// New builds a Logger per Options.
func New(opts Options) *Logger {
	l := logrus.New()

	level, err := logrus.ParseLevel(opts.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	l.SetLevel(level)

	if opts.Output != nil {
		l.SetOutput(opts.Output)
	} else {
		l.SetOutput(os.Stderr)
	}

	if opts.JSON {
		l.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: time.RFC3339Nano,
			FieldMap: logrus.FieldMap{
				logrus.FieldKeyTime:  "timestamp",
				logrus.FieldKeyLevel: "level",
				logrus.FieldKeyMsg:   "message",
			},
		})
	} else {
		l.SetFormatter(&logrus.TextFormatter{
			TimestampFormat: time.RFC3339,
			FullTimestamp:   true,
		})
	}

	return &Logger{Logger: l, component: opts.Component}
}

// With returns an entry pre-populated with the component and any extra fields.
func (l *Logger) With(fields logrus.Fields) *logrus.Entry {
	if fields == nil {
		fields = logrus.Fields{}
	}
	fields["component"] = l.component
	return l.Logger.WithFields(fields)
}

// ForAgent returns an entry scoped to one agent ID, the common case for
// workflow-driver and daemon logging.
func (l *Logger) ForAgent(agentID string) *logrus.Entry {
	return l.With(logrus.Fields{"agent_id": agentID})
}
