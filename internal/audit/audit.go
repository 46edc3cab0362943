// Package audit writes the sync and write-back trail as JSON lines.
package audit

import (
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

type Logger struct {
	*logrus.Logger
	file *os.File
}

// New opens (appending) the audit file at path. An empty path logs to stderr.
func New(path, level string) (*Logger, error) {
	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})

	if level != "" {
		lvl, err := logrus.ParseLevel(level)
		if err != nil {
			return nil, fmt.Errorf("failed to parse audit level: %w", err)
		}
		log.SetLevel(lvl)
	}

	if path == "" {
		log.SetOutput(os.Stderr)
		return &Logger{Logger: log}, nil
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit log %s: %w", path, err)
	}
	log.SetOutput(f)
	return &Logger{Logger: log, file: f}, nil
}

// NewWriter logs to w, mostly for tests.
func NewWriter(w io.Writer) *Logger {
	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})
	log.SetOutput(w)
	return &Logger{Logger: log}
}

// For scopes the trail to one component.
func (l *Logger) For(component string) logrus.FieldLogger {
	return l.WithField("component", component)
}

func (l *Logger) Close() error {
	if l.file != nil {
		return l.file.Close()
	}
	return nil
}
