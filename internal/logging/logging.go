package logging

import (
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

const production = "production"

// New builds the process logger. Production environments log JSON, anything
// else gets the text formatter with full timestamps.
func New(level, environment string) *logrus.Logger {
	return newWithOutput(os.Stderr, level, environment)
}

// FromEnv builds the logger from LOG_LEVEL and GO_APP_ENV. Load any .env
// file before calling it.
func FromEnv() *logrus.Logger {
	return New(os.Getenv("LOG_LEVEL"), os.Getenv("GO_APP_ENV"))
}

// Discard returns a logger that drops everything. Used by tests.
func Discard() *logrus.Logger {
	return newWithOutput(io.Discard, "panic", "test")
}

func newWithOutput(out io.Writer, level, environment string) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(out)
	if strings.EqualFold(strings.TrimSpace(environment), production) {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	parsed, err := logrus.ParseLevel(strings.TrimSpace(level))
	if err != nil {
		parsed = logrus.InfoLevel
	}
	logger.SetLevel(parsed)
	return logger
}
