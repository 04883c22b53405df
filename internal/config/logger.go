package config

import (
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// NewLogger builds a logrus logger writing to w (stderr when nil).
// Unknown levels fall back to info.
func NewLogger(level, format string, w io.Writer) *logrus.Logger {
	logger := logrus.New()
	if w == nil {
		w = os.Stderr
	}
	logger.SetOutput(w)

	lvl, err := logrus.ParseLevel(strings.ToLower(level))
	if err != nil {
		lvl = logrus.InfoLevel
	}
	logger.SetLevel(lvl)

	if strings.EqualFold(format, "text") {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}
	return logger
}
