package config

import (
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// LogConfig controls the verbosity of the process-wide logger.
type LogConfig struct {
	Level string `yaml:"level"`
}

// DefaultLogConfig leaves the level empty, which keeps the logger in
// whatever state its environment-driven init chose.
func DefaultLogConfig() *LogConfig {
	return &LogConfig{Level: ""}
}

// Apply enables logging at the configured level. An empty level is a no-op
// so environment-driven setups keep working; "off" silences the logger
// entirely.
func (l *LogConfig) Apply() {
	if l == nil || l.Level == "" {
		return
	}
	if strings.EqualFold(l.Level, "off") {
		log.SetOutput(io.Discard)
		log.SetLevel(logrus.PanicLevel)
		return
	}
	log.SetOutput(os.Stdout)
	switch strings.ToLower(l.Level) {
	case "debug":
		log.SetLevel(logrus.DebugLevel)
	case "warn":
		log.SetLevel(logrus.WarnLevel)
	case "error":
		log.SetLevel(logrus.ErrorLevel)
	default:
		log.SetLevel(logrus.DebugLevel)
	}
}
