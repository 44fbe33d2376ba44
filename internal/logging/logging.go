// Package logging builds the root zerolog logger from configuration.
// Components derive their own sub-loggers from it with With().
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"

	"crypto-risk-engine/config"
)

// New builds a logger from the logging section of the config. Output is
// stdout by default, "stderr" selects stderr, and any other value is
// treated as a file path opened in append mode. Unknown levels fall
// back to info.
func New(cfg config.LoggingConfig) zerolog.Logger {
	out := pickOutput(cfg.Output)

	var logger zerolog.Logger
	if cfg.JSONFormat {
		logger = zerolog.New(out).With().Timestamp().Logger()
	} else {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: out}).With().Timestamp().Logger()
	}

	return logger.Level(ParseLevel(cfg.Level))
}

// ParseLevel maps a config level string to a zerolog level, defaulting
// to info for empty or unknown values.
func ParseLevel(s string) zerolog.Level {
	level, err := zerolog.ParseLevel(strings.ToLower(s))
	if err != nil || level == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return level
}

func pickOutput(output string) io.Writer {
	switch output {
	case "", "stdout":
		return os.Stdout
	case "stderr":
		return os.Stderr
	default:
		file, err := os.OpenFile(output, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			return os.Stdout
		}
		return file
	}
}
