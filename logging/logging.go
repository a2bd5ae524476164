// Package logging configures the zerolog root logger for the device.
//
// Output is JSON by default (one line per event, machine-shippable);
// console format is for bench debugging. Components derive their own
// loggers from the root with a component field.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Config holds logging configuration.
type Config struct {
	// Level is the minimum level: trace, debug, info, warn, error.
	// Default: info.
	Level string

	// Format is "json" or "console". Default: json.
	Format string

	// Output defaults to os.Stderr.
	Output io.Writer
}

// New builds the root logger. An unknown level is an error rather than a
// silent fallback: a device logging at the wrong level is a device you
// cannot debug in the field.
func New(cfg Config) (zerolog.Logger, error) {
	if cfg.Level == "" {
		cfg.Level = "info"
	}
	if cfg.Format == "" {
		cfg.Format = "json"
	}
	if cfg.Output == nil {
		cfg.Output = os.Stderr
	}

	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil {
		return zerolog.Nop(), fmt.Errorf("logging: bad level %q: %w", cfg.Level, err)
	}

	out := cfg.Output
	if cfg.Format == "console" {
		out = zerolog.ConsoleWriter{Out: cfg.Output, TimeFormat: time.TimeOnly}
	}

	return zerolog.New(out).Level(level).With().Timestamp().Logger(), nil
}
