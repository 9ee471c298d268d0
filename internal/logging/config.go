// Package logging centralizes zerolog configuration for the daemon
// and its tests.
package logging

import (
	"io"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	EnvLogLevel     = "RAX25KB_LOG_LEVEL"
	EnvLogTimestamp = "RAX25KB_LOG_TIMESTAMP"
	EnvLogNoColor   = "RAX25KB_LOG_NOCOLOR"
)

type Profile int

const (
	ProfileRuntime Profile = iota
	ProfileTest
)

// Options select the log sinks. Console and file output can be
// combined or disabled independently.
type Options struct {
	Level     zerolog.Level
	Timestamp bool
	NoColor   bool
	Console   bool
	// LogFile appends to the named file when non-empty.
	LogFile string
}

var configureOnce sync.Once

func ConfigureRuntime(opts Options) error {
	var err error
	configureOnce.Do(func() {
		applyEnvOverrides(&opts)
		err = configure(opts)
	})
	return err
}

func ConfigureTests() {
	configureOnce.Do(func() {
		opts := Options{Level: zerolog.DebugLevel, Console: true}
		applyEnvOverrides(&opts)
		_ = configure(opts)
	})
}

func DefaultOptions(profile Profile) Options {
	switch profile {
	case ProfileTest:
		return Options{Level: zerolog.DebugLevel, Console: true}
	default:
		return Options{Level: zerolog.InfoLevel, Timestamp: true, Console: true}
	}
}

func configure(opts Options) error {
	var sinks []io.Writer
	if opts.Console {
		sinks = append(sinks, zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
			NoColor:    opts.NoColor,
		})
	}
	if opts.LogFile != "" {
		f, err := os.OpenFile(opts.LogFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return err
		}
		sinks = append(sinks, f)
	}

	var out io.Writer = io.Discard
	switch len(sinks) {
	case 1:
		out = sinks[0]
	default:
		if len(sinks) > 1 {
			out = zerolog.MultiLevelWriter(sinks...)
		}
	}

	logger := zerolog.New(out).Level(opts.Level).With().Str("app", "rax25kb").Logger()
	if opts.Timestamp {
		logger = logger.With().Timestamp().Logger()
	}
	log.Logger = logger
	zerolog.SetGlobalLevel(opts.Level)
	return nil
}

func applyEnvOverrides(opts *Options) {
	if lvl, ok := parseLevel(os.Getenv(EnvLogLevel)); ok {
		opts.Level = lvl
	}
	if v, ok := parseBool(os.Getenv(EnvLogTimestamp)); ok {
		opts.Timestamp = v
	}
	if v, ok := parseBool(os.Getenv(EnvLogNoColor)); ok {
		opts.NoColor = v
	}
}

// ParseLevel maps configuration spellings onto zerolog levels.
func ParseLevel(raw string) (zerolog.Level, bool) {
	return parseLevel(raw)
}

func parseLevel(raw string) (zerolog.Level, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "":
		return zerolog.InfoLevel, false
	case "trace":
		return zerolog.TraceLevel, true
	case "debug":
		return zerolog.DebugLevel, true
	case "info", "notice":
		return zerolog.InfoLevel, true
	case "warn", "warning":
		return zerolog.WarnLevel, true
	case "error":
		return zerolog.ErrorLevel, true
	case "disabled", "disable", "off", "none":
		return zerolog.Disabled, true
	default:
		return zerolog.InfoLevel, false
	}
}

func parseBool(raw string) (bool, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return false, false
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, false
	}
	return v, true
}
