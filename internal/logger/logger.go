// Package logger builds the installer's zap logger and the named channels
// the workflows log through.
//
// Records below error level go to stdout and error records go to stderr, so
// a package manager capturing the streams separately sees failures where it
// expects them.
package logger

import (
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Supported formats.
const (
	FormatConsole = "console"
	FormatJSON    = "json"
)

// Options configures New. Zero values pick info level, console format and
// the process's stdout/stderr.
type Options struct {
	Level  string
	Format string
	Stdout zapcore.WriteSyncer
	Stderr zapcore.WriteSyncer
}

// New builds a logger that tees records to Stdout and Stderr by severity.
func New(opts Options) (*zap.Logger, error) {
	level, err := ParseLevel(opts.Level)
	if err != nil {
		return nil, err
	}

	encoder, err := newEncoder(opts.Format)
	if err != nil {
		return nil, err
	}

	stdout := opts.Stdout
	if stdout == nil {
		stdout = zapcore.Lock(os.Stdout)
	}
	stderr := opts.Stderr
	if stderr == nil {
		stderr = zapcore.Lock(os.Stderr)
	}

	low := zap.LevelEnablerFunc(func(l zapcore.Level) bool {
		return l >= level && l < zapcore.ErrorLevel
	})
	high := zap.LevelEnablerFunc(func(l zapcore.Level) bool {
		return l >= level && l >= zapcore.ErrorLevel
	})

	core := zapcore.NewTee(
		zapcore.NewCore(encoder, stdout, low),
		zapcore.NewCore(encoder.Clone(), stderr, high),
	)
	return zap.New(core), nil
}

func newEncoder(format string) (zapcore.Encoder, error) {
	switch strings.ToLower(format) {
	case "", FormatConsole:
		cfg := zap.NewDevelopmentEncoderConfig()
		cfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		cfg.EncodeTime = zapcore.ISO8601TimeEncoder
		cfg.CallerKey = ""
		return zapcore.NewConsoleEncoder(cfg), nil
	case FormatJSON:
		cfg := zap.NewProductionEncoderConfig()
		cfg.TimeKey = "timestamp"
		cfg.EncodeTime = zapcore.ISO8601TimeEncoder
		cfg.CallerKey = ""
		return zapcore.NewJSONEncoder(cfg), nil
	default:
		return nil, fmt.Errorf("invalid log format: %s", format)
	}
}

// ParseLevel converts a level name to a zapcore.Level. An empty name is
// info.
func ParseLevel(level string) (zapcore.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return zapcore.DebugLevel, nil
	case "", "info":
		return zapcore.InfoLevel, nil
	case "warn":
		return zapcore.WarnLevel, nil
	case "error":
		return zapcore.ErrorLevel, nil
	default:
		return zapcore.InfoLevel, fmt.Errorf("invalid log level: %s", level)
	}
}

// DefaultTruncateLength is the cut-off Truncate uses when max is not
// positive.
const DefaultTruncateLength = 50

// Truncate shortens s to max runes, marking the cut with " ...".
func Truncate(s string, max int) string {
	if max <= 0 {
		max = DefaultTruncateLength
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + " ..."
}
