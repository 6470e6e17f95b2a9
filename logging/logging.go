// Package logging builds the zap logger shared by the server and the program.
package logging

import (
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Options selects the logger's level, output format and base fields.
type Options struct {
	// Level is "debug", "info", "warn" or "error". Unknown or empty means info.
	Level string
	// Format is "json" (default) or "console".
	Format string
	// Program tags every line with the program identity.
	Program string
}

// New builds a logger writing to stdout. Ledger events are never sampled:
// every funding and release line is kept.
func New(opts Options) (*zap.Logger, error) {
	var (
		encoding string
		encoder  zapcore.EncoderConfig
	)
	switch strings.ToLower(strings.TrimSpace(opts.Format)) {
	case "", "json":
		encoding, encoder = "json", jsonEncoder()
	case "console":
		encoding, encoder = "console", consoleEncoder()
	default:
		return nil, fmt.Errorf("logging: unknown format %q", opts.Format)
	}

	cfg := zap.Config{
		Level:            zap.NewAtomicLevelAt(ParseLevel(opts.Level)),
		Encoding:         encoding,
		EncoderConfig:    encoder,
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
	}
	if opts.Program != "" {
		cfg.InitialFields = map[string]interface{}{"program": opts.Program}
	}
	return cfg.Build()
}

// ParseLevel maps a level name to a zap level, falling back to info.
func ParseLevel(s string) zapcore.Level {
	var lvl zapcore.Level
	if err := lvl.Set(strings.ToLower(strings.TrimSpace(s))); err != nil {
		return zapcore.InfoLevel
	}
	return lvl
}

func jsonEncoder() zapcore.EncoderConfig {
	enc := zap.NewProductionEncoderConfig()
	enc.TimeKey = "ts"
	enc.StacktraceKey = "stack"
	enc.EncodeTime = utcTime
	enc.EncodeDuration = zapcore.StringDurationEncoder
	return enc
}

func consoleEncoder() zapcore.EncoderConfig {
	enc := zap.NewDevelopmentEncoderConfig()
	enc.EncodeLevel = zapcore.CapitalColorLevelEncoder
	enc.EncodeTime = utcTime
	return enc
}

func utcTime(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
	enc.AppendString(t.UTC().Format(time.RFC3339Nano))
}
