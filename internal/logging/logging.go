// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package logging wraps zap with a key/value API. Values under keys that look
// like credentials are redacted before they reach the encoder.
package logging

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// Logger is a sugared zap logger with credential redaction.
type Logger struct {
	sugar *zap.SugaredLogger
}

// New builds a logger. mode "prod" selects JSON output at info level;
// anything else selects the console development encoder at debug level.
func New(mode string) (*Logger, error) {
	var cfg zap.Config
	switch strings.ToLower(mode) {
	case "prod", "production":
		cfg = zap.NewProductionConfig()
	default:
		cfg = zap.NewDevelopmentConfig()
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	z, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("building logger: %w", err)
	}
	return &Logger{sugar: z.Sugar()}, nil
}

// FromZap wraps an existing zap logger (used by tests with zaptest/observer).
func FromZap(z *zap.Logger) *Logger {
	return &Logger{sugar: z.Sugar()}
}

// Nop returns a logger that discards everything.
func Nop() *Logger {
	return &Logger{sugar: zap.NewNop().Sugar()}
}

// Sync flushes buffered entries.
func (l *Logger) Sync() {
	_ = l.sugar.Sync()
}

func (l *Logger) Debug(msg string, kv ...any) { l.sugar.Debugw(msg, sanitize(kv)...) }
func (l *Logger) Info(msg string, kv ...any)  { l.sugar.Infow(msg, sanitize(kv)...) }
func (l *Logger) Warn(msg string, kv ...any)  { l.sugar.Warnw(msg, sanitize(kv)...) }
func (l *Logger) Error(msg string, kv ...any) { l.sugar.Errorw(msg, sanitize(kv)...) }

// With returns a child logger carrying kv on every entry.
func (l *Logger) With(kv ...any) *Logger {
	return &Logger{sugar: l.sugar.With(sanitize(kv)...)}
}

func sanitize(kv []any) []any {
	if len(kv) == 0 {
		return kv
	}
	out := make([]any, 0, len(kv))
	for i := 0; i < len(kv); i += 2 {
		if i == len(kv)-1 {
			out = append(out, kv[i])
			break
		}
		key := fmt.Sprint(kv[i])
		if redacted(strings.ToLower(key)) {
			out = append(out, key, "[REDACTED]")
			continue
		}
		out = append(out, key, kv[i+1])
	}
	return out
}

func redacted(key string) bool {
	for _, marker := range []string{"api_key", "apikey", "token", "secret", "password", "authorization"} {
		if strings.Contains(key, marker) {
			return true
		}
	}
	return false
}
