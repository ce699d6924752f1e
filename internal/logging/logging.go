// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package logging provides the process-wide structured logger. It wraps
// charmbracelet/log so callers use leveled key-value logging without
// depending on the backend directly.
package logging

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	charm "github.com/charmbracelet/log"
)

// Config controls logger construction.
type Config struct {
	Level  string // debug, info, warn, error
	Format string // "text" or "json"
	File   string // optional log file; empty means stderr only
}

// DefaultConfig returns the configuration used when none is supplied.
func DefaultConfig() Config {
	return Config{Level: "info", Format: "text"}
}

// Logger is the structured logger handed to every component.
type Logger struct {
	l *charm.Logger
}

// New builds a Logger from cfg. An unwritable log file falls back to
// stderr rather than failing startup.
func New(cfg Config) *Logger {
	var out io.Writer = os.Stderr
	if cfg.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.File), 0o755); err == nil {
			if f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644); err == nil {
				out = io.MultiWriter(os.Stderr, f)
			}
		}
	}

	l := charm.NewWithOptions(out, charm.Options{
		ReportTimestamp: true,
		TimeFormat:      time.RFC3339,
		Level:           parseLevel(cfg.Level),
	})
	if strings.EqualFold(cfg.Format, "json") {
		l.SetFormatter(charm.JSONFormatter)
	}
	return &Logger{l: l}
}

func parseLevel(s string) charm.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return charm.DebugLevel
	case "warn", "warning":
		return charm.WarnLevel
	case "error":
		return charm.ErrorLevel
	default:
		return charm.InfoLevel
	}
}

// With returns a child logger with extra key-value context attached to
// every record.
func (lg *Logger) With(kv ...any) *Logger {
	return &Logger{l: lg.l.With(kv...)}
}

func (lg *Logger) Debug(msg string, kv ...any) { lg.l.Debug(msg, kv...) }
func (lg *Logger) Info(msg string, kv ...any)  { lg.l.Info(msg, kv...) }
func (lg *Logger) Warn(msg string, kv ...any)  { lg.l.Warn(msg, kv...) }
func (lg *Logger) Error(msg string, kv ...any) { lg.l.Error(msg, kv...) }

// Nop returns a logger that discards everything. Used by tests.
func Nop() *Logger {
	l := charm.NewWithOptions(io.Discard, charm.Options{})
	return &Logger{l: l}
}
