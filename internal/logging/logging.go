// Package logging configures the process-wide logrus logger and the rotating
// sink that captures the supervised process output.
package logging

import (
	"context"
	"io"
	"os"
	"path/filepath"

	log "github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/chazuruo/simtray/internal/config"
)

type ctxKey string

const checkIDKey ctxKey = "check_id"

// WithCheckID returns a context carrying the correlation id of an update check.
// Entries logged with log.WithContext(ctx) get a check_id field.
func WithCheckID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, checkIDKey, id)
}

// CheckID returns the correlation id stored by WithCheckID.
func CheckID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(checkIDKey).(string)
	return id, ok
}

// Init parses the level and points the global logger at a lumberjack file,
// or stderr when cfg.File is "console". The returned closer flushes the file.
func Init(cfg config.LogConfig) (io.Closer, error) {
	level, err := log.ParseLevel(cfg.Level)
	if err != nil {
		log.Errorf("failed parsing log-level %s: %s", cfg.Level, err)
		return nil, err
	}

	var closer io.Closer = nopCloser{}
	if cfg.File != "" && cfg.File != "console" {
		if err := os.MkdirAll(filepath.Dir(cfg.File), 0755); err != nil {
			return nil, err
		}
		lj := NewRotatingWriter(cfg.File, cfg)
		log.SetOutput(lj)
		closer = lj
	} else {
		log.SetOutput(os.Stderr)
	}

	log.SetFormatter(&CustomFormatter{
		TextFormatter: log.TextFormatter{FullTimestamp: true},
	})
	log.SetLevel(level)
	return closer, nil
}

// NewRotatingWriter returns a lumberjack logger for path using the rotation
// limits from cfg.
func NewRotatingWriter(path string, cfg config.LogConfig) *lumberjack.Logger {
	return &lumberjack.Logger{
		// Log file absolute path, os agnostic
		Filename:   filepath.ToSlash(path),
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays,
		Compress:   cfg.Compress,
	}
}

// CustomFormatter adds context-carried fields before text formatting.
type CustomFormatter struct {
	log.TextFormatter
}

func (f *CustomFormatter) Format(entry *log.Entry) ([]byte, error) {
	if entry.Context != nil {
		if id, ok := CheckID(entry.Context); ok {
			entry.Data[string(checkIDKey)] = id
		}
	}
	return f.TextFormatter.Format(entry)
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
