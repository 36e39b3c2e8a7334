// Package logger builds the JSON slog loggers shared by every service.
package logger

import (
	"io"
	"log/slog"
	"os"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Options controls where and how verbosely logs are written.
type Options struct {
	Service    string
	Level      slog.Level
	File       string // empty means stdout
	MaxSizeMB  int
	MaxBackups int
}

// New creates a JSON slog.Logger tagged with the service name. When File is
// set, output goes to a size-rotated file instead of stdout.
func New(opts Options) *slog.Logger {
	return slog.New(slog.NewJSONHandler(writer(opts), &slog.HandlerOptions{Level: opts.Level})).
		With("service", opts.Service)
}

func writer(opts Options) io.Writer {
	if opts.File == "" {
		return os.Stdout
	}
	return &lumberjack.Logger{
		Filename:   opts.File,
		MaxSize:    opts.MaxSizeMB,
		MaxBackups: opts.MaxBackups,
		Compress:   true,
	}
}

// Discard returns a logger that drops everything. Handy in tests.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
