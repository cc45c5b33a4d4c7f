// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package logging builds the process-wide structured logger from
// [config.LogConfig].
//
// Records go to stderr unless a log file is configured, in which case
// they go to a size-rotated file. The "auto" format selects the text
// handler when stderr is a terminal and JSON otherwise, so interactive
// runs stay readable while supervised runs produce machine-parseable
// output.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"golang.org/x/term"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/bureau-foundation/fsense/lib/config"
)

// New creates a logger from cfg and installs it as the slog default so
// that library code using slog.Info etc. shares the handler. The
// returned closer releases the log file, if any, and is always non-nil.
func New(cfg config.LogConfig) (*slog.Logger, io.Closer, error) {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, nil, err
	}

	var (
		output io.Writer = os.Stderr
		closer io.Closer = nopCloser{}
		isTTY            = term.IsTerminal(int(os.Stderr.Fd()))
	)
	if cfg.File != "" {
		rotated := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
		}
		output, closer = rotated, rotated
		isTTY = false
	}

	handler, err := newHandler(output, cfg.Format, isTTY, level)
	if err != nil {
		closer.Close()
		return nil, nil, err
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger, closer, nil
}

// ParseLevel maps a configured level name to an slog level.
func ParseLevel(name string) (slog.Level, error) {
	switch strings.ToLower(name) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("unknown log level %q", name)
	}
}

func newHandler(w io.Writer, format string, isTTY bool, level slog.Level) (slog.Handler, error) {
	options := &slog.HandlerOptions{Level: level}
	switch format {
	case "json":
		return slog.NewJSONHandler(w, options), nil
	case "text":
		return slog.NewTextHandler(w, options), nil
	case "", "auto":
		if isTTY {
			return slog.NewTextHandler(w, options), nil
		}
		return slog.NewJSONHandler(w, options), nil
	default:
		return nil, fmt.Errorf("unknown log format %q", format)
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
