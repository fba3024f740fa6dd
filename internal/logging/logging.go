// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package logging builds the zerolog loggers used across fieldref.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const permission = 0664

// Build collects logger settings before Make opens any files.
type Build struct {
	writer  io.Writer
	path    string
	console bool
	level   zerolog.Level
}

// Logger is a built logger together with the file it owns, if any.
type Logger struct {
	zerolog.Logger
	file *os.File
}

// New starts a logger build writing to stderr at info level.
func New() *Build {
	return &Build{writer: os.Stderr, level: zerolog.InfoLevel}
}

// FromPath appends JSON lines to the file at path.
func (b *Build) FromPath(path string) *Build {
	b.path = path
	return b
}

// FromWriter writes to w instead of stderr.
func (b *Build) FromWriter(w io.Writer) *Build {
	b.writer = w
	return b
}

// Console switches to zerolog's human-readable console format.
// Ignored when writing to a file.
func (b *Build) Console(on bool) *Build {
	b.console = on
	return b
}

// Level sets the minimum level.
func (b *Build) Level(l zerolog.Level) *Build {
	b.level = l
	return b
}

// Make opens the destination and returns the logger.
func (b *Build) Make() (*Logger, error) {
	out := &Logger{}
	w := b.writer
	if w == nil {
		w = os.Stderr
	}

	if b.path != "" {
		f, err := os.OpenFile(b.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, permission)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		out.file = f
		w = zerolog.SyncWriter(f)
	} else if b.console {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen}
	}

	out.Logger = zerolog.New(w).Level(b.level).With().Timestamp().Logger()
	return out, nil
}

// Close releases the log file, if one was opened.
func (l *Logger) Close() error {
	if l.file == nil {
		return nil
	}
	return l.file.Close()
}

// ParseLevel parses a level name. Empty input means info.
func ParseLevel(s string) (zerolog.Level, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return zerolog.InfoLevel, nil
	}
	if s == "warning" {
		s = "warn"
	}
	lvl, err := zerolog.ParseLevel(s)
	if err != nil {
		return zerolog.NoLevel, fmt.Errorf("invalid log level %q", s)
	}
	return lvl, nil
}

// Component returns a child logger tagged with a component name.
func Component(l zerolog.Logger, name string) zerolog.Logger {
	return l.With().Str("component", name).Logger()
}

// Nop returns a disabled logger, mainly for tests.
func Nop() zerolog.Logger {
	return zerolog.Nop()
}
