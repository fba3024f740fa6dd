// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// watchDebounce collapses the burst of events an editor or atomic rename produces.
const watchDebounce = 200 * time.Millisecond

// Watch reloads the config file at path whenever it changes and passes each
// successfully validated result to onChange. Invalid files are logged and
// skipped, so the caller keeps its previous configuration. Watching stops when
// ctx is done.
//
// The parent directory is watched rather than the file, because atomic saves
// replace the file and would drop a watch placed on it.
func Watch(ctx context.Context, path string, log zerolog.Logger, onChange func(*Config)) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to resolve config path: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		watcher.Close()
		return fmt.Errorf("failed to watch %s: %w", filepath.Dir(abs), err)
	}

	log = log.With().Str("component", "config").Str("path", abs).Logger()
	go watchLoop(ctx, watcher, abs, log, onChange)
	return nil
}

func watchLoop(ctx context.Context, watcher *fsnotify.Watcher, path string, log zerolog.Logger, onChange func(*Config)) {
	defer watcher.Close()

	// Stopped until the first relevant event arrives
	timer := time.NewTimer(time.Hour)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
				timer.Reset(watchDebounce)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			log.Warn().Err(err).Msg("config watcher error")

		case <-timer.C:
			cfg, err := Load(path)
			if err != nil {
				log.Warn().Err(err).Msg("config reload rejected")
				continue
			}
			log.Info().Msg("config reloaded")
			onChange(cfg)
		}
	}
}
