// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading and management for fieldref.
//
// # Key Types
//
//   - Config: Main configuration structure with all settings
//   - StorageConfig: Repository driver, DSN, limits and delete policy
//   - ExportConfig: Export directories, rate limits and rendering options
//   - ServerConfig: HTTP API address, admin token and timeouts
//   - LogConfig: Log level and destination
//
// # Configuration Precedence
//
// Configuration is loaded from (in order of precedence):
//   - Environment variables (FIELDREF_*), including those from ./.env
//   - ~/.fieldref/config.toml, or the file given with --config
//   - Built-in defaults
//
// # Usage
//
// Load configuration:
//
//	cfg, err := config.Load("")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// Reload on change while serving:
//
//	err := config.Watch(ctx, path, logger, func(c *config.Config) {
//	    pipeline.SetRendering(c.Export.SiteTitle, c.Export.AllowMarkup)
//	})
package config
