// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package logging builds the zerolog loggers used across fieldref.
//
// Every component receives a zerolog.Logger through its constructor and tags
// it with Component. Nothing logs through a package-level global.
//
// # Usage
//
//	lg, err := logging.New().FromPath(cfg.Log.File).Level(lvl).Make()
//	if err != nil {
//	    return err
//	}
//	defer lg.Close()
//	repo, err := storage.Open(storeCfg, logging.Component(lg.Logger, "storage"))
package logging
