// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage is the content repository for fieldref.
//
// It owns the persisted tree of sections and content items, sibling ordering,
// favorites and per-user statistics. Every other package reads through it and
// only it writes persisted state. Each mutation runs in its own transaction.
//
// # Key Types
//
//   - Repository: The content repository handle (open once, inject everywhere)
//   - Config: Driver, DSN, validation limits and delete policy
//   - DeletePolicy: What happens to child sections when a section is deleted
//   - ValidationError: A rejected field with the violated constraint
//
// # Backends
//
//   - sqlite (default): modernc.org/sqlite, pure Go, single file
//   - postgres: github.com/lib/pq
//
// # Usage
//
//	repo, err := storage.Open(storage.DefaultConfig(dbPath), logger)
//	if err != nil {
//	    return err
//	}
//	defer repo.Close()
//
//	root, err := repo.AddSection(ctx, model.NewSection{Title: "Basics", CreatedBy: adminID})
//	children, err := repo.ListChildren(ctx, &root.ID)
//
// # Errors
//
// Missing rows return errors wrapping ErrNotFound. Rejected input returns a
// *ValidationError wrapping ErrValidation. Test with errors.Is.
package storage
