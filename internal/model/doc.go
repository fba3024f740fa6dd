// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for the reference content tree.
//
// This package defines the core domain types shared by the repository, the
// offline export pipeline and the outer surfaces (CLI and HTTP API).
//
// # Key Types
//
//   - Section: A topic node in the content tree, root or nested
//   - ContentItem: A leaf unit of material attached to one section
//   - ContentKind: Content kind enumeration (text, image, video, document)
//   - SectionUpdate / ContentUpdate: Typed partial updates
//   - UserStat: Per-user usage counters and offline flag
//   - Snapshot: Point-in-time read of the active tree
//
// # Usage
//
// Build a partial update that only renames a section:
//
//	title := "Bleeding control"
//	upd := model.SectionUpdate{Title: &title}
//	err := repo.UpdateSection(ctx, id, upd)
//
// Walk a snapshot by parent:
//
//	children := snap.Children(nil) // root sections
//	items := snap.ContentOf(children[0].ID)
package model
