// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package util provides file and string helpers shared by fieldref packages.
//
// # Key Functions
//
// File Operations:
//   - AtomicWriteFile: Crash-safe file writing with fsync
//   - AtomicCreate: Streaming variant; the target appears only if the writer succeeds
//   - CopyFile: Copy a file, optionally atomically
//
// String Utilities:
//   - TruncateRunes: UTF-8 safe string truncation with ellipsis
//   - TruncateWidth / PadWidth: Display-width aware helpers for terminal tables
//
// # Usage
//
//	// Write files atomically to prevent partial artifacts
//	err := util.AtomicWriteFile(path, data, 0644)
//
//	// Stream an archive; nothing exists at path unless fn returns nil
//	err := util.AtomicCreate(path, 0644, func(w io.Writer) error {
//	    return writeZip(w)
//	})
package util
