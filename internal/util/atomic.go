// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package util provides file and string helpers shared by fieldref packages.
package util

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// RELIABILITY: Atomic write with fsync prevents partial artifacts
//
// AtomicWriteFile writes data to a file atomically:
// 1. Write to a temporary file in the same directory
// 2. Sync the data to disk using fsync
// 3. Close the file
// 4. Atomically rename the temp file to the target path
//
// On any failure the temp file is removed and the target is untouched.
func AtomicWriteFile(path string, data []byte, perm os.FileMode) error {
	return AtomicCreate(path, perm, func(w io.Writer) error {
		_, err := io.Copy(w, bytes.NewReader(data))
		return err
	})
}

// AtomicCreate streams content produced by fn into path atomically.
// The target path only comes into existence after fn returns nil and the
// data has been synced; otherwise the temporary file is discarded.
func AtomicCreate(path string, perm os.FileMode, fn func(w io.Writer) error) error {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to get absolute path: %w", err)
	}

	dir := filepath.Dir(absPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create parent directory: %w", err)
	}

	// Same directory keeps the rename on one filesystem
	f, err := os.CreateTemp(dir, ".tmp-")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tempPath := f.Name()

	success := false
	defer func() {
		if !success {
			f.Close()
			os.Remove(tempPath)
		}
	}()

	if err := fn(f); err != nil {
		return fmt.Errorf("failed to write data: %w", err)
	}

	if err := f.Sync(); err != nil {
		return fmt.Errorf("failed to sync data to disk: %w", err)
	}

	// Close before rename - required on Windows
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := os.Chmod(tempPath, perm); err != nil {
		return fmt.Errorf("failed to set file permissions: %w", err)
	}

	if err := os.Rename(tempPath, absPath); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	success = true
	return nil
}

// CopyFile copies src to dst and returns the number of bytes copied.
// When atomic is true dst is written through AtomicCreate.
func CopyFile(src, dst string, atomic bool) (int64, error) {
	in, err := os.Open(src)
	if err != nil {
		return 0, err
	}
	defer in.Close()

	var n int64
	copyTo := func(w io.Writer) error {
		n, err = io.Copy(w, in)
		return err
	}

	if atomic {
		if err := AtomicCreate(dst, 0644, copyTo); err != nil {
			return 0, err
		}
		return n, nil
	}

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return 0, err
	}
	if err := copyTo(out); err != nil {
		out.Close()
		return 0, fmt.Errorf("copy %s: %w", filepath.Base(src), err)
	}
	if err := out.Close(); err != nil {
		return 0, err
	}
	return n, nil
}
