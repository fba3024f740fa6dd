// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"archive/zip"
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"

	"golang.org/x/crypto/blake2b"

	"github.com/jeranaias/fieldref/internal/util"
)

// archiveInfo describes a finished archive.
type archiveInfo struct {
	size     int64
	checksum string
}

// countingWriter counts bytes on their way to w.
type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}

// bundleEntries lists srcDir relative to itself, slash-separated, in lexical
// order. Directories carry a trailing slash.
func bundleEntries(srcDir string) ([]string, error) {
	var entries []string
	err := filepath.WalkDir(srcDir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if p == srcDir {
			return nil
		}
		rel, err := filepath.Rel(srcDir, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if d.IsDir() {
			rel += "/"
		}
		entries = append(entries, rel)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(entries)
	return entries, nil
}

// writeArchive zips srcDir into dst. The archive is built in a temporary file
// and renamed into place only after it is complete and synced, so dst either
// holds a whole archive or does not exist. Every entry carries modTime.
func writeArchive(ctx context.Context, srcDir, dst string, modTime time.Time) (*archiveInfo, error) {
	entries, err := bundleEntries(srcDir)
	if err != nil {
		return nil, fmt.Errorf("%w: list bundle: %v", ErrIO, err)
	}

	hash, err := blake2b.New256(nil)
	if err != nil {
		return nil, fmt.Errorf("create checksum: %w", err)
	}

	var size int64
	err = util.AtomicCreate(dst, 0644, func(w io.Writer) error {
		cw := &countingWriter{w: io.MultiWriter(w, hash)}
		zw := zip.NewWriter(cw)

		for _, name := range entries {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := addEntry(zw, srcDir, name, modTime); err != nil {
				return err
			}
		}

		if err := zw.Close(); err != nil {
			return fmt.Errorf("close archive: %w", err)
		}
		size = cw.n
		return nil
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("%w: write archive: %v", ErrIO, err)
	}

	return &archiveInfo{size: size, checksum: hex.EncodeToString(hash.Sum(nil))}, nil
}

func addEntry(zw *zip.Writer, srcDir, name string, modTime time.Time) error {
	hdr := &zip.FileHeader{Name: name, Modified: modTime}

	if name[len(name)-1] == '/' {
		hdr.SetMode(fs.ModeDir | 0755)
		_, err := zw.CreateHeader(hdr)
		return err
	}

	hdr.Method = zip.Deflate
	hdr.SetMode(0644)
	w, err := zw.CreateHeader(hdr)
	if err != nil {
		return err
	}

	f, err := os.Open(filepath.Join(srcDir, filepath.FromSlash(name)))
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err := io.Copy(w, f); err != nil {
		return fmt.Errorf("add %s: %w", name, err)
	}
	return nil
}
