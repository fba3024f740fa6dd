// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/text/unicode/norm"

	"github.com/jeranaias/fieldref/internal/model"
	"github.com/jeranaias/fieldref/internal/util"
)

// mediaDir is the bundle subdirectory holding copied assets.
const mediaDir = "media"

// MediaResolver maps a content item's media reference to a readable local file.
// A reference that does not resolve to a file returns an error wrapping
// ErrMediaUnavailable; any other error aborts the export.
type MediaResolver interface {
	Resolve(ref string) (string, error)
}

// DirResolver resolves references as slash-separated paths under Root.
type DirResolver struct {
	Root string
}

// Resolve implements MediaResolver. Absolute references and references that
// climb out of Root are treated as unavailable.
func (r DirResolver) Resolve(ref string) (string, error) {
	if strings.TrimSpace(ref) == "" {
		return "", fmt.Errorf("%w: empty reference", ErrMediaUnavailable)
	}

	clean := path.Clean(strings.ReplaceAll(ref, "\\", "/"))
	if path.IsAbs(clean) || filepath.IsAbs(ref) || clean == ".." || strings.HasPrefix(clean, "../") {
		return "", fmt.Errorf("%w: reference %q is outside the media root", ErrMediaUnavailable, ref)
	}

	full := filepath.Join(r.Root, filepath.FromSlash(clean))
	info, err := os.Stat(full)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return "", fmt.Errorf("%w: %s", ErrMediaUnavailable, ref)
	case err != nil:
		return "", fmt.Errorf("%w: stat %s: %v", ErrIO, ref, err)
	case !info.Mode().IsRegular():
		return "", fmt.Errorf("%w: %s is not a regular file", ErrMediaUnavailable, ref)
	}
	return full, nil
}

// mediaCopy is the outcome of the media stage.
type mediaCopy struct {
	// paths maps content id to the bundle-relative path of its copied asset
	paths map[int64]string

	// unavailable lists media items whose asset could not be found, in snapshot order
	unavailable []int64
}

// copyMedia copies every resolvable media asset of snap into <workDir>/media.
// Missing assets are logged and recorded; they never fail the export.
func copyMedia(ctx context.Context, log zerolog.Logger, resolver MediaResolver, snap *model.Snapshot, workDir string) (*mediaCopy, error) {
	out := &mediaCopy{paths: make(map[int64]string)}

	for _, item := range snap.Content {
		if !item.Kind.IsMedia() {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		src, err := resolver.Resolve(item.MediaRef)
		if errors.Is(err, ErrMediaUnavailable) {
			log.Warn().Err(err).Int64("content", item.ID).Msg("media unavailable, continuing without it")
			out.unavailable = append(out.unavailable, item.ID)
			continue
		}
		if err != nil {
			return nil, err
		}

		name := fmt.Sprintf("%d_%s", item.ID, mediaFileName(item.MediaRef))
		dst := filepath.Join(workDir, mediaDir, name)
		if _, err := util.CopyFile(src, dst, false); err != nil {
			return nil, fmt.Errorf("%w: copy media %d: %v", ErrIO, item.ID, err)
		}
		out.paths[item.ID] = mediaDir + "/" + name
	}

	return out, nil
}

// mediaFileName derives a portable file name from a media reference.
func mediaFileName(ref string) string {
	base := path.Base(strings.ReplaceAll(ref, "\\", "/"))
	if base == "." || base == "/" || base == ".." {
		base = ""
	}
	return sanitizeFilename(norm.NFC.String(base))
}

// sanitizeFilename removes or replaces characters that are invalid in filenames.
func sanitizeFilename(s string) string {
	maxLen := 80
	runes := []rune(s)
	if len(runes) > maxLen {
		s = string(runes[len(runes)-maxLen:])
	}

	// Replace problematic characters (Windows and Unix) plus URL delimiters
	replacer := map[rune]rune{
		'/':  '-',
		'\\': '-',
		':':  '-',
		'*':  '-',
		'?':  '-',
		'"':  '-',
		'<':  '-',
		'>':  '-',
		'|':  '-',
		'#':  '-',
		'%':  '-',
		' ':  '_',
		'\t': '_',
		'\n': '_',
		'\r': '_',
	}

	result := []rune{}
	for _, r := range s {
		if replacement, found := replacer[r]; found {
			result = append(result, replacement)
		} else if r < 32 || r == 127 {
			result = append(result, '-')
		} else {
			result = append(result, r)
		}
	}

	if len(result) == 0 {
		return "asset"
	}
	return string(result)
}
