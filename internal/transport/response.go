// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package transport

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
)

// MediaCountHeader carries the number of media files in a streamed pack.
const MediaCountHeader = "X-Media-Count"

// Response streams a pack as the body of an HTTP response. Headers are only
// written once the archive is open, so a failure before that point leaves W
// free for an error response.
type Response struct {
	W http.ResponseWriter

	// Filename is the download name. Default: offline_pack.zip
	Filename string

	written bool
}

// Written reports whether the response headers were sent.
func (r *Response) Written() bool {
	return r.written
}

// Deliver implements export.Deliverer.
func (r *Response) Deliver(ctx context.Context, requesterID int64, archivePath string, mediaCount int) error {
	f, err := os.Open(archivePath)
	if err != nil {
		return fmt.Errorf("open pack: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat pack: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	name := r.Filename
	if name == "" {
		name = "offline_pack.zip"
	}

	h := r.W.Header()
	h.Set("Content-Type", "application/zip")
	h.Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	h.Set("Content-Length", strconv.FormatInt(info.Size(), 10))
	h.Set(MediaCountHeader, strconv.Itoa(mediaCount))
	r.W.WriteHeader(http.StatusOK)
	r.written = true

	if _, err := io.Copy(r.W, f); err != nil {
		return fmt.Errorf("stream pack: %w", err)
	}
	return nil
}
