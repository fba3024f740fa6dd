// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package transport

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/jeranaias/fieldref/internal/util"
)

// Outbox copies delivered packs into Dir, one file per requester. A newer
// pack replaces the previous one.
type Outbox struct {
	Dir string
	Log zerolog.Logger
}

// PathFor returns where the pack of requesterID is kept.
func (o *Outbox) PathFor(requesterID int64) string {
	return filepath.Join(o.Dir, fmt.Sprintf("%d_offline_pack.zip", requesterID))
}

// Deliver implements export.Deliverer.
func (o *Outbox) Deliver(ctx context.Context, requesterID int64, archivePath string, mediaCount int) error {
	if o.Dir == "" {
		return errors.New("outbox directory not configured")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	dst := o.PathFor(requesterID)
	n, err := util.CopyFile(archivePath, dst, true)
	if err != nil {
		return fmt.Errorf("copy pack to outbox: %w", err)
	}

	o.Log.Info().
		Int64("requester", requesterID).
		Str("path", dst).
		Int64("bytes", n).
		Int("media", mediaCount).
		Msg("pack placed in outbox")
	return nil
}
