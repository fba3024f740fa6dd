// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package transport

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/jeranaias/fieldref/internal/export"
)

// Caption is the text sent alongside a delivered pack.
func Caption(res *export.Result) string {
	var sb strings.Builder
	sb.WriteString("📦 Offline pack\n")
	sb.WriteString(fmt.Sprintf("Created: %s\n", res.CompletedAt.Format("2006-01-02 15:04")))
	sb.WriteString(fmt.Sprintf("Media files: %s\n", humanize.Comma(int64(res.MediaCount))))
	if len(res.Unavailable) > 0 {
		sb.WriteString(fmt.Sprintf("Missing media: %d\n", len(res.Unavailable)))
	}
	sb.WriteString(fmt.Sprintf("Size: %s\n", humanize.Bytes(uint64(res.ArchiveBytes))))
	sb.WriteString("Unpack the archive and open index.html in a browser.")
	return sb.String()
}
