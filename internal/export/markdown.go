// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"fmt"
	"strings"

	"github.com/jeranaias/fieldref/internal/model"
)

// =============================================================================
// MARKDOWN OUTLINE
// =============================================================================

const readmeFile = "README.md"

// renderOutline returns a plain Markdown outline of snap for readers without a
// browser. Like the static view it carries no export-time data.
func renderOutline(title string, snap *model.Snapshot, media *mediaCopy) []byte {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("# %s\n\n", escapeMarkdown(title)))
	sb.WriteString("Open `index.html` in a browser for the full offline view.\n\n")
	sb.WriteString(fmt.Sprintf("- **Sections**: %d\n", len(snap.Sections)))
	sb.WriteString(fmt.Sprintf("- **Items**: %d\n", len(snap.Content)))
	sb.WriteString(fmt.Sprintf("- **Media files**: %d\n\n", len(media.paths)))
	sb.WriteString("---\n\n")

	for _, sec := range snap.Children(nil) {
		writeOutlineSection(&sb, snap, media, sec, 0)
	}
	return []byte(sb.String())
}

func writeOutlineSection(sb *strings.Builder, snap *model.Snapshot, media *mediaCopy, sec model.Section, depth int) {
	pad := strings.Repeat("  ", depth)
	sb.WriteString(fmt.Sprintf("%s- **%s**", pad, escapeMarkdown(sec.DisplayIcon()+" "+sec.Title)))
	if sec.Description != "" {
		sb.WriteString(" ")
		sb.WriteString(escapeMarkdown(oneLine(sec.Description)))
	}
	sb.WriteString("\n")

	for _, item := range snap.ContentOf(sec.ID) {
		sb.WriteString(pad + "  - ")
		sb.WriteString(formatOutlineItem(item, media))
		sb.WriteString("\n")
	}
	for _, child := range snap.Children(&sec.ID) {
		writeOutlineSection(sb, snap, media, child, depth+1)
	}
}

// formatOutlineItem formats one content item as a single list entry.
func formatOutlineItem(item model.ContentItem, media *mediaCopy) string {
	label := item.ButtonLabel
	if item.Kind == model.KindText {
		text := oneLine(item.Body)
		if label != "" {
			return fmt.Sprintf("%s: %s", escapeMarkdown(label), escapeMarkdown(text))
		}
		return escapeMarkdown(text)
	}

	if label == "" {
		label = altText(item)
	}
	rel, ok := media.paths[item.ID]
	if !ok {
		return fmt.Sprintf("%s (media unavailable)", escapeMarkdown(label))
	}
	return fmt.Sprintf("[%s](%s)", escapeMarkdown(label), mediaURL(rel))
}

// oneLine collapses whitespace runs, newlines included, to single spaces.
func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// =============================================================================
// ESCAPING HELPERS
// =============================================================================

// escapeMarkdown escapes special Markdown characters in plain text.
func escapeMarkdown(s string) string {
	s = strings.ReplaceAll(s, "\\", "\\\\")
	s = strings.ReplaceAll(s, "#", "\\#")
	s = strings.ReplaceAll(s, "*", "\\*")
	s = strings.ReplaceAll(s, "_", "\\_")
	s = strings.ReplaceAll(s, "[", "\\[")
	s = strings.ReplaceAll(s, "]", "\\]")
	s = strings.ReplaceAll(s, "`", "\\`")
	return s
}
