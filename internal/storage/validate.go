// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"strings"
	"unicode/utf8"

	"github.com/jeranaias/fieldref/internal/model"
	"golang.org/x/text/unicode/norm"
)

// normalize puts text into NFC so that length limits count what the user
// sees rather than how the client happened to compose it.
func normalize(s string) string {
	return strings.TrimSpace(norm.NFC.String(s))
}

func (r *Repository) validTitle(title string) (string, error) {
	title = normalize(title)
	if title == "" {
		return "", invalid("title", "must not be empty")
	}
	if n := utf8.RuneCountInString(title); n > r.cfg.MaxTitleLength {
		return "", invalid("title", "must be at most %d characters (got %d)", r.cfg.MaxTitleLength, n)
	}
	return title, nil
}

func validIcon(icon string) (string, error) {
	icon = normalize(icon)
	if icon == "" {
		return model.DefaultIcon, nil
	}
	if utf8.RuneCountInString(icon) > 8 {
		return "", invalid("icon", "must be a short glyph (at most 8 characters)")
	}
	return icon, nil
}

// validContent normalizes and checks an item's kind-dependent fields.
func (r *Repository) validContent(item *model.ContentItem) error {
	if !item.Kind.Valid() {
		return invalid("content_type", "unknown kind %q (want text, image, video or document)", item.Kind)
	}
	item.Body = normalize(item.Body)
	item.MediaRef = strings.TrimSpace(item.MediaRef)
	item.ButtonLabel = normalize(item.ButtonLabel)

	if item.Kind == model.KindText && item.Body == "" {
		return invalid("text_content", "required for text content")
	}
	if item.Kind.IsMedia() && item.MediaRef == "" {
		return invalid("media_file_id", "required for %s content", item.Kind)
	}
	if n := utf8.RuneCountInString(item.ButtonLabel); n > r.cfg.MaxButtonLength {
		return invalid("button_text", "must be at most %d characters (got %d)", r.cfg.MaxButtonLength, n)
	}
	if item.OrderIndex < 0 {
		return invalid("order_index", "must not be negative")
	}
	return nil
}
