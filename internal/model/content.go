// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"fmt"
	"strings"
	"time"
)

// =============================================================================
// CONTENT KIND
// =============================================================================

// ContentKind identifies how a content item is rendered.
type ContentKind string

const (
	// KindText is an inline text body.
	KindText ContentKind = "text"

	// KindImage references an image file.
	KindImage ContentKind = "image"

	// KindVideo references a video file.
	KindVideo ContentKind = "video"

	// KindDocument references an arbitrary document file.
	KindDocument ContentKind = "document"
)

// String returns the string representation of the kind.
func (k ContentKind) String() string {
	return string(k)
}

// Valid reports whether k is a known kind.
func (k ContentKind) Valid() bool {
	switch k {
	case KindText, KindImage, KindVideo, KindDocument:
		return true
	}
	return false
}

// IsMedia reports whether items of this kind carry a media reference.
func (k ContentKind) IsMedia() bool {
	return k == KindImage || k == KindVideo || k == KindDocument
}

// ParseContentKind parses a kind name, case-insensitively.
func ParseContentKind(s string) (ContentKind, error) {
	k := ContentKind(strings.ToLower(strings.TrimSpace(s)))
	if !k.Valid() {
		return "", fmt.Errorf("unknown content kind %q (want text, image, video or document)", s)
	}
	return k, nil
}

// =============================================================================
// CONTENT ITEM
// =============================================================================

// ContentItem is a leaf unit of material attached to exactly one section.
// Body is meaningful for text items, MediaRef for media items.
type ContentItem struct {
	ID          int64       `json:"id"`
	SectionID   int64       `json:"section_id"`
	Kind        ContentKind `json:"content_type"`
	Body        string      `json:"text_content"`
	MediaRef    string      `json:"media_file_id"`
	ButtonLabel string      `json:"button_text"`
	OrderIndex  int         `json:"order_index"`
	CreatedBy   int64       `json:"created_by"`
	CreatedAt   time.Time   `json:"created_at"`
}

// NewContent carries the fields needed to create a content item.
type NewContent struct {
	SectionID   int64
	Kind        ContentKind
	Body        string
	MediaRef    string
	ButtonLabel string
	CreatedBy   int64
}

// ContentUpdate is a partial update. Nil fields are left unchanged.
type ContentUpdate struct {
	SectionID   *int64       `json:"section_id,omitempty"`
	Kind        *ContentKind `json:"content_type,omitempty"`
	Body        *string      `json:"text_content,omitempty"`
	MediaRef    *string      `json:"media_file_id,omitempty"`
	ButtonLabel *string      `json:"button_text,omitempty"`
	OrderIndex  *int         `json:"order_index,omitempty"`
}

// IsEmpty reports whether the update changes nothing.
func (u ContentUpdate) IsEmpty() bool {
	return u.SectionID == nil &&
		u.Kind == nil &&
		u.Body == nil &&
		u.MediaRef == nil &&
		u.ButtonLabel == nil &&
		u.OrderIndex == nil
}

// Apply returns a copy of item with the update's fields applied.
func (u ContentUpdate) Apply(item ContentItem) ContentItem {
	if u.SectionID != nil {
		item.SectionID = *u.SectionID
	}
	if u.Kind != nil {
		item.Kind = *u.Kind
	}
	if u.Body != nil {
		item.Body = *u.Body
	}
	if u.MediaRef != nil {
		item.MediaRef = *u.MediaRef
	}
	if u.ButtonLabel != nil {
		item.ButtonLabel = *u.ButtonLabel
	}
	if u.OrderIndex != nil {
		item.OrderIndex = *u.OrderIndex
	}
	return item
}
