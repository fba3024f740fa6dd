// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for the reference content tree.
package model

import "time"

// DefaultIcon is the glyph used for sections created without one.
const DefaultIcon = "📄"

// =============================================================================
// SECTION TYPE
// =============================================================================

// Section is a topic node. A nil ParentID marks a root section.
type Section struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Icon        string    `json:"icon"`
	ParentID    *int64    `json:"parent_id"`
	OrderIndex  int       `json:"order_index"`
	Active      bool      `json:"is_active"`
	CreatedBy   int64     `json:"created_by"`
	CreatedAt   time.Time `json:"created_at"`
}

// IsRoot reports whether the section has no parent.
func (s *Section) IsRoot() bool {
	return s.ParentID == nil
}

// HasParent reports whether the section's parent is id.
func (s *Section) HasParent(id *int64) bool {
	if s.ParentID == nil || id == nil {
		return s.ParentID == nil && id == nil
	}
	return *s.ParentID == *id
}

// DisplayIcon returns the section icon, falling back to DefaultIcon.
func (s *Section) DisplayIcon() string {
	if s.Icon == "" {
		return DefaultIcon
	}
	return s.Icon
}

// NewSection carries the fields needed to create a section.
type NewSection struct {
	Title       string
	Description string
	ParentID    *int64
	CreatedBy   int64
	Icon        string
}

// =============================================================================
// PARTIAL UPDATE
// =============================================================================

// SectionUpdate is a partial update. Nil fields are left unchanged.
//
// ParentID moves the section under another section; ToRoot moves it to the
// root level. Setting both is rejected by the repository.
type SectionUpdate struct {
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
	Icon        *string `json:"icon,omitempty"`
	ParentID    *int64  `json:"parent_id,omitempty"`
	ToRoot      bool    `json:"to_root,omitempty"`
	OrderIndex  *int    `json:"order_index,omitempty"`
	Active      *bool   `json:"is_active,omitempty"`
}

// IsEmpty reports whether the update changes nothing.
func (u SectionUpdate) IsEmpty() bool {
	return u.Title == nil &&
		u.Description == nil &&
		u.Icon == nil &&
		u.ParentID == nil &&
		!u.ToRoot &&
		u.OrderIndex == nil &&
		u.Active == nil
}

// MovesParent reports whether the update reassigns the parent.
func (u SectionUpdate) MovesParent() bool {
	return u.ParentID != nil || u.ToRoot
}
