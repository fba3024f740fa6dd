// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"sort"
	"time"
)

// Snapshot is a point-in-time read of the active tree.
//
// Sections holds every active section ordered by (parent, order index, id).
// Content holds every item whose section is active, ordered by
// (section, order index, id).
type Snapshot struct {
	Sections []Section
	Content  []ContentItem
	TakenAt  time.Time

	children map[int64][]Section
	roots    []Section
	items    map[int64][]ContentItem
	byID     map[int64]*Section
}

// index builds the lookup maps on first use.
func (s *Snapshot) index() {
	if s.byID != nil {
		return
	}
	s.byID = make(map[int64]*Section, len(s.Sections))
	s.children = make(map[int64][]Section)
	s.items = make(map[int64][]ContentItem)
	s.roots = nil

	for i := range s.Sections {
		s.byID[s.Sections[i].ID] = &s.Sections[i]
	}
	for _, sec := range s.Sections {
		if sec.ParentID == nil {
			s.roots = append(s.roots, sec)
			continue
		}
		s.children[*sec.ParentID] = append(s.children[*sec.ParentID], sec)
	}
	for _, item := range s.Content {
		s.items[item.SectionID] = append(s.items[item.SectionID], item)
	}

	sortSections(s.roots)
	for id := range s.children {
		sortSections(s.children[id])
	}
	for id := range s.items {
		list := s.items[id]
		sort.SliceStable(list, func(i, j int) bool {
			if list[i].OrderIndex != list[j].OrderIndex {
				return list[i].OrderIndex < list[j].OrderIndex
			}
			return list[i].ID < list[j].ID
		})
	}
}

// Children returns the active children of parent in display order.
// A nil parent returns the root sections.
func (s *Snapshot) Children(parent *int64) []Section {
	s.index()
	if parent == nil {
		return s.roots
	}
	return s.children[*parent]
}

// ContentOf returns the items of a section in display order.
func (s *Snapshot) ContentOf(sectionID int64) []ContentItem {
	s.index()
	return s.items[sectionID]
}

// Section looks up an active section by id.
func (s *Snapshot) Section(id int64) (*Section, bool) {
	s.index()
	sec, ok := s.byID[id]
	return sec, ok
}

func sortSections(list []Section) {
	sort.SliceStable(list, func(i, j int) bool {
		if list[i].OrderIndex != list[j].OrderIndex {
			return list[i].OrderIndex < list[j].OrderIndex
		}
		return list[i].ID < list[j].ID
	})
}
