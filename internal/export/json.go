// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jeranaias/fieldref/internal/model"
)

// =============================================================================
// MIRROR FILES
// =============================================================================

const (
	sectionsFile = "sections.json"
	contentFile  = "content.json"
)

// contentRecord is one entry of content.json: the stored item plus the owning
// section's title and, for media kinds, where the asset lives in the bundle.
type contentRecord struct {
	model.ContentItem
	SectionTitle   string `json:"section_title"`
	MediaPath      string `json:"media_path,omitempty"`
	MediaAvailable *bool  `json:"media_available,omitempty"`
}

// contentRecords denormalizes the snapshot's content for the mirror.
func contentRecords(snap *model.Snapshot, media *mediaCopy) []contentRecord {
	records := make([]contentRecord, 0, len(snap.Content))
	for _, item := range snap.Content {
		rec := contentRecord{ContentItem: item}
		if sec, ok := snap.Section(item.SectionID); ok {
			rec.SectionTitle = sec.Title
		}
		if item.Kind.IsMedia() {
			p, ok := media.paths[item.ID]
			rec.MediaPath = p
			rec.MediaAvailable = &ok
		}
		records = append(records, rec)
	}
	return records
}

// writeMirror writes sections.json and content.json into dir. Output depends
// only on the snapshot contents, so identical state yields identical files.
func writeMirror(dir string, snap *model.Snapshot, media *mediaCopy) error {
	sections := snap.Sections
	if sections == nil {
		sections = []model.Section{}
	}

	if err := writeJSON(filepath.Join(dir, sectionsFile), sections); err != nil {
		return err
	}
	return writeJSON(filepath.Join(dir, contentFile), contentRecords(snap, media))
}

func writeJSON(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", filepath.Base(path), err)
	}
	data = append(data, '\n')
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("%w: write %s: %v", ErrIO, filepath.Base(path), err)
	}
	return nil
}
