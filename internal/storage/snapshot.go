// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/jeranaias/fieldref/internal/model"
	"golang.org/x/text/cases"
)

// MinSearchLength is the shortest query Search accepts, in characters.
const MinSearchLength = 2

// Snapshot reads every active section and every item whose section is active
// in one transaction, giving the export pipeline a consistent view.
func (r *Repository) Snapshot(ctx context.Context) (*model.Snapshot, error) {
	snap := &model.Snapshot{}

	err := r.withTx(ctx, func(c conn) error {
		rows, err := c.query(ctx,
			"SELECT "+sectionColumns+` FROM sections WHERE is_active = 1
			 ORDER BY CASE WHEN parent_id IS NULL THEN 0 ELSE 1 END, parent_id, order_index, id`)
		if err != nil {
			return fmt.Errorf("snapshot sections: %w", err)
		}
		if snap.Sections, err = collectSections(rows); err != nil {
			return fmt.Errorf("snapshot sections: %w", err)
		}

		rows, err = c.query(ctx,
			"SELECT "+prefixed("c", contentColumns)+`
			 FROM content c JOIN sections s ON s.id = c.section_id
			 WHERE s.is_active = 1
			 ORDER BY c.section_id, c.order_index, c.id`)
		if err != nil {
			return fmt.Errorf("snapshot content: %w", err)
		}
		if snap.Content, err = collectContent(rows); err != nil {
			return fmt.Errorf("snapshot content: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	snap.TakenAt = r.now().UTC()
	r.log.Debug().Int("sections", len(snap.Sections)).Int("content", len(snap.Content)).Msg("snapshot taken")
	return snap, nil
}

// Search returns active sections whose title or description contains query,
// compared with Unicode case folding.
func (r *Repository) Search(ctx context.Context, query string) ([]model.Section, error) {
	query = normalize(query)
	if utf8.RuneCountInString(query) < MinSearchLength {
		return nil, invalid("query", "must be at least %d characters", MinSearchLength)
	}

	rows, err := r.read().query(ctx,
		"SELECT "+sectionColumns+` FROM sections WHERE is_active = 1
		 ORDER BY CASE WHEN parent_id IS NULL THEN 0 ELSE 1 END, parent_id, order_index, id`)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	all, err := collectSections(rows)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}

	// SQL LOWER only folds ASCII, and most titles are not ASCII
	fold := cases.Fold()
	needle := fold.String(query)
	out := make([]model.Section, 0)
	for _, s := range all {
		if strings.Contains(fold.String(s.Title), needle) ||
			strings.Contains(fold.String(normalize(s.Description)), needle) {
			out = append(out, s)
		}
	}
	return out, nil
}
