// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jeranaias/fieldref/internal/model"
)

// ToggleFavorite adds the pair if absent and removes it if present.
// The section must exist.
func (r *Repository) ToggleFavorite(ctx context.Context, userID, sectionID int64) (model.ToggleResult, error) {
	var result model.ToggleResult

	err := r.withTx(ctx, func(c conn) error {
		if _, err := getSection(ctx, c, sectionID); err != nil {
			return err
		}

		var one int
		err := c.queryRow(ctx,
			"SELECT 1 FROM favorites WHERE user_id = ? AND section_id = ?", userID, sectionID).Scan(&one)
		switch {
		case err == nil:
			if _, err := c.exec(ctx,
				"DELETE FROM favorites WHERE user_id = ? AND section_id = ?", userID, sectionID); err != nil {
				return fmt.Errorf("remove favorite: %w", err)
			}
			result = model.FavoriteRemoved
		case errors.Is(err, sql.ErrNoRows):
			if _, err := c.exec(ctx,
				"INSERT INTO favorites (user_id, section_id, added_at) VALUES (?, ?, ?)",
				userID, sectionID, r.nowNanos()); err != nil {
				return fmt.Errorf("add favorite: %w", err)
			}
			result = model.FavoriteAdded
		default:
			return fmt.Errorf("lookup favorite: %w", err)
		}
		return nil
	})
	if err != nil {
		return "", err
	}

	r.log.Debug().Int64("user", userID).Int64("section", sectionID).Str("result", string(result)).Msg("favorite toggled")
	return result, nil
}

// ListFavorites returns a user's favorited active sections, most recent first.
func (r *Repository) ListFavorites(ctx context.Context, userID int64) ([]model.Section, error) {
	rows, err := r.read().query(ctx,
		"SELECT "+prefixed("s", sectionColumns)+`
		 FROM favorites f JOIN sections s ON s.id = f.section_id
		 WHERE f.user_id = ? AND s.is_active = 1
		 ORDER BY f.added_at DESC, s.id DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list favorites: %w", err)
	}
	return collectSections(rows)
}
