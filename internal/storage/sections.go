// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jeranaias/fieldref/internal/model"
)

const sectionColumns = "id, title, description, icon, parent_id, order_index, is_active, created_by, created_at"

// prefixed returns the column list qualified with a table alias.
func prefixed(alias, columns string) string {
	parts := strings.Split(columns, ", ")
	for i, p := range parts {
		parts[i] = alias + "." + p
	}
	return strings.Join(parts, ", ")
}

func scanSection(row rowScanner) (model.Section, error) {
	var (
		s       model.Section
		parent  sql.NullInt64
		created int64
	)
	err := row.Scan(&s.ID, &s.Title, &s.Description, &s.Icon, &parent,
		&s.OrderIndex, &s.Active, &s.CreatedBy, &created)
	if err != nil {
		return s, err
	}
	s.ParentID = idPtr(parent)
	s.CreatedAt = fromNanos(created)
	return s, nil
}

func collectSections(rows *sql.Rows) ([]model.Section, error) {
	defer rows.Close()
	out := make([]model.Section, 0)
	for rows.Next() {
		s, err := scanSection(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// =============================================================================
// READS
// =============================================================================

// ListChildren returns the active children of parentID ordered by order
// index. A nil parentID lists the root sections.
func (r *Repository) ListChildren(ctx context.Context, parentID *int64) ([]model.Section, error) {
	return listChildren(ctx, r.read(), parentID, true)
}

func listChildren(ctx context.Context, c conn, parentID *int64, activeOnly bool) ([]model.Section, error) {
	var (
		where []string
		args  []interface{}
	)
	if parentID == nil {
		where = append(where, "parent_id IS NULL")
	} else {
		where = append(where, "parent_id = ?")
		args = append(args, *parentID)
	}
	if activeOnly {
		where = append(where, "is_active = 1")
	}

	rows, err := c.query(ctx,
		"SELECT "+sectionColumns+" FROM sections WHERE "+strings.Join(where, " AND ")+
			" ORDER BY order_index, id", args...)
	if err != nil {
		return nil, fmt.Errorf("list sections: %w", err)
	}
	return collectSections(rows)
}

// GetSection returns a section by id, active or not.
func (r *Repository) GetSection(ctx context.Context, id int64) (*model.Section, error) {
	return getSection(ctx, r.read(), id)
}

func getSection(ctx context.Context, c conn, id int64) (*model.Section, error) {
	s, err := scanSection(c.queryRow(ctx, "SELECT "+sectionColumns+" FROM sections WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("section", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get section %d: %w", id, err)
	}
	return &s, nil
}

// nextSectionOrder returns one more than the largest sibling order index, or 0.
func nextSectionOrder(ctx context.Context, c conn, parentID *int64) (int, error) {
	var (
		next int
		err  error
	)
	if parentID == nil {
		err = c.queryRow(ctx,
			"SELECT COALESCE(MAX(order_index), -1) + 1 FROM sections WHERE parent_id IS NULL").Scan(&next)
	} else {
		err = c.queryRow(ctx,
			"SELECT COALESCE(MAX(order_index), -1) + 1 FROM sections WHERE parent_id = ?", *parentID).Scan(&next)
	}
	if err != nil {
		return 0, fmt.Errorf("next order index: %w", err)
	}
	return next, nil
}

// =============================================================================
// WRITES
// =============================================================================

// AddSection creates a section as the last child of in.ParentID.
func (r *Repository) AddSection(ctx context.Context, in model.NewSection) (*model.Section, error) {
	title, err := r.validTitle(in.Title)
	if err != nil {
		return nil, err
	}
	icon, err := validIcon(in.Icon)
	if err != nil {
		return nil, err
	}

	s := model.Section{
		Title:       title,
		Description: normalize(in.Description),
		Icon:        icon,
		ParentID:    in.ParentID,
		Active:      true,
		CreatedBy:   in.CreatedBy,
	}

	err = r.withTx(ctx, func(c conn) error {
		if s.ParentID != nil {
			if _, err := getSection(ctx, c, *s.ParentID); err != nil {
				return fmt.Errorf("parent: %w", err)
			}
		}
		order, err := nextSectionOrder(ctx, c, s.ParentID)
		if err != nil {
			return err
		}
		s.OrderIndex = order

		created := r.nowNanos()
		s.CreatedAt = fromNanos(created)
		return c.queryRow(ctx,
			`INSERT INTO sections (title, description, icon, parent_id, order_index, is_active, created_by, created_at)
			 VALUES (?, ?, ?, ?, ?, 1, ?, ?) RETURNING id`,
			s.Title, s.Description, s.Icon, nullableID(s.ParentID), s.OrderIndex, s.CreatedBy, created,
		).Scan(&s.ID)
	})
	if err != nil {
		return nil, err
	}

	r.log.Info().Int64("section", s.ID).Int("order", s.OrderIndex).Msg("section added")
	return &s, nil
}

// UpdateSection applies the supplied fields of upd. An empty update on an
// existing section succeeds without writing.
func (r *Repository) UpdateSection(ctx context.Context, id int64, upd model.SectionUpdate) error {
	if upd.ParentID != nil && upd.ToRoot {
		return invalid("parent_id", "cannot set a parent and move to root at once")
	}

	return r.withTx(ctx, func(c conn) error {
		cur, err := getSection(ctx, c, id)
		if err != nil {
			return err
		}
		if upd.IsEmpty() {
			return nil
		}

		next := *cur
		if upd.Title != nil {
			if next.Title, err = r.validTitle(*upd.Title); err != nil {
				return err
			}
		}
		if upd.Description != nil {
			next.Description = normalize(*upd.Description)
		}
		if upd.Icon != nil {
			if next.Icon, err = validIcon(*upd.Icon); err != nil {
				return err
			}
		}
		if upd.Active != nil {
			next.Active = *upd.Active
		}

		if upd.MovesParent() {
			next.ParentID = nil
			if upd.ParentID != nil {
				if err := r.checkReparent(ctx, c, id, *upd.ParentID); err != nil {
					return err
				}
				next.ParentID = upd.ParentID
			}
			if !cur.HasParent(next.ParentID) && upd.OrderIndex == nil {
				if next.OrderIndex, err = nextSectionOrder(ctx, c, next.ParentID); err != nil {
					return err
				}
			}
		}

		if upd.OrderIndex != nil {
			if err := checkSiblingOrder(ctx, c, id, next.ParentID, *upd.OrderIndex); err != nil {
				return err
			}
			next.OrderIndex = *upd.OrderIndex
		}

		_, err = c.exec(ctx,
			`UPDATE sections SET title = ?, description = ?, icon = ?, parent_id = ?, order_index = ?, is_active = ?
			 WHERE id = ?`,
			next.Title, next.Description, next.Icon, nullableID(next.ParentID), next.OrderIndex,
			boolInt(next.Active), id)
		if err != nil {
			return fmt.Errorf("update section %d: %w", id, err)
		}

		r.log.Info().Int64("section", id).Msg("section updated")
		return nil
	})
}

// checkReparent verifies that parentID exists and is not id or one of its
// descendants, walking upward from the proposed parent.
func (r *Repository) checkReparent(ctx context.Context, c conn, id, parentID int64) error {
	if parentID == id {
		return invalid("parent_id", "a section cannot be its own parent")
	}

	visited := make(map[int64]bool)
	cursor := &parentID
	for cursor != nil {
		if *cursor == id {
			return invalid("parent_id", "section %d is a descendant of section %d; moving would create a cycle", parentID, id)
		}
		if visited[*cursor] {
			// Existing data already contains a loop; refuse to make it worse
			return invalid("parent_id", "section %d sits on a parent cycle", *cursor)
		}
		visited[*cursor] = true

		var parent sql.NullInt64
		err := c.queryRow(ctx, "SELECT parent_id FROM sections WHERE id = ?", *cursor).Scan(&parent)
		if errors.Is(err, sql.ErrNoRows) {
			if *cursor == parentID {
				return fmt.Errorf("parent: %w", notFound("section", parentID))
			}
			// Dangling ancestor reference: the walk ends here
			return nil
		}
		if err != nil {
			return fmt.Errorf("walk ancestors: %w", err)
		}
		cursor = idPtr(parent)
	}
	return nil
}

// checkSiblingOrder rejects an order index already held by another sibling.
func checkSiblingOrder(ctx context.Context, c conn, id int64, parentID *int64, order int) error {
	if order < 0 {
		return invalid("order_index", "must not be negative")
	}

	var (
		other int64
		err   error
	)
	if parentID == nil {
		err = c.queryRow(ctx,
			"SELECT id FROM sections WHERE parent_id IS NULL AND order_index = ? AND id <> ? LIMIT 1",
			order, id).Scan(&other)
	} else {
		err = c.queryRow(ctx,
			"SELECT id FROM sections WHERE parent_id = ? AND order_index = ? AND id <> ? LIMIT 1",
			*parentID, order, id).Scan(&other)
	}
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("check order index: %w", err)
	}
	return invalid("order_index", "%d is already used by section %d", order, other)
}

// DeleteSection removes a section and its content items. Child sections are
// handled according to the configured DeletePolicy.
func (r *Repository) DeleteSection(ctx context.Context, id int64) error {
	var removed, moved int

	err := r.withTx(ctx, func(c conn) error {
		sec, err := getSection(ctx, c, id)
		if err != nil {
			return err
		}

		doomed := []int64{id}
		switch r.cfg.DeletePolicy {
		case DeleteCascade:
			if doomed, err = subtree(ctx, c, id); err != nil {
				return err
			}
		default:
			children, err := listChildren(ctx, c, &id, false)
			if err != nil {
				return err
			}
			base, err := nextSectionOrder(ctx, c, sec.ParentID)
			if err != nil {
				return err
			}
			for i, child := range children {
				if _, err := c.exec(ctx, "UPDATE sections SET parent_id = ?, order_index = ? WHERE id = ?",
					nullableID(sec.ParentID), base+i, child.ID); err != nil {
					return fmt.Errorf("reparent section %d: %w", child.ID, err)
				}
			}
			moved = len(children)
		}

		// Deepest first; content before its section
		for i := len(doomed) - 1; i >= 0; i-- {
			if err := deleteOne(ctx, c, doomed[i]); err != nil {
				return err
			}
		}
		removed = len(doomed)
		return nil
	})
	if err != nil {
		return err
	}

	r.log.Info().
		Int64("section", id).
		Str("policy", string(r.cfg.DeletePolicy)).
		Int("removed", removed).
		Int("reparented", moved).
		Msg("section deleted")
	return nil
}

// subtree returns id and all its descendants in breadth-first order.
func subtree(ctx context.Context, c conn, id int64) ([]int64, error) {
	out := []int64{id}
	seen := map[int64]bool{id: true}
	for i := 0; i < len(out); i++ {
		rows, err := c.query(ctx, "SELECT id FROM sections WHERE parent_id = ? ORDER BY id", out[i])
		if err != nil {
			return nil, fmt.Errorf("walk subtree: %w", err)
		}
		var kids []int64
		for rows.Next() {
			var child int64
			if err := rows.Scan(&child); err != nil {
				rows.Close()
				return nil, err
			}
			kids = append(kids, child)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return nil, err
		}
		for _, k := range kids {
			if !seen[k] {
				seen[k] = true
				out = append(out, k)
			}
		}
	}
	return out, nil
}

func deleteOne(ctx context.Context, c conn, id int64) error {
	steps := []string{
		"DELETE FROM favorites WHERE section_id = ?",
		"DELETE FROM content WHERE section_id = ?",
		"DELETE FROM sections WHERE id = ?",
	}
	for _, q := range steps {
		if _, err := c.exec(ctx, q, id); err != nil {
			return fmt.Errorf("delete section %d: %w", id, err)
		}
	}
	return nil
}
