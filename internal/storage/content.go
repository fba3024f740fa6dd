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

const contentColumns = "id, section_id, content_type, text_content, media_file_id, button_text, order_index, created_by, created_at"

func scanContent(row rowScanner) (model.ContentItem, error) {
	var (
		item    model.ContentItem
		kind    string
		created int64
	)
	err := row.Scan(&item.ID, &item.SectionID, &kind, &item.Body, &item.MediaRef,
		&item.ButtonLabel, &item.OrderIndex, &item.CreatedBy, &created)
	if err != nil {
		return item, err
	}
	item.Kind = model.ContentKind(kind)
	item.CreatedAt = fromNanos(created)
	return item, nil
}

func collectContent(rows *sql.Rows) ([]model.ContentItem, error) {
	defer rows.Close()
	out := make([]model.ContentItem, 0)
	for rows.Next() {
		item, err := scanContent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, rows.Err()
}

// ListContent returns the items of a section ordered by order index.
func (r *Repository) ListContent(ctx context.Context, sectionID int64) ([]model.ContentItem, error) {
	rows, err := r.read().query(ctx,
		"SELECT "+contentColumns+" FROM content WHERE section_id = ? ORDER BY order_index, id", sectionID)
	if err != nil {
		return nil, fmt.Errorf("list content: %w", err)
	}
	return collectContent(rows)
}

func getContent(ctx context.Context, c conn, id int64) (*model.ContentItem, error) {
	item, err := scanContent(c.queryRow(ctx, "SELECT "+contentColumns+" FROM content WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("content", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get content %d: %w", id, err)
	}
	return &item, nil
}

// GetContentWithSection returns an item together with its owning section.
func (r *Repository) GetContentWithSection(ctx context.Context, id int64) (*model.ContentItem, *model.Section, error) {
	var (
		item *model.ContentItem
		sec  *model.Section
	)
	err := r.withTx(ctx, func(c conn) error {
		var err error
		if item, err = getContent(ctx, c, id); err != nil {
			return err
		}
		sec, err = getSection(ctx, c, item.SectionID)
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	return item, sec, nil
}

func nextContentOrder(ctx context.Context, c conn, sectionID int64) (int, error) {
	var next int
	err := c.queryRow(ctx,
		"SELECT COALESCE(MAX(order_index), -1) + 1 FROM content WHERE section_id = ?", sectionID).Scan(&next)
	if err != nil {
		return 0, fmt.Errorf("next order index: %w", err)
	}
	return next, nil
}

// AddContent creates an item as the last entry of its section.
func (r *Repository) AddContent(ctx context.Context, in model.NewContent) (*model.ContentItem, error) {
	item := model.ContentItem{
		SectionID:   in.SectionID,
		Kind:        in.Kind,
		Body:        in.Body,
		MediaRef:    in.MediaRef,
		ButtonLabel: in.ButtonLabel,
		CreatedBy:   in.CreatedBy,
	}
	if err := r.validContent(&item); err != nil {
		return nil, err
	}

	err := r.withTx(ctx, func(c conn) error {
		if _, err := getSection(ctx, c, item.SectionID); err != nil {
			return err
		}
		order, err := nextContentOrder(ctx, c, item.SectionID)
		if err != nil {
			return err
		}
		item.OrderIndex = order

		created := r.nowNanos()
		item.CreatedAt = fromNanos(created)
		return c.queryRow(ctx,
			`INSERT INTO content (section_id, content_type, text_content, media_file_id, button_text, order_index, created_by, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`,
			item.SectionID, string(item.Kind), item.Body, item.MediaRef, item.ButtonLabel,
			item.OrderIndex, item.CreatedBy, created,
		).Scan(&item.ID)
	})
	if err != nil {
		return nil, err
	}

	r.log.Info().Int64("content", item.ID).Int64("section", item.SectionID).Str("kind", item.Kind.String()).Msg("content added")
	return &item, nil
}

// UpdateContent applies the supplied fields of upd. Moving an item to another
// section appends it there unless an order index is also supplied.
func (r *Repository) UpdateContent(ctx context.Context, id int64, upd model.ContentUpdate) error {
	return r.withTx(ctx, func(c conn) error {
		cur, err := getContent(ctx, c, id)
		if err != nil {
			return err
		}
		if upd.IsEmpty() {
			return nil
		}

		next := upd.Apply(*cur)
		if err := r.validContent(&next); err != nil {
			return err
		}

		if next.SectionID != cur.SectionID {
			if _, err := getSection(ctx, c, next.SectionID); err != nil {
				return err
			}
			if upd.OrderIndex == nil {
				if next.OrderIndex, err = nextContentOrder(ctx, c, next.SectionID); err != nil {
					return err
				}
			}
		}

		if upd.OrderIndex != nil {
			var other int64
			err := c.queryRow(ctx,
				"SELECT id FROM content WHERE section_id = ? AND order_index = ? AND id <> ? LIMIT 1",
				next.SectionID, next.OrderIndex, id).Scan(&other)
			if err == nil {
				return invalid("order_index", "%d is already used by content %d", next.OrderIndex, other)
			}
			if !errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("check order index: %w", err)
			}
		}

		_, err = c.exec(ctx,
			`UPDATE content SET section_id = ?, content_type = ?, text_content = ?, media_file_id = ?,
			 button_text = ?, order_index = ? WHERE id = ?`,
			next.SectionID, string(next.Kind), next.Body, next.MediaRef, next.ButtonLabel, next.OrderIndex, id)
		if err != nil {
			return fmt.Errorf("update content %d: %w", id, err)
		}

		r.log.Info().Int64("content", id).Msg("content updated")
		return nil
	})
}

// DeleteContent removes a single item.
func (r *Repository) DeleteContent(ctx context.Context, id int64) error {
	res, err := r.read().exec(ctx, "DELETE FROM content WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete content %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete content %d: %w", id, err)
	}
	if n == 0 {
		return notFound("content", id)
	}

	r.log.Info().Int64("content", id).Msg("content deleted")
	return nil
}
