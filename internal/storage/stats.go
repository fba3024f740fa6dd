// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jeranaias/fieldref/internal/model"
)

const (
	dailyWindow  = 24 * time.Hour
	weeklyWindow = 7 * 24 * time.Hour

	popularLimit = 5
	recentLimit  = 10
)

const userStatColumns = "user_id, first_seen, last_seen, sections_viewed, content_viewed, offline_mode, offline_downloads"

func scanUserStat(row rowScanner) (model.UserStat, error) {
	var (
		u           model.UserStat
		first, last int64
	)
	err := row.Scan(&u.UserID, &first, &last, &u.SectionsViewed, &u.ContentViewed, &u.OfflineMode, &u.OfflineDownloads)
	if err != nil {
		return u, err
	}
	u.FirstSeen = fromNanos(first)
	u.LastSeen = fromNanos(last)
	return u, nil
}

// RecordActivity is the only write path for usage counters. The first call
// for a user creates the row and reports isNewUser; later calls bump the
// requested counters and last-seen time.
func (r *Repository) RecordActivity(ctx context.Context, userID int64, sectionViewed, contentViewed bool) (bool, error) {
	var isNew bool

	err := r.withTx(ctx, func(c conn) error {
		now := r.nowNanos()

		var one int
		err := c.queryRow(ctx, "SELECT 1 FROM user_stats WHERE user_id = ?", userID).Scan(&one)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			isNew = true
			_, err = c.exec(ctx,
				"INSERT INTO user_stats (user_id, first_seen, last_seen) VALUES (?, ?, ?)",
				userID, now, now)
		case err == nil:
			_, err = c.exec(ctx,
				`UPDATE user_stats SET last_seen = ?,
				 sections_viewed = sections_viewed + ?,
				 content_viewed = content_viewed + ?
				 WHERE user_id = ?`,
				now, boolInt(sectionViewed), boolInt(contentViewed), userID)
		}
		if err != nil {
			return fmt.Errorf("record activity: %w", err)
		}
		return nil
	})
	if err != nil {
		return false, err
	}
	if isNew {
		r.log.Info().Int64("user", userID).Msg("new user")
	}
	return isNew, nil
}

// SetOfflineMode marks that a user has received an offline bundle and counts
// the download. A missing stat row is created.
func (r *Repository) SetOfflineMode(ctx context.Context, userID int64) error {
	return r.withTx(ctx, func(c conn) error {
		now := r.nowNanos()
		res, err := c.exec(ctx,
			"UPDATE user_stats SET offline_mode = 1, offline_downloads = offline_downloads + 1 WHERE user_id = ?",
			userID)
		if err != nil {
			return fmt.Errorf("set offline mode: %w", err)
		}
		if n, err := res.RowsAffected(); err == nil && n > 0 {
			return nil
		}
		_, err = c.exec(ctx,
			`INSERT INTO user_stats (user_id, first_seen, last_seen, offline_mode, offline_downloads)
			 VALUES (?, ?, ?, 1, 1)`, userID, now, now)
		if err != nil {
			return fmt.Errorf("set offline mode: %w", err)
		}
		return nil
	})
}

// UserStat returns the counters of one user.
func (r *Repository) UserStat(ctx context.Context, userID int64) (*model.UserStat, error) {
	u, err := scanUserStat(r.read().queryRow(ctx,
		"SELECT "+userStatColumns+" FROM user_stats WHERE user_id = ?", userID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("user", userID)
	}
	if err != nil {
		return nil, fmt.Errorf("get user stat: %w", err)
	}
	return &u, nil
}

// SummaryStats returns aggregate usage counts.
func (r *Repository) SummaryStats(ctx context.Context) (*model.SummaryStats, error) {
	return summaryStats(ctx, r.read(), r.now())
}

func summaryStats(ctx context.Context, c conn, now time.Time) (*model.SummaryStats, error) {
	var s model.SummaryStats
	err := c.queryRow(ctx,
		`SELECT COUNT(*),
		        COALESCE(SUM(CASE WHEN last_seen >= ? THEN 1 ELSE 0 END), 0),
		        COALESCE(SUM(CASE WHEN last_seen >= ? THEN 1 ELSE 0 END), 0),
		        COALESCE(SUM(sections_viewed), 0),
		        COALESCE(SUM(content_viewed), 0),
		        COALESCE(SUM(offline_mode), 0),
		        COALESCE(SUM(offline_downloads), 0)
		 FROM user_stats`,
		now.Add(-dailyWindow).UTC().UnixNano(),
		now.Add(-weeklyWindow).UTC().UnixNano(),
	).Scan(&s.TotalUsers, &s.DailyUsers, &s.WeeklyUsers, &s.SectionsViewed, &s.ContentViewed,
		&s.OfflineUsers, &s.OfflineDownloads)
	if err != nil {
		return nil, fmt.Errorf("summary stats: %w", err)
	}
	return &s, nil
}

// AdminStats returns the administrator view: usage summary, tree size, the
// most favorited active sections and the most recently active users.
func (r *Repository) AdminStats(ctx context.Context) (*model.AdminStats, error) {
	out := &model.AdminStats{
		PopularSections: make([]model.PopularSection, 0),
		RecentUsers:     make([]model.UserStat, 0),
	}

	err := r.withTx(ctx, func(c conn) error {
		summary, err := summaryStats(ctx, c, r.now())
		if err != nil {
			return err
		}
		out.Users = *summary

		if err := c.queryRow(ctx, "SELECT COUNT(*) FROM sections WHERE is_active = 1").Scan(&out.ActiveSections); err != nil {
			return fmt.Errorf("count sections: %w", err)
		}
		if err := c.queryRow(ctx, "SELECT COUNT(*) FROM content").Scan(&out.ContentItems); err != nil {
			return fmt.Errorf("count content: %w", err)
		}

		rows, err := c.query(ctx,
			`SELECT s.id, s.title, s.icon, COUNT(f.section_id) AS favs
			 FROM sections s LEFT JOIN favorites f ON f.section_id = s.id
			 WHERE s.is_active = 1
			 GROUP BY s.id, s.title, s.icon
			 ORDER BY favs DESC, s.id ASC
			 LIMIT ?`, popularLimit)
		if err != nil {
			return fmt.Errorf("popular sections: %w", err)
		}
		for rows.Next() {
			var p model.PopularSection
			if err := rows.Scan(&p.SectionID, &p.Title, &p.Icon, &p.Favorites); err != nil {
				rows.Close()
				return err
			}
			out.PopularSections = append(out.PopularSections, p)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return err
		}

		rows, err = c.query(ctx,
			"SELECT "+userStatColumns+" FROM user_stats ORDER BY last_seen DESC, user_id ASC LIMIT ?", recentLimit)
		if err != nil {
			return fmt.Errorf("recent users: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			u, err := scanUserStat(rows)
			if err != nil {
				return err
			}
			out.RecentUsers = append(out.RecentUsers, u)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
