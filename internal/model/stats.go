// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import "time"

// ToggleResult reports which action a favorite toggle performed.
type ToggleResult string

const (
	FavoriteAdded   ToggleResult = "added"
	FavoriteRemoved ToggleResult = "removed"
)

// UserStat holds per-user usage counters.
type UserStat struct {
	UserID           int64     `json:"user_id"`
	FirstSeen        time.Time `json:"first_seen"`
	LastSeen         time.Time `json:"last_seen"`
	SectionsViewed   int64     `json:"sections_viewed"`
	ContentViewed    int64     `json:"content_viewed"`
	OfflineMode      bool      `json:"offline_mode"`
	OfflineDownloads int64     `json:"offline_downloads"`
}

// SummaryStats is the public usage summary.
type SummaryStats struct {
	TotalUsers       int64 `json:"total_users"`
	DailyUsers       int64 `json:"daily_users"`
	WeeklyUsers      int64 `json:"weekly_users"`
	SectionsViewed   int64 `json:"total_sections_viewed"`
	ContentViewed    int64 `json:"total_content_viewed"`
	OfflineUsers     int64 `json:"offline_users"`
	OfflineDownloads int64 `json:"offline_downloads"`
}

// PopularSection is a section ranked by how many users favorited it.
type PopularSection struct {
	SectionID int64  `json:"section_id"`
	Title     string `json:"title"`
	Icon      string `json:"icon"`
	Favorites int64  `json:"favorites"`
}

// AdminStats is the administrator view of the repository.
type AdminStats struct {
	Users           SummaryStats     `json:"users"`
	ActiveSections  int64            `json:"active_sections"`
	ContentItems    int64            `json:"content_items"`
	PopularSections []PopularSection `json:"popular_sections"`
	RecentUsers     []UserStat       `json:"recent_users"`
}
