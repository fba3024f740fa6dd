// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

// Timestamps are stored as Unix nanoseconds so both backends order them
// identically. Booleans are stored as 0/1 integers for the same reason.

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS sections (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    title TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    icon TEXT NOT NULL DEFAULT '📄',
    parent_id INTEGER REFERENCES sections(id),
    order_index INTEGER NOT NULL DEFAULT 0,
    is_active INTEGER NOT NULL DEFAULT 1,
    created_by INTEGER NOT NULL DEFAULT 0,
    created_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_sections_parent ON sections(parent_id, order_index);

CREATE TABLE IF NOT EXISTS content (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    section_id INTEGER NOT NULL REFERENCES sections(id),
    content_type TEXT NOT NULL,
    text_content TEXT NOT NULL DEFAULT '',
    media_file_id TEXT NOT NULL DEFAULT '',
    button_text TEXT NOT NULL DEFAULT '',
    order_index INTEGER NOT NULL DEFAULT 0,
    created_by INTEGER NOT NULL DEFAULT 0,
    created_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_content_section ON content(section_id, order_index);

CREATE TABLE IF NOT EXISTS user_stats (
    user_id INTEGER PRIMARY KEY,
    first_seen INTEGER NOT NULL,
    last_seen INTEGER NOT NULL,
    sections_viewed INTEGER NOT NULL DEFAULT 0,
    content_viewed INTEGER NOT NULL DEFAULT 0,
    offline_mode INTEGER NOT NULL DEFAULT 0,
    offline_downloads INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_user_stats_last_seen ON user_stats(last_seen);

CREATE TABLE IF NOT EXISTS favorites (
    user_id INTEGER NOT NULL,
    section_id INTEGER NOT NULL REFERENCES sections(id),
    added_at INTEGER NOT NULL,
    PRIMARY KEY (user_id, section_id)
);
`

const postgresSchema = `
CREATE TABLE IF NOT EXISTS sections (
    id BIGSERIAL PRIMARY KEY,
    title TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    icon TEXT NOT NULL DEFAULT '📄',
    parent_id BIGINT REFERENCES sections(id),
    order_index INTEGER NOT NULL DEFAULT 0,
    is_active INTEGER NOT NULL DEFAULT 1,
    created_by BIGINT NOT NULL DEFAULT 0,
    created_at BIGINT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_sections_parent ON sections(parent_id, order_index);

CREATE TABLE IF NOT EXISTS content (
    id BIGSERIAL PRIMARY KEY,
    section_id BIGINT NOT NULL REFERENCES sections(id),
    content_type TEXT NOT NULL,
    text_content TEXT NOT NULL DEFAULT '',
    media_file_id TEXT NOT NULL DEFAULT '',
    button_text TEXT NOT NULL DEFAULT '',
    order_index INTEGER NOT NULL DEFAULT 0,
    created_by BIGINT NOT NULL DEFAULT 0,
    created_at BIGINT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_content_section ON content(section_id, order_index);

CREATE TABLE IF NOT EXISTS user_stats (
    user_id BIGINT PRIMARY KEY,
    first_seen BIGINT NOT NULL,
    last_seen BIGINT NOT NULL,
    sections_viewed BIGINT NOT NULL DEFAULT 0,
    content_viewed BIGINT NOT NULL DEFAULT 0,
    offline_mode INTEGER NOT NULL DEFAULT 0,
    offline_downloads BIGINT NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_user_stats_last_seen ON user_stats(last_seen);

CREATE TABLE IF NOT EXISTS favorites (
    user_id BIGINT NOT NULL,
    section_id BIGINT NOT NULL REFERENCES sections(id),
    added_at BIGINT NOT NULL,
    PRIMARY KEY (user_id, section_id)
);
`
