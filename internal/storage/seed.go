// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"context"
	"fmt"

	"github.com/jeranaias/fieldref/internal/model"
)

type seedSection struct {
	title, description, icon string
	intro                    string
}

// defaultSections is the starter tree written into an empty repository.
var defaultSections = []seedSection{
	{title: "Legal basis", description: "Official documents", icon: "⚖️"},
	{title: "Lists and standards", description: "Conditions and measures", icon: "📋"},
	{
		title:       "Priority algorithm",
		description: "Order of actions by priority",
		icon:        "🆘",
		intro: "<b>Priority algorithm</b>\n\n" +
			"Work strictly in order. Every minute counts.\n\n" +
			"<b>1. Bleeding control</b>\n" +
			"<i>Find and stop life-threatening bleeding first.</i>",
	},
	{title: "Basic care", description: "Core techniques", icon: "💊"},
}

// Seed writes the starter sections when the repository has no sections at
// all. It returns how many sections were created.
func (r *Repository) Seed(ctx context.Context, creatorID int64) (int, error) {
	var count int64
	if err := r.read().queryRow(ctx, "SELECT COUNT(*) FROM sections").Scan(&count); err != nil {
		return 0, fmt.Errorf("count sections: %w", err)
	}
	if count > 0 {
		return 0, nil
	}

	for _, s := range defaultSections {
		sec, err := r.AddSection(ctx, model.NewSection{
			Title:       s.title,
			Description: s.description,
			Icon:        s.icon,
			CreatedBy:   creatorID,
		})
		if err != nil {
			return 0, fmt.Errorf("seed %q: %w", s.title, err)
		}
		if s.intro == "" {
			continue
		}
		if _, err := r.AddContent(ctx, model.NewContent{
			SectionID:   sec.ID,
			Kind:        model.KindText,
			Body:        s.intro,
			ButtonLabel: "📖 Full guide",
			CreatedBy:   creatorID,
		}); err != nil {
			return 0, fmt.Errorf("seed %q content: %w", s.title, err)
		}
	}

	r.log.Info().Int("sections", len(defaultSections)).Msg("seeded default sections")
	return len(defaultSections), nil
}
