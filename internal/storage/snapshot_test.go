// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/fieldref/internal/model"
)

func TestSnapshot_ActiveTreeOnly(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	a := addSection(t, repo, "A", nil)
	b := addSection(t, repo, "B", &a.ID)
	hidden := addSection(t, repo, "Hidden", nil)
	addText(t, repo, a.ID, "x")
	addText(t, repo, b.ID, "y")
	addText(t, repo, hidden.ID, "secret")
	require.NoError(t, repo.UpdateSection(ctx, hidden.ID, model.SectionUpdate{Active: boolp(false)}))

	snap, err := repo.Snapshot(ctx)
	require.NoError(t, err)

	assert.Equal(t, []string{"A", "B"}, titles(snap.Sections))
	require.Len(t, snap.Content, 2)
	for _, item := range snap.Content {
		assert.NotEqual(t, "secret", item.Body)
	}
	assert.False(t, snap.TakenAt.IsZero())

	roots := snap.Children(nil)
	require.Len(t, roots, 1)
	assert.Equal(t, "A", roots[0].Title)
	assert.Equal(t, []string{"B"}, titles(snap.Children(&a.ID)))
	require.Len(t, snap.ContentOf(a.ID), 1)
	assert.Equal(t, "x", snap.ContentOf(a.ID)[0].Body)
}

func TestSnapshot_Empty(t *testing.T) {
	repo := newTestRepo(t)
	snap, err := repo.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Empty(t, snap.Sections)
	assert.Empty(t, snap.Content)
}

func TestSearch(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	_, err := repo.AddSection(ctx, model.NewSection{Title: "Кровотечение", Description: "Остановка"})
	require.NoError(t, err)
	_, err = repo.AddSection(ctx, model.NewSection{Title: "Airway", Description: "Keep it OPEN"})
	require.NoError(t, err)
	gone := addSection(t, repo, "Open fractures", nil)
	require.NoError(t, repo.UpdateSection(ctx, gone.ID, model.SectionUpdate{Active: boolp(false)}))

	got, err := repo.Search(ctx, "КРОВ")
	require.NoError(t, err)
	assert.Equal(t, []string{"Кровотечение"}, titles(got))

	got, err = repo.Search(ctx, "open")
	require.NoError(t, err)
	assert.Equal(t, []string{"Airway"}, titles(got))

	got, err = repo.Search(ctx, "zz")
	require.NoError(t, err)
	assert.Empty(t, got)

	_, err = repo.Search(ctx, " a ")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestSeed(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	n, err := repo.Seed(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, len(defaultSections), n)

	roots, err := repo.ListChildren(ctx, nil)
	require.NoError(t, err)
	require.Len(t, roots, len(defaultSections))
	assert.Equal(t, "Legal basis", roots[0].Title)
	assert.Equal(t, int64(42), roots[0].CreatedBy)

	var withIntro int
	for _, s := range roots {
		items, err := repo.ListContent(ctx, s.ID)
		require.NoError(t, err)
		withIntro += len(items)
	}
	assert.Equal(t, 1, withIntro)

	// Idempotent once sections exist
	n, err = repo.Seed(ctx, 42)
	require.NoError(t, err)
	assert.Zero(t, n)
}
