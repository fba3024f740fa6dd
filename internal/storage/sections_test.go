// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/fieldref/internal/model"
)

func TestAddSection_OrderFollowsInsertion(t *testing.T) {
	repo := newTestRepo(t)
	parent := addSection(t, repo, "Parent", nil)

	var prev = -1
	for _, title := range []string{"one", "two", "three", "four"} {
		s := addSection(t, repo, title, &parent.ID)
		assert.Greater(t, s.OrderIndex, prev)
		prev = s.OrderIndex
	}

	kids, err := repo.ListChildren(context.Background(), &parent.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"one", "two", "three", "four"}, titles(kids))
	assert.Equal(t, 0, kids[0].OrderIndex)
}

func TestListChildren_Scenario(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	a := addSection(t, repo, "A", nil)
	b := addSection(t, repo, "B", nil)
	assert.Equal(t, 0, a.OrderIndex)
	assert.Equal(t, 1, b.OrderIndex)

	c := addSection(t, repo, "C", &a.ID)
	require.NotNil(t, c.ParentID)
	assert.Equal(t, a.ID, *c.ParentID)

	kids, err := repo.ListChildren(ctx, &a.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"C"}, titles(kids))

	roots, err := repo.ListChildren(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B"}, titles(roots))

	empty, err := repo.ListChildren(ctx, &b.ID)
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)
}

func TestListChildren_SkipsInactive(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	a := addSection(t, repo, "A", nil)
	addSection(t, repo, "B", nil)

	require.NoError(t, repo.UpdateSection(ctx, a.ID, model.SectionUpdate{Active: boolp(false)}))

	roots, err := repo.ListChildren(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"B"}, titles(roots))

	got, err := repo.GetSection(ctx, a.ID)
	require.NoError(t, err, "inactive sections are still addressable by id")
	assert.False(t, got.Active)
}

func boolp(b bool) *bool { return &b }

func TestAddSection_Validation(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	_, err := repo.AddSection(ctx, model.NewSection{Title: strings.Repeat("x", 101)})
	require.ErrorIs(t, err, ErrValidation)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "title", verr.Field)
	assert.Contains(t, verr.Message, "100")

	// 100 multi-byte characters are fine
	s, err := repo.AddSection(ctx, model.NewSection{Title: strings.Repeat("ж", 100)})
	require.NoError(t, err)
	assert.Equal(t, model.DefaultIcon, s.Icon)

	_, err = repo.AddSection(ctx, model.NewSection{Title: "   "})
	assert.ErrorIs(t, err, ErrValidation)

	missing := int64(999)
	_, err = repo.AddSection(ctx, model.NewSection{Title: "orphan", ParentID: &missing})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAddSection_ConfiguredTitleLimit(t *testing.T) {
	repo := newTestRepo(t, func(c *Config) { c.MaxTitleLength = 5 })
	_, err := repo.AddSection(context.Background(), model.NewSection{Title: "toolong"})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestGetSection_NotFound(t *testing.T) {
	repo := newTestRepo(t)
	_, err := repo.GetSection(context.Background(), 42)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateSection_Partial(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	s, err := repo.AddSection(ctx, model.NewSection{Title: "Old", Description: "keep me", Icon: "🩺"})
	require.NoError(t, err)

	require.NoError(t, repo.UpdateSection(ctx, s.ID, model.SectionUpdate{Title: strp("New")}))

	got, err := repo.GetSection(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, "New", got.Title)
	assert.Equal(t, "keep me", got.Description)
	assert.Equal(t, "🩺", got.Icon)
	assert.Equal(t, s.OrderIndex, got.OrderIndex)
}

func TestUpdateSection_EmptyAndMissing(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	s := addSection(t, repo, "A", nil)

	assert.NoError(t, repo.UpdateSection(ctx, s.ID, model.SectionUpdate{}))
	assert.ErrorIs(t, repo.UpdateSection(ctx, 999, model.SectionUpdate{}), ErrNotFound)
	assert.ErrorIs(t, repo.UpdateSection(ctx, 999, model.SectionUpdate{Title: strp("x")}), ErrNotFound)
	assert.ErrorIs(t, repo.UpdateSection(ctx, s.ID, model.SectionUpdate{Title: strp(strings.Repeat("y", 200))}), ErrValidation)
}

func TestUpdateSection_RejectsCycles(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	a := addSection(t, repo, "A", nil)
	b := addSection(t, repo, "B", &a.ID)
	c := addSection(t, repo, "C", &b.ID)

	err := repo.UpdateSection(ctx, a.ID, model.SectionUpdate{ParentID: &c.ID})
	assert.ErrorIs(t, err, ErrValidation)

	err = repo.UpdateSection(ctx, a.ID, model.SectionUpdate{ParentID: &a.ID})
	assert.ErrorIs(t, err, ErrValidation)

	// Tree is unchanged
	got, err := repo.GetSection(ctx, a.ID)
	require.NoError(t, err)
	assert.Nil(t, got.ParentID)

	missing := int64(404)
	err = repo.UpdateSection(ctx, a.ID, model.SectionUpdate{ParentID: &missing})
	assert.ErrorIs(t, err, ErrNotFound)

	err = repo.UpdateSection(ctx, b.ID, model.SectionUpdate{ParentID: &a.ID, ToRoot: true})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestUpdateSection_MoveAppendsToNewParent(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	a := addSection(t, repo, "A", nil)
	b := addSection(t, repo, "B", nil)
	addSection(t, repo, "B1", &b.ID)
	addSection(t, repo, "B2", &b.ID)
	c := addSection(t, repo, "C", &a.ID)

	require.NoError(t, repo.UpdateSection(ctx, c.ID, model.SectionUpdate{ParentID: &b.ID}))

	kids, err := repo.ListChildren(ctx, &b.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"B1", "B2", "C"}, titles(kids))

	require.NoError(t, repo.UpdateSection(ctx, c.ID, model.SectionUpdate{ToRoot: true}))
	roots, err := repo.ListChildren(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B", "C"}, titles(roots))
}

func TestUpdateSection_OrderIndexConflict(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	a := addSection(t, repo, "A", nil)
	b := addSection(t, repo, "B", nil)

	err := repo.UpdateSection(ctx, b.ID, model.SectionUpdate{OrderIndex: intp(a.OrderIndex)})
	assert.ErrorIs(t, err, ErrValidation)

	err = repo.UpdateSection(ctx, b.ID, model.SectionUpdate{OrderIndex: intp(-1)})
	assert.ErrorIs(t, err, ErrValidation)

	require.NoError(t, repo.UpdateSection(ctx, a.ID, model.SectionUpdate{OrderIndex: intp(10)}))
	roots, err := repo.ListChildren(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"B", "A"}, titles(roots))
}

func TestDeleteSection_RemovesContent(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	a := addSection(t, repo, "A", nil)
	b := addSection(t, repo, "B", nil)
	addText(t, repo, a.ID, "one")
	addText(t, repo, a.ID, "two")
	keep := addText(t, repo, b.ID, "three")

	require.NoError(t, repo.DeleteSection(ctx, a.ID))

	_, err := repo.GetSection(ctx, a.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	items, err := repo.ListContent(ctx, a.ID)
	require.NoError(t, err)
	assert.Empty(t, items)

	var orphans int
	require.NoError(t, repo.db.QueryRow(
		"SELECT COUNT(*) FROM content WHERE section_id NOT IN (SELECT id FROM sections)").Scan(&orphans))
	assert.Zero(t, orphans)

	_, _, err = repo.GetContentWithSection(ctx, keep.ID)
	assert.NoError(t, err)

	assert.ErrorIs(t, repo.DeleteSection(ctx, a.ID), ErrNotFound)
}

func TestDeleteSection_ReparentPolicy(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	root := addSection(t, repo, "Root", nil)
	sibling := addSection(t, repo, "Sibling", &root.ID)
	mid := addSection(t, repo, "Mid", &root.ID)
	addSection(t, repo, "Leaf1", &mid.ID)
	addSection(t, repo, "Leaf2", &mid.ID)
	_ = sibling

	require.NoError(t, repo.DeleteSection(ctx, mid.ID))

	kids, err := repo.ListChildren(ctx, &root.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"Sibling", "Leaf1", "Leaf2"}, titles(kids))
}

func TestDeleteSection_ReparentToRoot(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	top := addSection(t, repo, "Top", nil)
	addSection(t, repo, "Child", &top.ID)

	require.NoError(t, repo.DeleteSection(ctx, top.ID))

	roots, err := repo.ListChildren(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"Child"}, titles(roots))
}

func TestDeleteSection_CascadePolicy(t *testing.T) {
	repo := newTestRepo(t, func(c *Config) { c.DeletePolicy = DeleteCascade })
	ctx := context.Background()
	root := addSection(t, repo, "Root", nil)
	mid := addSection(t, repo, "Mid", &root.ID)
	leaf := addSection(t, repo, "Leaf", &mid.ID)
	addText(t, repo, leaf.ID, "deep")
	addText(t, repo, mid.ID, "middle")
	other := addSection(t, repo, "Other", nil)

	_, err := repo.ToggleFavorite(ctx, 7, leaf.ID)
	require.NoError(t, err)

	require.NoError(t, repo.DeleteSection(ctx, root.ID))

	for _, id := range []int64{root.ID, mid.ID, leaf.ID} {
		_, err := repo.GetSection(ctx, id)
		assert.ErrorIs(t, err, ErrNotFound)
	}

	var contentLeft, favLeft int
	require.NoError(t, repo.db.QueryRow("SELECT COUNT(*) FROM content").Scan(&contentLeft))
	require.NoError(t, repo.db.QueryRow("SELECT COUNT(*) FROM favorites").Scan(&favLeft))
	assert.Zero(t, contentLeft)
	assert.Zero(t, favLeft)

	roots, err := repo.ListChildren(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{other.Title}, titles(roots))
}
