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

func TestAddContent_OrderAndList(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	a := addSection(t, repo, "A", nil)

	first := addText(t, repo, a.ID, "x")
	second, err := repo.AddContent(ctx, model.NewContent{
		SectionID: a.ID, Kind: model.KindImage, MediaRef: "photos/tourniquet.jpg", ButtonLabel: "Photo",
	})
	require.NoError(t, err)

	assert.Equal(t, 0, first.OrderIndex)
	assert.Equal(t, 1, second.OrderIndex)

	items, err := repo.ListContent(ctx, a.ID)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "x", items[0].Body)
	assert.Equal(t, model.KindImage, items[1].Kind)
	assert.Equal(t, "photos/tourniquet.jpg", items[1].MediaRef)
}

func TestAddContent_Validation(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	a := addSection(t, repo, "A", nil)

	cases := []struct {
		name string
		in   model.NewContent
		want error
	}{
		{"text without body", model.NewContent{SectionID: a.ID, Kind: model.KindText}, ErrValidation},
		{"image without media", model.NewContent{SectionID: a.ID, Kind: model.KindImage}, ErrValidation},
		{"unknown kind", model.NewContent{SectionID: a.ID, Kind: "audio", Body: "x"}, ErrValidation},
		{"long label", model.NewContent{SectionID: a.ID, Kind: model.KindText, Body: "x", ButtonLabel: strings.Repeat("b", 65)}, ErrValidation},
		{"missing section", model.NewContent{SectionID: 999, Kind: model.KindText, Body: "x"}, ErrNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := repo.AddContent(ctx, tc.in)
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestGetContentWithSection(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	a := addSection(t, repo, "A", nil)
	item := addText(t, repo, a.ID, "body")

	got, sec, err := repo.GetContentWithSection(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, "body", got.Body)
	assert.Equal(t, a.ID, sec.ID)
	assert.Equal(t, "A", sec.Title)

	_, _, err = repo.GetContentWithSection(ctx, 999)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateContent(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	a := addSection(t, repo, "A", nil)
	b := addSection(t, repo, "B", nil)
	addText(t, repo, b.ID, "already in b")
	item := addText(t, repo, a.ID, "before")

	require.NoError(t, repo.UpdateContent(ctx, item.ID, model.ContentUpdate{Body: strp("after")}))
	got, _, err := repo.GetContentWithSection(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, "after", got.Body)

	// Switching to a media kind requires a media reference
	kind := model.KindVideo
	err = repo.UpdateContent(ctx, item.ID, model.ContentUpdate{Kind: &kind})
	assert.ErrorIs(t, err, ErrValidation)

	// Moving appends to the target section
	require.NoError(t, repo.UpdateContent(ctx, item.ID, model.ContentUpdate{SectionID: &b.ID}))
	items, err := repo.ListContent(ctx, b.ID)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, item.ID, items[1].ID)
	assert.Equal(t, 1, items[1].OrderIndex)

	err = repo.UpdateContent(ctx, item.ID, model.ContentUpdate{OrderIndex: intp(0)})
	assert.ErrorIs(t, err, ErrValidation)

	missing := int64(999)
	assert.ErrorIs(t, repo.UpdateContent(ctx, item.ID, model.ContentUpdate{SectionID: &missing}), ErrNotFound)
	assert.ErrorIs(t, repo.UpdateContent(ctx, 999, model.ContentUpdate{Body: strp("x")}), ErrNotFound)
	assert.NoError(t, repo.UpdateContent(ctx, item.ID, model.ContentUpdate{}))
}

func TestDeleteContent(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	a := addSection(t, repo, "A", nil)
	item := addText(t, repo, a.ID, "x")

	require.NoError(t, repo.DeleteContent(ctx, item.ID))
	assert.ErrorIs(t, repo.DeleteContent(ctx, item.ID), ErrNotFound)

	items, err := repo.ListContent(ctx, a.ID)
	require.NoError(t, err)
	assert.Empty(t, items)

	// Section survives its content
	_, err = repo.GetSection(ctx, a.ID)
	assert.NoError(t, err)
}
