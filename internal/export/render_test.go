// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/fieldref/internal/model"
)

// =============================================================================
// MEDIA
// =============================================================================

func TestDirResolver(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.png"), []byte("x"), 0644))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "sub", "dir"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "sub", "b.pdf"), []byte("x"), 0644))

	r := DirResolver{Root: root}

	got, err := r.Resolve("a.png")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "a.png"), got)

	got, err = r.Resolve("sub/./b.pdf")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "sub", "b.pdf"), got)

	for _, ref := range []string{"", "  ", "missing.png", "../a.png", "sub/../../a.png", "/etc/passwd", "sub/dir"} {
		t.Run(ref, func(t *testing.T) {
			_, err := r.Resolve(ref)
			assert.ErrorIs(t, err, ErrMediaUnavailable)
		})
	}
}

type errResolver struct{ err error }

func (r errResolver) Resolve(string) (string, error) { return "", r.err }

func TestCopyMedia_HardErrorAborts(t *testing.T) {
	snap := &model.Snapshot{Content: []model.ContentItem{
		{ID: 1, SectionID: 1, Kind: model.KindVideo, MediaRef: "v.mp4"},
	}}
	_, err := copyMedia(context.Background(), zerolog.Nop(), errResolver{err: fmt.Errorf("%w: permission denied", ErrIO)}, snap, t.TempDir())
	assert.ErrorIs(t, err, ErrIO)
}

func TestCopyMedia_SkipsText(t *testing.T) {
	snap := &model.Snapshot{Content: []model.ContentItem{
		{ID: 1, SectionID: 1, Kind: model.KindText, Body: "hello"},
	}}
	out, err := copyMedia(context.Background(), zerolog.Nop(), errResolver{err: errors.New("should not be called")}, snap, t.TempDir())
	require.NoError(t, err)
	assert.Empty(t, out.paths)
	assert.Empty(t, out.unavailable)
}

func TestMediaFileName(t *testing.T) {
	tests := []struct {
		ref, want string
	}{
		{"photos/map.png", "map.png"},
		{`photos\field guide.pdf`, "field_guide.pdf"},
		{"report#1%.pdf", "report-1-.pdf"},
		{"", "asset"},
		{"..", "asset"},
		{"a\x01b.txt", "a-b.txt"},
	}
	for _, tt := range tests {
		t.Run(tt.ref, func(t *testing.T) {
			assert.Equal(t, tt.want, mediaFileName(tt.ref))
		})
	}

	long := strings.Repeat("я", 100) + ".png"
	name := mediaFileName(long)
	assert.Equal(t, 80, len([]rune(name)))
	assert.True(t, strings.HasSuffix(name, ".png"))
}

// =============================================================================
// HTML
// =============================================================================

func nestedSnapshot(depth int) *model.Snapshot {
	snap := &model.Snapshot{}
	var parent *int64
	for i := 1; i <= depth; i++ {
		id := int64(i)
		snap.Sections = append(snap.Sections, model.Section{ID: id, Title: fmt.Sprintf("L%d", i), ParentID: parent, Active: true})
		parent = &id
	}
	return snap
}

func TestHTMLRenderer_HeadingDepthCapped(t *testing.T) {
	page := string(NewHTMLRenderer("T", true).Render(nestedSnapshot(7), &mediaCopy{}))

	assert.Contains(t, page, "<h2>📄 L1</h2>")
	assert.Contains(t, page, "<h5>📄 L4</h5>")
	assert.Contains(t, page, "<h6>📄 L5</h6>")
	assert.Contains(t, page, "<h6>📄 L7</h6>")
	assert.NotContains(t, page, "<h7>")
	assert.Contains(t, page, `href="#section-7"`)
}

func TestHTMLRenderer_Markup(t *testing.T) {
	snap := &model.Snapshot{
		Sections: []model.Section{{ID: 1, Title: "<Tips>", Active: true}},
		Content: []model.ContentItem{
			{ID: 1, SectionID: 1, Kind: model.KindText, Body: "<b>bold</b><script>alert(1)</script>\nnext"},
		},
	}

	page := string(NewHTMLRenderer("T", true).Render(snap, &mediaCopy{}))
	assert.Contains(t, page, "<b>bold</b>")
	assert.NotContains(t, page, "alert(1)")
	assert.Contains(t, page, "<br>\nnext")
	assert.Contains(t, page, "&lt;Tips&gt;")

	page = string(NewHTMLRenderer("T", false).Render(snap, &mediaCopy{}))
	assert.Contains(t, page, "&lt;b&gt;bold&lt;/b&gt;")
	assert.NotContains(t, page, "<script>alert")
}

func TestHTMLRenderer_MediaKinds(t *testing.T) {
	snap := &model.Snapshot{
		Sections: []model.Section{{ID: 1, Title: "Media", Active: true}},
		Content: []model.ContentItem{
			{ID: 1, SectionID: 1, Kind: model.KindImage, MediaRef: "a.png", ButtonLabel: "Map"},
			{ID: 2, SectionID: 1, Kind: model.KindVideo, MediaRef: "b.mp4"},
			{ID: 3, SectionID: 1, Kind: model.KindDocument, MediaRef: "c d.pdf"},
		},
	}
	media := &mediaCopy{paths: map[int64]string{
		1: "media/1_a.png",
		2: "media/2_b.mp4",
		3: "media/3_c_d.pdf",
	}}

	page := string(NewHTMLRenderer("", true).Render(snap, media))
	assert.Contains(t, page, `<img src="media/1_a.png" alt="Map"`)
	assert.Contains(t, page, `<source src="media/2_b.mp4">`)
	assert.Contains(t, page, `href="media/3_c_d.pdf" download`)
	assert.Contains(t, page, `<p class="caption">Map</p>`)
	assert.Contains(t, page, "<title>Field Reference</title>")
	assert.NotContains(t, page, "http://")
	assert.NotContains(t, page, "https://")
}

// =============================================================================
// MARKDOWN
// =============================================================================

func TestRenderOutline(t *testing.T) {
	snap := &model.Snapshot{
		Sections: []model.Section{
			{ID: 1, Title: "First_aid", Icon: "🩹", Active: true},
			{ID: 2, Title: "Burns", ParentID: idp(1), Active: true, Description: "heat\nand chemical"},
		},
		Content: []model.ContentItem{
			{ID: 1, SectionID: 2, Kind: model.KindText, Body: "Cool the\nburn", ButtonLabel: "Step 1"},
			{ID: 2, SectionID: 2, Kind: model.KindImage, MediaRef: "x.png"},
			{ID: 3, SectionID: 2, Kind: model.KindDocument, MediaRef: "y.pdf", ButtonLabel: "Card"},
		},
	}
	media := &mediaCopy{paths: map[int64]string{3: "media/3_y.pdf"}, unavailable: []int64{2}}

	out := string(renderOutline("Guide", snap, media))
	assert.Contains(t, out, "# Guide\n")
	assert.Contains(t, out, "- **🩹 First\\_aid**\n")
	assert.Contains(t, out, "  - **📄 Burns** heat and chemical\n")
	assert.Contains(t, out, "    - Step 1: Cool the burn\n")
	assert.Contains(t, out, "    - Image (media unavailable)\n")
	assert.Contains(t, out, "    - [Card](media/3_y.pdf)\n")
	assert.Contains(t, out, "- **Media files**: 1")
}

func TestEscapeMarkdown(t *testing.T) {
	assert.Equal(t, `\#1 \*bold\* \[x\]`, escapeMarkdown("#1 *bold* [x]"))
}
