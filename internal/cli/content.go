// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/jeranaias/fieldref/internal/model"
	"github.com/jeranaias/fieldref/internal/util"
)

func newContentCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "content",
		Short: "Manage content items inside sections",
	}
	cmd.AddCommand(
		newContentAddCommand(a),
		newContentListCommand(a),
		newContentShowCommand(a),
		newContentUpdateCommand(a),
		newContentDeleteCommand(a),
	)
	return cmd
}

func newContentAddCommand(a *app) *cobra.Command {
	var (
		in   model.NewContent
		kind string
	)
	cmd := &cobra.Command{
		Use:   "add <section-id>",
		Short: "Add a content item to a section",
		Example: `  fieldref content add 2 --text "Cool the burn under running water" --button "Step 1"
  fieldref content add 2 --type image --media photos/burn.png --button "Reference photo"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sectionID, err := parseID("section id", args[0])
			if err != nil {
				return err
			}
			k, err := model.ParseContentKind(kind)
			if err != nil {
				return NewUsageError(err.Error())
			}
			repo, err := a.repository()
			if err != nil {
				return err
			}
			in.SectionID = sectionID
			in.Kind = k
			item, err := repo.AddContent(cmd.Context(), in)
			if err != nil {
				return err
			}
			return a.emit(cmd, item, func(w io.Writer) {
				fmt.Fprintf(w, "%s content %d in section %d: %s\n", SuccessStyle.Render("Created"), item.ID, item.SectionID, contentSummary(*item))
			})
		},
	}
	f := cmd.Flags()
	f.StringVar(&kind, "type", string(model.KindText), "text, image, video or document")
	f.StringVar(&in.Body, "text", "", "text body (text items)")
	f.StringVar(&in.MediaRef, "media", "", "media reference, relative to export.media_dir (media items)")
	f.StringVar(&in.ButtonLabel, "button", "", "button label")
	f.Int64Var(&in.CreatedBy, "user", 0, "creator user id")
	return cmd
}

func newContentListCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list <section-id>",
		Short: "List the content items of a section",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sectionID, err := parseID("section id", args[0])
			if err != nil {
				return err
			}
			repo, err := a.repository()
			if err != nil {
				return err
			}
			items, err := repo.ListContent(cmd.Context(), sectionID)
			if err != nil {
				return err
			}
			return a.emit(cmd, nonNil(items), func(w io.Writer) {
				if len(items) == 0 {
					fmt.Fprintln(w, DimStyle.Render("No content."))
					return
				}
				t := newTable("ID", "TYPE", "ORDER", "BUTTON", "CONTENT")
				for _, it := range items {
					t.add(strconv.FormatInt(it.ID, 10), it.Kind.String(), strconv.Itoa(it.OrderIndex), it.ButtonLabel, contentPayload(it))
				}
				t.render(w)
			})
		},
	}
}

// contentDetail is the --json shape of content show.
type contentDetail struct {
	Content *model.ContentItem `json:"content"`
	Section *model.Section     `json:"section"`
}

func newContentShowCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show a content item and the section it belongs to",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("content id", args[0])
			if err != nil {
				return err
			}
			repo, err := a.repository()
			if err != nil {
				return err
			}
			item, sec, err := repo.GetContentWithSection(cmd.Context(), id)
			if err != nil {
				return err
			}
			return a.emit(cmd, contentDetail{Content: item, Section: sec}, func(w io.Writer) {
				fmt.Fprintln(w, TitleStyle.Render(fmt.Sprintf("Content %d", item.ID)))
				fmt.Fprintln(w, RenderField("Section", fmt.Sprintf("%d %s", sec.ID, sectionLabel(*sec))))
				fmt.Fprintln(w, RenderField("Type", item.Kind.String()))
				if item.ButtonLabel != "" {
					fmt.Fprintln(w, RenderField("Button", item.ButtonLabel))
				}
				fmt.Fprintln(w, RenderField("Order", strconv.Itoa(item.OrderIndex)))
				fmt.Fprintln(w, RenderField("Created", formatTime(item.CreatedAt)))
				if item.Kind.IsMedia() {
					fmt.Fprintln(w, RenderField("Media", item.MediaRef))
				} else {
					fmt.Fprintln(w)
					fmt.Fprintln(w, item.Body)
				}
			})
		},
	}
}

func newContentUpdateCommand(a *app) *cobra.Command {
	var (
		sectionID                 int64
		kind, text, media, button string
		order                     int
	)
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Change a content item's fields",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("content id", args[0])
			if err != nil {
				return err
			}
			f := cmd.Flags()
			var upd model.ContentUpdate
			if f.Changed("section") {
				upd.SectionID = &sectionID
			}
			if f.Changed("type") {
				k, err := model.ParseContentKind(kind)
				if err != nil {
					return NewUsageError(err.Error())
				}
				upd.Kind = &k
			}
			if f.Changed("text") {
				upd.Body = &text
			}
			if f.Changed("media") {
				upd.MediaRef = &media
			}
			if f.Changed("button") {
				upd.ButtonLabel = &button
			}
			if f.Changed("order") {
				upd.OrderIndex = &order
			}
			if upd.IsEmpty() {
				return NewUsageError("nothing to update: pass at least one of --section, --type, --text, --media, --button, --order")
			}

			repo, err := a.repository()
			if err != nil {
				return err
			}
			if err := repo.UpdateContent(cmd.Context(), id, upd); err != nil {
				return err
			}
			item, _, err := repo.GetContentWithSection(cmd.Context(), id)
			if err != nil {
				return err
			}
			return a.emit(cmd, item, func(w io.Writer) {
				fmt.Fprintf(w, "%s content %d: %s\n", SuccessStyle.Render("Updated"), item.ID, contentSummary(*item))
			})
		},
	}
	f := cmd.Flags()
	f.Int64Var(&sectionID, "section", 0, "move to another section")
	f.StringVar(&kind, "type", "", "text, image, video or document")
	f.StringVar(&text, "text", "", "new text body")
	f.StringVar(&media, "media", "", "new media reference")
	f.StringVar(&button, "button", "", "new button label")
	f.IntVar(&order, "order", 0, "position within the section")
	return cmd
}

func newContentDeleteCommand(a *app) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a content item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("content id", args[0])
			if err != nil {
				return err
			}
			repo, err := a.repository()
			if err != nil {
				return err
			}
			item, _, err := repo.GetContentWithSection(cmd.Context(), id)
			if err != nil {
				return err
			}
			if !yes && !confirm(cmd.InOrStdin(), cmd.ErrOrStderr(), fmt.Sprintf("Delete content %d (%s)?", item.ID, contentSummary(*item))) {
				return NewUsageError("cancelled")
			}
			if err := repo.DeleteContent(cmd.Context(), id); err != nil {
				return err
			}
			return a.emit(cmd, map[string]int64{"deleted": id}, func(w io.Writer) {
				fmt.Fprintf(w, "%s content %d\n", SuccessStyle.Render("Deleted"), id)
			})
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip the confirmation prompt")
	return cmd
}

// =============================================================================
// FORMATTING HELPERS
// =============================================================================

// contentPayload is the body of a text item or the reference of a media item.
func contentPayload(it model.ContentItem) string {
	if it.Kind.IsMedia() {
		return it.MediaRef
	}
	return it.Body
}

// contentSummary is a one-line description of an item.
func contentSummary(it model.ContentItem) string {
	s := "[" + it.Kind.String() + "] "
	if it.ButtonLabel != "" {
		s += it.ButtonLabel + ": "
	}
	return s + util.TruncateWidth(util.SingleLine(contentPayload(it)), maxCellWidth)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04")
}
