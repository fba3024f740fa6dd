// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/jeranaias/fieldref/internal/model"
)

func newSectionCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "section",
		Aliases: []string{"sections"},
		Short:   "Manage reference sections",
	}
	cmd.AddCommand(
		newSectionAddCommand(a),
		newSectionListCommand(a),
		newSectionShowCommand(a),
		newSectionUpdateCommand(a),
		newSectionMoveCommand(a),
		newSectionDeleteCommand(a),
	)
	return cmd
}

func newSectionAddCommand(a *app) *cobra.Command {
	var (
		in     model.NewSection
		parent int64
	)
	cmd := &cobra.Command{
		Use:   "add <title>",
		Short: "Create a section",
		Example: `  fieldref section add "First aid" --icon 🩹
  fieldref section add "Burns" --parent 1 --description "Thermal and chemical"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, err := a.repository()
			if err != nil {
				return err
			}
			in.Title = args[0]
			if cmd.Flags().Changed("parent") {
				in.ParentID = &parent
			}
			sec, err := repo.AddSection(cmd.Context(), in)
			if err != nil {
				return err
			}
			return a.emit(cmd, sec, func(w io.Writer) {
				fmt.Fprintf(w, "%s section %d %s\n", SuccessStyle.Render("Created"), sec.ID, sectionLabel(*sec))
			})
		},
	}
	f := cmd.Flags()
	f.Int64Var(&parent, "parent", 0, "parent section id (default: top level)")
	f.StringVar(&in.Description, "description", "", "short description")
	f.StringVar(&in.Icon, "icon", "", "single emoji icon (default "+model.DefaultIcon+")")
	f.Int64Var(&in.CreatedBy, "user", 0, "creator user id")
	return cmd
}

func newSectionListCommand(a *app) *cobra.Command {
	var parent int64
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the active sections under a parent",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, err := a.repository()
			if err != nil {
				return err
			}
			var parentID *int64
			if cmd.Flags().Changed("parent") {
				parentID = &parent
			}
			sections, err := repo.ListChildren(cmd.Context(), parentID)
			if err != nil {
				return err
			}
			return a.emit(cmd, nonNil(sections), func(w io.Writer) {
				if len(sections) == 0 {
					fmt.Fprintln(w, DimStyle.Render("No sections."))
					return
				}
				t := newTable("ID", "SECTION", "ORDER", "DESCRIPTION")
				for _, s := range sections {
					t.add(strconv.FormatInt(s.ID, 10), sectionLabel(s), strconv.Itoa(s.OrderIndex), s.Description)
				}
				t.render(w)
			})
		},
	}
	cmd.Flags().Int64Var(&parent, "parent", 0, "parent section id (default: top level)")
	return cmd
}

// sectionDetail is the --json shape of section show.
type sectionDetail struct {
	Section  *model.Section      `json:"section"`
	Children []model.Section     `json:"children"`
	Content  []model.ContentItem `json:"content"`
}

func newSectionShowCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show a section with its children and content",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("section id", args[0])
			if err != nil {
				return err
			}
			repo, err := a.repository()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			sec, err := repo.GetSection(ctx, id)
			if err != nil {
				return err
			}
			children, err := repo.ListChildren(ctx, &id)
			if err != nil {
				return err
			}
			items, err := repo.ListContent(ctx, id)
			if err != nil {
				return err
			}

			detail := sectionDetail{Section: sec, Children: nonNil(children), Content: nonNil(items)}
			return a.emit(cmd, detail, func(w io.Writer) {
				fmt.Fprintln(w, TitleStyle.Render(sectionLabel(*sec)))
				fmt.Fprintln(w, RenderField("ID", strconv.FormatInt(sec.ID, 10)))
				if sec.Description != "" {
					fmt.Fprintln(w, RenderField("Description", sec.Description))
				}
				fmt.Fprintln(w, RenderField("Parent", formatParent(sec.ParentID)))
				fmt.Fprintln(w, RenderField("Order", strconv.Itoa(sec.OrderIndex)))
				fmt.Fprintln(w, RenderField("Status", RenderStatus(activeWord(sec.Active))))
				fmt.Fprintln(w, RenderField("Created", formatTime(sec.CreatedAt)))

				if len(children) > 0 {
					fmt.Fprintln(w)
					fmt.Fprintln(w, SectionStyle.Render("Subsections"))
					for _, c := range children {
						fmt.Fprintf(w, "  %s %s\n", DimStyle.Render(fmt.Sprintf("%4d", c.ID)), sectionLabel(c))
					}
				}
				if len(items) > 0 {
					fmt.Fprintln(w)
					fmt.Fprintln(w, SectionStyle.Render("Content"))
					for _, it := range items {
						fmt.Fprintf(w, "  %s %s\n", DimStyle.Render(fmt.Sprintf("%4d", it.ID)), contentSummary(it))
					}
				}
			})
		},
	}
}

func newSectionUpdateCommand(a *app) *cobra.Command {
	var (
		title, description, icon string
		order                    int
		active                   bool
	)
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Change a section's fields",
		Example: `  fieldref section update 3 --title "Burns and scalds"
  fieldref section update 3 --order 0
  fieldref section update 3 --active=false`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("section id", args[0])
			if err != nil {
				return err
			}
			f := cmd.Flags()
			var upd model.SectionUpdate
			if f.Changed("title") {
				upd.Title = &title
			}
			if f.Changed("description") {
				upd.Description = &description
			}
			if f.Changed("icon") {
				upd.Icon = &icon
			}
			if f.Changed("order") {
				upd.OrderIndex = &order
			}
			if f.Changed("active") {
				upd.Active = &active
			}
			if upd.IsEmpty() {
				return NewUsageError("nothing to update: pass at least one of --title, --description, --icon, --order, --active")
			}
			return a.updateSection(cmd, id, upd)
		},
	}
	f := cmd.Flags()
	f.StringVar(&title, "title", "", "new title")
	f.StringVar(&description, "description", "", "new description")
	f.StringVar(&icon, "icon", "", "new icon (empty resets to default)")
	f.IntVar(&order, "order", 0, "position among siblings")
	f.BoolVar(&active, "active", true, "whether the section is visible")
	return cmd
}

func newSectionMoveCommand(a *app) *cobra.Command {
	var (
		parent int64
		toRoot bool
	)
	cmd := &cobra.Command{
		Use:   "move <id>",
		Short: "Move a section under another parent",
		Example: `  fieldref section move 7 --parent 2
  fieldref section move 7 --root`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("section id", args[0])
			if err != nil {
				return err
			}
			hasParent := cmd.Flags().Changed("parent")
			if hasParent == toRoot {
				return NewUsageError("pass exactly one of --parent or --root")
			}
			upd := model.SectionUpdate{ToRoot: toRoot}
			if hasParent {
				upd.ParentID = &parent
			}
			return a.updateSection(cmd, id, upd)
		},
	}
	cmd.Flags().Int64Var(&parent, "parent", 0, "new parent section id")
	cmd.Flags().BoolVar(&toRoot, "root", false, "move to the top level")
	return cmd
}

// updateSection applies upd and prints the stored result.
func (a *app) updateSection(cmd *cobra.Command, id int64, upd model.SectionUpdate) error {
	repo, err := a.repository()
	if err != nil {
		return err
	}
	if err := repo.UpdateSection(cmd.Context(), id, upd); err != nil {
		return err
	}
	sec, err := repo.GetSection(cmd.Context(), id)
	if err != nil {
		return err
	}
	return a.emit(cmd, sec, func(w io.Writer) {
		fmt.Fprintf(w, "%s section %d %s %s\n", SuccessStyle.Render("Updated"), sec.ID, sectionLabel(*sec),
			DimStyle.Render("(parent "+formatParent(sec.ParentID)+", order "+strconv.Itoa(sec.OrderIndex)+")"))
	})
}

func newSectionDeleteCommand(a *app) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a section and its content",
		Long: `Delete a section together with its content items and favorites.
Child sections are moved up to the deleted section's parent, or deleted too
when storage.delete_policy is "cascade".`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("section id", args[0])
			if err != nil {
				return err
			}
			repo, err := a.repository()
			if err != nil {
				return err
			}
			sec, err := repo.GetSection(cmd.Context(), id)
			if err != nil {
				return err
			}
			if !yes && !confirm(cmd.InOrStdin(), cmd.ErrOrStderr(), fmt.Sprintf("Delete section %d %s?", sec.ID, sectionLabel(*sec))) {
				return NewUsageError("cancelled")
			}
			if err := repo.DeleteSection(cmd.Context(), id); err != nil {
				return err
			}
			return a.emit(cmd, map[string]int64{"deleted": id}, func(w io.Writer) {
				fmt.Fprintf(w, "%s section %d\n", SuccessStyle.Render("Deleted"), id)
			})
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip the confirmation prompt")
	return cmd
}

// =============================================================================
// FORMATTING HELPERS
// =============================================================================

func sectionLabel(s model.Section) string {
	return s.DisplayIcon() + " " + s.Title
}

func formatParent(id *int64) string {
	if id == nil {
		return "top level"
	}
	return strconv.FormatInt(*id, 10)
}

func activeWord(active bool) string {
	if active {
		return "active"
	}
	return "inactive"
}

// nonNil keeps empty lists as [] rather than null in JSON output.
func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
