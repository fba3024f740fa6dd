// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jeranaias/fieldref/internal/model"
	"github.com/jeranaias/fieldref/internal/storage"
	"github.com/jeranaias/fieldref/internal/util"
)

// treeNode is the --json shape of one section in the tree.
type treeNode struct {
	model.Section
	Content  []model.ContentItem `json:"content,omitempty"`
	Children []treeNode          `json:"children"`
}

func buildTree(snap *model.Snapshot, parent *int64, withContent bool) []treeNode {
	nodes := []treeNode{}
	for _, sec := range snap.Children(parent) {
		id := sec.ID
		n := treeNode{Section: sec, Children: buildTree(snap, &id, withContent)}
		if withContent {
			n.Content = snap.ContentOf(id)
		}
		nodes = append(nodes, n)
	}
	return nodes
}

func newTreeCommand(a *app) *cobra.Command {
	var withContent bool
	cmd := &cobra.Command{
		Use:   "tree",
		Short: "Print the whole active section tree",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, err := a.repository()
			if err != nil {
				return err
			}
			snap, err := repo.Snapshot(cmd.Context())
			if err != nil {
				return err
			}
			nodes := buildTree(snap, nil, withContent)
			return a.emit(cmd, nodes, func(w io.Writer) {
				if len(nodes) == 0 {
					fmt.Fprintln(w, DimStyle.Render("No sections."))
					return
				}
				fmt.Fprintln(w, TitleStyle.Render(a.cfg.Export.SiteTitle))
				renderTree(w, nodes, "", GetTerminalWidth())
			})
		},
	}
	cmd.Flags().BoolVarP(&withContent, "content", "c", false, "include content items")
	return cmd
}

// renderTree draws nodes with box-drawing connectors. Lines are cut to width
// before styling so escape codes never get truncated.
func renderTree(w io.Writer, nodes []treeNode, prefix string, width int) {
	for i, n := range nodes {
		last := i == len(nodes)-1
		branch, next := "├── ", "│   "
		if last {
			branch, next = "└── ", "    "
		}

		label := util.TruncateWidth(fmt.Sprintf("%s %s", sectionLabel(n.Section), idTag(n.ID)),
			max(width-util.StringWidth(prefix+branch), 10))
		fmt.Fprintln(w, SeparatorStyle.Render(prefix+branch)+styleTreeLabel(label))

		childPrefix := prefix + next
		for _, it := range n.Content {
			line := util.TruncateWidth(contentSummary(it), max(width-util.StringWidth(childPrefix)-2, 10))
			fmt.Fprintln(w, SeparatorStyle.Render(childPrefix)+DimStyle.Render("· "+line))
		}
		renderTree(w, n.Children, childPrefix, width)
	}
}

func idTag(id int64) string {
	return fmt.Sprintf("#%d", id)
}

// styleTreeLabel dims the trailing #id of a tree label.
func styleTreeLabel(label string) string {
	if i := strings.LastIndex(label, " #"); i >= 0 {
		return SectionStyle.Render(label[:i]) + DimStyle.Render(label[i:])
	}
	return SectionStyle.Render(label)
}

func newSearchCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "search <query>",
		Short: "Find active sections by title or description",
		Long: fmt.Sprintf(`Find active sections whose title or description contains the query,
ignoring case. Queries shorter than %d characters are rejected.`, storage.MinSearchLength),
		Example: `  fieldref search burn
  fieldref search "first aid"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, err := a.repository()
			if err != nil {
				return err
			}
			query := strings.Join(args, " ")
			found, err := repo.Search(cmd.Context(), query)
			if err != nil {
				return err
			}
			return a.emit(cmd, nonNil(found), func(w io.Writer) {
				if len(found) == 0 {
					fmt.Fprintln(w, DimStyle.Render(fmt.Sprintf("No sections match %q.", query)))
					return
				}
				t := newTable("ID", "SECTION", "PARENT", "DESCRIPTION")
				for _, s := range found {
					t.add(fmt.Sprint(s.ID), sectionLabel(s), formatParent(s.ParentID), s.Description)
				}
				t.render(w)
			})
		},
	}
}
