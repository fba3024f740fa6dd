// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"io"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/jeranaias/fieldref/internal/model"
)

// =============================================================================
// FAVORITES
// =============================================================================

func newFavoriteCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "favorite",
		Aliases: []string{"fav"},
		Short:   "Manage a user's favorite sections",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "toggle <user-id> <section-id>",
			Short: "Add a section to favorites, or remove it if already there",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				userID, err := parseID("user id", args[0])
				if err != nil {
					return err
				}
				sectionID, err := parseID("section id", args[1])
				if err != nil {
					return err
				}
				repo, err := a.repository()
				if err != nil {
					return err
				}
				res, err := repo.ToggleFavorite(cmd.Context(), userID, sectionID)
				if err != nil {
					return err
				}
				return a.emit(cmd, map[string]model.ToggleResult{"result": res}, func(w io.Writer) {
					fmt.Fprintf(w, "%s section %d for user %d\n", RenderStatus(string(res)), sectionID, userID)
				})
			},
		},
		&cobra.Command{
			Use:   "list <user-id>",
			Short: "List a user's favorite sections",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				userID, err := parseID("user id", args[0])
				if err != nil {
					return err
				}
				repo, err := a.repository()
				if err != nil {
					return err
				}
				favs, err := repo.ListFavorites(cmd.Context(), userID)
				if err != nil {
					return err
				}
				return a.emit(cmd, nonNil(favs), func(w io.Writer) {
					if len(favs) == 0 {
						fmt.Fprintln(w, DimStyle.Render("No favorites."))
						return
					}
					t := newTable("ID", "SECTION", "DESCRIPTION")
					for _, s := range favs {
						t.add(strconv.FormatInt(s.ID, 10), sectionLabel(s), s.Description)
					}
					t.render(w)
				})
			},
		},
	)
	return cmd
}

// =============================================================================
// STATS
// =============================================================================

func newStatsCommand(a *app) *cobra.Command {
	var (
		admin  bool
		userID int64
	)
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show usage statistics",
		Example: `  fieldref stats
  fieldref stats --admin
  fieldref stats --user 42`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, err := a.repository()
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			switch {
			case cmd.Flags().Changed("user"):
				st, err := repo.UserStat(ctx, userID)
				if err != nil {
					return err
				}
				return a.emit(cmd, st, func(w io.Writer) { renderUserStat(w, st) })
			case admin:
				st, err := repo.AdminStats(ctx)
				if err != nil {
					return err
				}
				return a.emit(cmd, st, func(w io.Writer) { renderAdminStats(w, st) })
			default:
				st, err := repo.SummaryStats(ctx)
				if err != nil {
					return err
				}
				return a.emit(cmd, st, func(w io.Writer) { renderSummary(w, st) })
			}
		},
	}
	cmd.Flags().BoolVar(&admin, "admin", false, "include catalogue counts, popular sections and recent users")
	cmd.Flags().Int64Var(&userID, "user", 0, "show one user's record")
	return cmd
}

func count(n int64) string {
	return humanize.Comma(n)
}

func renderSummary(w io.Writer, st *model.SummaryStats) {
	fmt.Fprintln(w, TitleStyle.Render("Usage"))
	fmt.Fprintln(w, RenderField("Users", count(st.TotalUsers)))
	fmt.Fprintln(w, RenderField("Active today", count(st.DailyUsers)))
	fmt.Fprintln(w, RenderField("Active 7 days", count(st.WeeklyUsers)))
	fmt.Fprintln(w, RenderField("Section views", count(st.SectionsViewed)))
	fmt.Fprintln(w, RenderField("Content views", count(st.ContentViewed)))
	fmt.Fprintln(w, RenderField("Offline users", count(st.OfflineUsers)))
	fmt.Fprintln(w, RenderField("Offline packs", count(st.OfflineDownloads)))
}

func renderAdminStats(w io.Writer, st *model.AdminStats) {
	renderSummary(w, &st.Users)
	fmt.Fprintln(w)
	fmt.Fprintln(w, TitleStyle.Render("Catalogue"))
	fmt.Fprintln(w, RenderField("Sections", count(st.ActiveSections)))
	fmt.Fprintln(w, RenderField("Content items", count(st.ContentItems)))

	if len(st.PopularSections) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, TitleStyle.Render("Most favorited"))
		t := newTable("ID", "SECTION", "FAVORITES")
		for _, p := range st.PopularSections {
			sec := model.Section{Title: p.Title, Icon: p.Icon}
			t.add(strconv.FormatInt(p.SectionID, 10), sectionLabel(sec), count(p.Favorites))
		}
		t.render(w)
	}

	if len(st.RecentUsers) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, TitleStyle.Render("Recent users"))
		t := newTable("USER", "LAST SEEN", "SECTIONS", "CONTENT", "OFFLINE")
		for _, u := range st.RecentUsers {
			t.add(strconv.FormatInt(u.UserID, 10), humanize.Time(u.LastSeen), count(u.SectionsViewed), count(u.ContentViewed), yesNo(u.OfflineMode))
		}
		t.render(w)
	}
}

func renderUserStat(w io.Writer, st *model.UserStat) {
	fmt.Fprintln(w, TitleStyle.Render(fmt.Sprintf("User %d", st.UserID)))
	fmt.Fprintln(w, RenderField("First seen", formatTime(st.FirstSeen)))
	fmt.Fprintln(w, RenderField("Last seen", formatTime(st.LastSeen)+" ("+humanize.Time(st.LastSeen)+")"))
	fmt.Fprintln(w, RenderField("Section views", count(st.SectionsViewed)))
	fmt.Fprintln(w, RenderField("Content views", count(st.ContentViewed)))
	fmt.Fprintln(w, RenderField("Offline mode", yesNo(st.OfflineMode)))
	fmt.Fprintln(w, RenderField("Offline packs", count(st.OfflineDownloads)))
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
