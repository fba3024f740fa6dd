// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

// initResult is the --json shape of init.
type initResult struct {
	ConfigPath    string `json:"config_path"`
	ConfigWritten bool   `json:"config_written"`
	Database      string `json:"database"`
	Seeded        int    `json:"seeded_sections"`
}

func newInitCommand(a *app) *cobra.Command {
	var (
		seed      bool
		creatorID int64
	)
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create the config file, directories and database",
		Long: `Write a default configuration file if none exists, create the media,
outbox and work directories, and create the database schema.

With --seed (or storage.seed = true) an empty repository gets a few starter
sections. A repository that already has sections is never seeded.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := a.resolvedConfigPath()
			if err != nil {
				return &ConfigError{Err: err}
			}
			written, err := writeDefaultConfig(path, false)
			if err != nil {
				return err
			}

			for _, dir := range []string{a.cfg.Export.MediaDir, a.cfg.Export.OutboxDir, a.cfg.Export.WorkDir} {
				if err := os.MkdirAll(dir, 0755); err != nil {
					return fmt.Errorf("create %s: %w", dir, err)
				}
			}

			repo, err := a.repository()
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("seed") {
				seed = a.cfg.Storage.Seed
			}
			res := initResult{ConfigPath: path, ConfigWritten: written, Database: a.cfg.Storage.Driver}
			if seed {
				if res.Seeded, err = repo.Seed(cmd.Context(), creatorID); err != nil {
					return err
				}
			}

			return a.emit(cmd, res, func(w io.Writer) {
				if written {
					fmt.Fprintln(w, RenderField("Config", path+" "+DimStyle.Render("(created)")))
				} else {
					fmt.Fprintln(w, RenderField("Config", path))
				}
				fmt.Fprintln(w, RenderField("Database", a.cfg.Storage.Driver))
				fmt.Fprintln(w, RenderField("Media", a.cfg.Export.MediaDir))
				fmt.Fprintln(w, RenderField("Outbox", a.cfg.Export.OutboxDir))
				if res.Seeded > 0 {
					fmt.Fprintln(w, RenderField("Seeded", fmt.Sprintf("%d sections", res.Seeded)))
				}
				fmt.Fprintln(w, SuccessStyle.Render("Ready."))
			})
		},
	}
	cmd.Flags().BoolVar(&seed, "seed", false, "add starter sections to an empty repository")
	cmd.Flags().Int64Var(&creatorID, "user", 0, "creator user id for seeded sections")
	return cmd
}
