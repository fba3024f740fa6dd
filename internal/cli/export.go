// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/jeranaias/fieldref/internal/export"
	"github.com/jeranaias/fieldref/internal/logging"
	"github.com/jeranaias/fieldref/internal/transport"
)

// exportOutput is the --json shape of export.
type exportOutput struct {
	*export.Result
	Path string `json:"path"`
}

func newExportCommand(a *app) *cobra.Command {
	var outbox string
	cmd := &cobra.Command{
		Use:   "export <user-id>",
		Short: "Build an offline pack and place it in the outbox",
		Long: `Snapshot the whole active tree, copy its media, render index.html,
README.md and the JSON mirror, and zip them into <outbox>/<user-id>_offline_pack.zip.
The user is marked as an offline-mode user once the pack is delivered.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := parseID("user id", args[0])
			if err != nil {
				return err
			}
			if outbox == "" {
				outbox = a.cfg.Export.OutboxDir
			}
			repo, err := a.repository()
			if err != nil {
				return err
			}

			box := &transport.Outbox{Dir: outbox, Log: logging.Component(a.logger(), "outbox")}
			res, err := a.pipeline(repo).Export(cmd.Context(), userID, box)
			if err != nil {
				if errors.Is(err, export.ErrExportInProgress) || errors.Is(err, export.ErrRateLimited) {
					return err
				}
				return fmt.Errorf("%s (%w)", export.FailureMessage, err)
			}

			out := exportOutput{Result: res, Path: box.PathFor(userID)}
			return a.emit(cmd, out, func(w io.Writer) {
				fmt.Fprintln(w, transport.Caption(res))
				fmt.Fprintln(w, RenderSeparator(40))
				fmt.Fprintln(w, RenderField("Saved to", out.Path))
				fmt.Fprintln(w, RenderField("Checksum", res.Checksum))
				for _, id := range res.Unavailable {
					fmt.Fprintf(w, "%s content %d has no media file\n", WarningStyle.Render("!"), id)
				}
			})
		},
	}
	cmd.Flags().StringVar(&outbox, "outbox", "", "directory to place the pack in (default export.outbox_dir)")
	return cmd
}
