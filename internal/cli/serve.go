// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/jeranaias/fieldref/internal/config"
	"github.com/jeranaias/fieldref/internal/logging"
	"github.com/jeranaias/fieldref/internal/server"
)

func newServeCommand(a *app) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Long: `Serve the reference tree over HTTP until interrupted.

Reading routes are public. Routes that change sections or content, and the
admin statistics, need "Authorization: Bearer <server.admin_token>"; they are
disabled when no token is configured.

Edits to export.site_title and export.allow_markup in the config file take
effect for the next export without a restart.`,
		Annotations: map[string]string{annotationVerbose: "true"},
		Args:        cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr != "" {
				a.cfg.Server.Addr = addr
			}
			repo, err := a.repository()
			if err != nil {
				return err
			}
			pipeline := a.pipeline(repo)
			log := a.logger()

			if a.cfg.Server.AdminToken == "" {
				log.Warn().Msg("server.admin_token is empty; admin routes are disabled")
			}

			ctx := cmd.Context()
			if path, err := a.resolvedConfigPath(); err == nil {
				if _, statErr := os.Stat(path); statErr == nil {
					watchLog := logging.Component(log, "config")
					err := config.Watch(ctx, path, log, func(c *config.Config) {
						pipeline.SetRendering(c.Export.SiteTitle, c.Export.AllowMarkup)
						watchLog.Info().
							Str("site_title", c.Export.SiteTitle).
							Bool("allow_markup", c.Export.AllowMarkup).
							Msg("export rendering reloaded")
					})
					if err != nil {
						log.Warn().Err(err).Msg("config reload disabled")
					}
				}
			}

			return server.New(a.cfg.Server, repo, pipeline, log).ListenAndServe(ctx)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default server.addr)")
	return cmd
}
