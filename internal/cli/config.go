// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/jeranaias/fieldref/internal/config"
)

func newConfigCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Create, show and edit the configuration file",
	}
	cmd.AddCommand(
		newConfigInitCommand(a),
		newConfigShowCommand(a),
		newConfigGetCommand(a),
		newConfigSetCommand(a),
	)
	return cmd
}

func newConfigInitCommand(a *app) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:         "init",
		Short:       "Write a configuration file with default values",
		Annotations: map[string]string{annotationNoLoad: "true"},
		Args:        cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := a.resolvedConfigPath()
			if err != nil {
				return &ConfigError{Err: err}
			}
			created, err := writeDefaultConfig(path, force)
			if err != nil {
				return err
			}
			if !created {
				return NewUsageError(fmt.Sprintf("%s already exists (use --force to overwrite)", path))
			}
			return a.emit(cmd, map[string]string{"path": path}, func(w io.Writer) {
				fmt.Fprintf(w, "%s %s\n", SuccessStyle.Render("Wrote"), path)
			})
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	return cmd
}

// writeDefaultConfig saves the defaults to path unless a file is already
// there and force is false. It reports whether it wrote anything.
func writeDefaultConfig(path string, force bool) (bool, error) {
	if _, err := os.Stat(path); err == nil && !force {
		return false, nil
	} else if err != nil && !errors.Is(err, os.ErrNotExist) {
		return false, &ConfigError{Err: err}
	}
	if err := config.Save(config.Default(), path); err != nil {
		return false, &ConfigError{Err: err}
	}
	return true, nil
}

func newConfigShowCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration (secrets redacted)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			redacted := a.cfg.String()
			return a.emit(cmd, json.RawMessage(redacted), func(w io.Writer) {
				fmt.Fprintln(w, TitleStyle.Render("Configuration"))
				if path, err := a.resolvedConfigPath(); err == nil {
					fmt.Fprintln(w, DimStyle.Render(path))
				}
				fmt.Fprintln(w, redacted)
			})
		},
	}
}

func newConfigGetCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:       "get <key>",
		Short:     "Print one configuration value",
		Example:   "  fieldref config get export.site_title",
		Args:      cobra.ExactArgs(1),
		ValidArgs: sortedKeys(),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := a.cfg.Get(args[0])
			if err != nil {
				return NewUsageError(err.Error())
			}
			if args[0] == "server.admin_token" && v != "" {
				v = "[REDACTED]"
			}
			return a.emit(cmd, map[string]interface{}{args[0]: v}, func(w io.Writer) {
				fmt.Fprintln(w, v)
			})
		},
	}
}

func newConfigSetCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Change one value in the configuration file",
		Long: `Change one value in the configuration file. Only the file is read and
written, so FIELDREF_* environment overrides are never persisted.`,
		Example: `  fieldref config set export.site_title "Field Medic Guide"
  fieldref config set server.allowed_origins "https://a.example,https://b.example"`,
		Annotations: map[string]string{annotationNoLoad: "true"},
		Args:        cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := a.resolvedConfigPath()
			if err != nil {
				return &ConfigError{Err: err}
			}

			cfg := config.Default()
			if _, err := os.Stat(path); err == nil {
				if err := config.LoadTOML(cfg, path); err != nil {
					return &ConfigError{Err: err}
				}
			}
			if err := cfg.Set(args[0], args[1]); err != nil {
				return NewUsageError(err.Error())
			}
			cfg.SetDefaults()
			if err := cfg.Validate(); err != nil {
				return NewUsageError(err.Error())
			}
			if err := config.Save(cfg, path); err != nil {
				return &ConfigError{Err: err}
			}

			v, _ := cfg.Get(args[0])
			return a.emit(cmd, map[string]interface{}{args[0]: v}, func(w io.Writer) {
				fmt.Fprintf(w, "%s %s in %s\n", SuccessStyle.Render("Set"), args[0], path)
			})
		},
	}
}

func sortedKeys() []string {
	keys := config.GetAllKeys()
	sort.Strings(keys)
	return keys
}
