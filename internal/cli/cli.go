// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime"
	"strconv"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/jeranaias/fieldref/internal/config"
	"github.com/jeranaias/fieldref/internal/export"
	"github.com/jeranaias/fieldref/internal/logging"
	"github.com/jeranaias/fieldref/internal/storage"
)

// Version information (can be overridden at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// Command annotations read by the root pre-run hook.
const (
	// annotationNoLoad skips reading the config file (config init)
	annotationNoLoad = "fieldref/no-load"
	// annotationVerbose keeps the configured log level instead of warn
	annotationVerbose = "fieldref/verbose"
)

// =============================================================================
// APPLICATION STATE
// =============================================================================

// app carries the state shared by every command of one invocation.
type app struct {
	configPath string
	logLevel   string
	jsonMode   bool

	cfg  *config.Config
	log  *logging.Logger
	repo *storage.Repository
}

// rootCommand builds the command tree bound to a.
func (a *app) rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "fieldref",
		Short: "Hierarchical field reference with offline export",
		Long: `fieldref manages a tree of reference sections and their content items,
serves them over an HTTP API, and packs the whole tree into a self-contained
offline archive (static page, JSON mirror and media).`,
		Version:       fmt.Sprintf("%s (commit %s, built %s, %s)", Version, GitCommit, BuildDate, runtime.Version()),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.configPath, "config", "", "config file (default ~/.fieldref/config.toml)")
	pf.StringVar(&a.logLevel, "log-level", "", "log level: trace, debug, info, warn, error")
	pf.BoolVar(&a.jsonMode, "json", false, "print JSON instead of formatted text")

	root.AddCommand(
		newInitCommand(a),
		newSectionCommand(a),
		newContentCommand(a),
		newFavoriteCommand(a),
		newTreeCommand(a),
		newSearchCommand(a),
		newStatsCommand(a),
		newExportCommand(a),
		newServeCommand(a),
		newConfigCommand(a),
	)
	return root
}

// setup loads configuration and builds the logger.
func (a *app) setup(cmd *cobra.Command) error {
	if cmd.Annotations[annotationNoLoad] == "true" {
		a.cfg = config.Default()
	} else {
		cfg, err := config.Load(a.configPath)
		if err != nil {
			return &ConfigError{Err: err}
		}
		a.cfg = cfg
	}

	level := a.cfg.Log.Level
	if a.logLevel != "" {
		level = a.logLevel
	}
	lvl, err := logging.ParseLevel(level)
	if err != nil {
		return NewUsageError(err.Error())
	}
	// One-shot commands stay quiet unless asked
	if a.logLevel == "" && cmd.Annotations[annotationVerbose] != "true" && lvl < zerolog.WarnLevel {
		lvl = zerolog.WarnLevel
	}

	b := logging.New().FromWriter(cmd.ErrOrStderr()).Console(a.cfg.Log.Console).Level(lvl)
	if a.cfg.Log.File != "" {
		b = b.FromPath(a.cfg.Log.File)
	}
	l, err := b.Make()
	if err != nil {
		return &ConfigError{Err: err}
	}
	a.log = l
	return nil
}

// resolvedConfigPath returns --config or the default location.
func (a *app) resolvedConfigPath() (string, error) {
	if a.configPath != "" {
		return a.configPath, nil
	}
	return config.ConfigPath()
}

// logger returns the built logger, or a disabled one before setup.
func (a *app) logger() zerolog.Logger {
	if a.log == nil {
		return zerolog.Nop()
	}
	return a.log.Logger
}

// repository opens the configured repository once per invocation.
func (a *app) repository() (*storage.Repository, error) {
	if a.repo != nil {
		return a.repo, nil
	}
	repo, err := storage.Open(storageConfig(a.cfg.Storage), a.logger())
	if err != nil {
		return nil, err
	}
	a.repo = repo
	return repo, nil
}

// pipeline builds the export pipeline over repo.
func (a *app) pipeline(repo *storage.Repository) *export.Pipeline {
	e := a.cfg.Export
	return export.New(repo, &export.Options{
		WorkDir:         e.WorkDir,
		Media:           export.DirResolver{Root: e.MediaDir},
		SiteTitle:       e.SiteTitle,
		AllowMarkup:     e.AllowMarkup,
		MinInterval:     e.MinInterval(),
		Burst:           e.Burst,
		DeliveryTimeout: e.DeliveryTimeout(),
		HistorySize:     e.HistorySize,
	}, a.logger())
}

// close releases the repository and log file.
func (a *app) close() {
	if a.repo != nil {
		if err := a.repo.Close(); err != nil {
			log := a.logger()
			log.Warn().Err(err).Msg("closing repository")
		}
		a.repo = nil
	}
	if a.log != nil {
		a.log.Close()
		a.log = nil
	}
}

// emit prints data as JSON in --json mode, otherwise calls human.
func (a *app) emit(cmd *cobra.Command, data interface{}, human func(w io.Writer)) error {
	if a.jsonMode {
		return NewJSONResponse(cmd.CommandPath(), data).Print(cmd.OutOrStdout())
	}
	human(cmd.OutOrStdout())
	return nil
}

func storageConfig(c config.StorageConfig) *storage.Config {
	return &storage.Config{
		Driver:          c.Driver,
		DSN:             c.DSN,
		MaxTitleLength:  c.MaxTitleLength,
		MaxButtonLength: c.MaxButtonLength,
		DeletePolicy:    storage.DeletePolicy(c.DeletePolicy),
	}
}

// =============================================================================
// ENTRY POINTS
// =============================================================================

// run executes one invocation with the given arguments and streams.
func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) (*app, error) {
	a := &app{}
	root := a.rootCommand()
	root.SetArgs(args)
	root.SetIn(stdin)
	root.SetOut(stdout)
	root.SetErr(stderr)
	defer a.close()
	return a, root.ExecuteContext(ctx)
}

// Execute runs the command line and returns the process exit code.
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	if err != nil {
		DisplayError(os.Stderr, err, a.jsonMode)
	}
	return GetExitCode(err)
}

// =============================================================================
// ARGUMENT HELPERS
// =============================================================================

// parseID parses a positional numeric id.
func parseID(name, raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, NewUsageError(fmt.Sprintf("invalid %s %q: expected a number", name, raw))
	}
	return id, nil
}
