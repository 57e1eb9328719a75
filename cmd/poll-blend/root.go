package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/yourusername/poll-blend/internal/config"
	"github.com/yourusername/poll-blend/internal/corpus"
	"github.com/yourusername/poll-blend/internal/database"
	"github.com/yourusername/poll-blend/internal/logger"
	"github.com/yourusername/poll-blend/internal/metrics"
	"github.com/yourusername/poll-blend/internal/repository"
)

// app holds what every command shares: configuration, logging and the
// lazily opened database.
type app struct {
	configFile string
	cfg        *config.Config
	log        *logrus.Logger
	db         *database.DB
	repos      *repository.Repositories
}

func newRootCmd() *cobra.Command {
	a := &app{}

	rootCmd := &cobra.Command{
		Use:   "poll-blend",
		Short: "Blend fundamentals and polling forecasts",
		Long: `Fits how the error variance of a fundamentals model and of a polling
average changes with time to election, and combines both into a Gaussian
posterior over the vote share.`,
		Version:       fmt.Sprintf("%s (commit %s, built %s)", Version, GitCommit, BuildDate),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := a.loadConfig(cmd.Context()); err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			a.close()
		},
	}
	rootCmd.PersistentFlags().StringVarP(&a.configFile, "config", "c", "./config/config.yaml", "Path to configuration file")

	rootCmd.AddCommand(
		newFitCmd(a),
		newForecastCmd(a),
		newValidateCmd(a),
		newSimulateCmd(a),
		newImportCmd(a),
		newRunsCmd(a),
		newServeCmd(a),
	)
	return rootCmd
}

func (a *app) loadConfig(ctx context.Context) error {
	cfg, err := config.LoadWithDefaults(a.configFile)
	if err != nil {
		return err
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if err := config.LoadSecretsFromAWS(ctx, cfg); err != nil {
		return fmt.Errorf("failed to load secrets: %w", err)
	}
	if err := config.Validate(cfg); err != nil {
		return err
	}
	if err := config.ValidateEnvironment(cfg); err != nil {
		return err
	}

	a.cfg = cfg
	a.log = logger.NewLogger(cfg.App.LogLevel, cfg.App.Environment)
	metrics.InitRegistry()
	return nil
}

// repositories opens the database on first use. It returns nil when the
// database is disabled.
func (a *app) repositories(ctx context.Context) (*repository.Repositories, error) {
	if a.repos != nil || !a.cfg.Database.Enabled {
		return a.repos, nil
	}

	db, err := database.Initialize(ctx, a.cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	repos, err := repository.NewRepositories(db)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize repositories: %w", err)
	}
	a.db, a.repos = db, repos
	return repos, nil
}

func (a *app) requireRepositories(ctx context.Context, what string) (*repository.Repositories, error) {
	repos, err := a.repositories(ctx)
	if err != nil {
		return nil, err
	}
	if repos == nil {
		return nil, fmt.Errorf("%s requires the database; set database.enabled", what)
	}
	return repos, nil
}

// source returns the corpus to read: the file given on the command line, or
// the configured corpus source.
func (a *app) source(ctx context.Context, input, format string) (corpus.Source, error) {
	if format == "" {
		format = a.cfg.Corpus.Format
	}
	if input != "" {
		return corpus.NewFileSource(input, corpus.Format(format)), nil
	}

	cfg := a.cfg.Corpus
	cfg.Format = format

	var lister corpus.ObservationLister
	if corpus.SourceType(cfg.Source) == corpus.DatabaseSourceType {
		repos, err := a.requireRepositories(ctx, "a database corpus source")
		if err != nil {
			return nil, err
		}
		lister = repos.Observation
	}
	return corpus.NewFactory(cfg, lister, a.log).NewSource()
}

func (a *app) close() {
	if a.db != nil {
		a.db.Close()
		a.db, a.repos = nil, nil
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
