// Package cli provides the command-line interface for chartform.
package cli

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/bnema/chartform/internal/api"
	"github.com/bnema/chartform/internal/config"
	"github.com/bnema/chartform/internal/descriptor"
	"github.com/bnema/chartform/internal/gitsync"
	"github.com/bnema/chartform/internal/history"
	"github.com/bnema/chartform/internal/logging"
	"github.com/bnema/chartform/internal/store"
)

// BuildInfo holds build-time information injected via ldflags.
type BuildInfo struct {
	Version   string
	Commit    string
	BuildDate string
}

// NewRootCmd creates the root command for chartform.
func NewRootCmd(info BuildInfo) *cobra.Command {
	var configPath string

	rootCmd := &cobra.Command{
		Use:     "chartform",
		Short:   "Edit Helm values through a schema-driven form backend",
		Long:    `chartform serves a values.yaml document as a typed, annotated schema for a form UI, applies selective updates that honor read-only and enum protections, and optionally mirrors the document to a git repository.`,
		Version: fmt.Sprintf("%s (commit %s, built %s)", info.Version, info.Commit, info.BuildDate),
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), configPath)
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to chartform.yaml")
	rootCmd.AddCommand(NewSchemaCmd(), NewValidateCmd(), NewConfigCmd(&configPath))
	return rootCmd
}

func runServe(parent context.Context, configPath string) error {
	manager, err := config.NewManager(configPath)
	if err != nil {
		return fmt.Errorf("failed to initialize config: %w", err)
	}
	if err := manager.Load(); err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	cfg := manager.Get()

	log := logging.FromSettings(cfg.Logging.Level, cfg.Logging.Format)

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	descriptors := descriptor.NewProvider(cfg.Descriptor.Path, log)
	if cfg.Descriptor.Watch {
		if err := descriptors.Watch(ctx); err != nil {
			log.Warn().Err(err).Msg("descriptor watch unavailable")
		}
	}

	opts := api.Options{
		Store:       store.New(cfg.Values.Path),
		Descriptors: descriptors,
		CORSOrigins: cfg.Server.CORSOrigins,
	}

	if cfg.History.Path != "" {
		recorder, err := history.Open(cfg.History.Path)
		if err != nil {
			return fmt.Errorf("failed to open history database: %w", err)
		}
		defer recorder.Close()
		opts.Recorder = recorder
	}

	mirror := gitsync.New(cfg.Git, log)
	if mirror.Enabled() {
		// A broken mirror degrades to local-only editing; the server still
		// comes up.
		if err := mirror.Init(); err != nil {
			log.Warn().Err(err).Msg("git mirror initialization failed")
		}
	}
	opts.Mirror = mirror

	server := api.NewServer(opts, log)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.ListenAndServe(ctx, cfg.Server.Addr())
	})
	return g.Wait()
}
