package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/seaward/stevedore/internal/builder"
	"github.com/seaward/stevedore/internal/config"
	"github.com/seaward/stevedore/internal/logging"
	"github.com/seaward/stevedore/internal/registry"
	"github.com/seaward/stevedore/internal/release"
	"github.com/seaward/stevedore/internal/toolchain"
)

const defaultLogLevel = "info"

func main() {
	var levelVar slog.LevelVar
	levelVar.Set(slog.LevelInfo)

	logger := logging.NewCLI(os.Stderr, &levelVar)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := newRootCommand(&levelVar)
	if err := root.ExecuteContext(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			slog.Warn("release interrupted", "error", err)
			os.Exit(130)
		}
		slog.Error("release failed", "error", err)
		os.Exit(1)
	}
}

func newRootCommand(levelVar *slog.LevelVar) *cobra.Command {
	var (
		logLevel     = defaultLogLevel
		jsonOutput   bool
		configPath   string
		frontendOnly bool
		backendOnly  bool
	)

	root := &cobra.Command{
		Use:           "stevedore",
		Short:         "Build and push the frontend and backend container images",
		Long:          "stevedore builds the container image for each release component,\npushes it to the configured registry, and cleans up local build artifacts.",
		Args:          cobra.NoArgs,
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := resolveConfigPath(configPath)
			if err != nil {
				return err
			}
			cfg, err := config.Load(path)
			if err != nil {
				return err
			}

			orchestrator := newOrchestrator(slog.Default(), cfg)
			return orchestrator.Run(cmd.Context(), parseMode(frontendOnly, backendOnly))
		},
	}

	root.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		level, err := parseLogLevel(logLevel)
		if err != nil {
			return err
		}
		levelVar.Set(level)
		if jsonOutput {
			slog.SetDefault(logging.NewJSON(os.Stderr, levelVar))
		}
		return nil
	}

	root.PersistentFlags().StringVar(&logLevel, "log-level", defaultLogLevel, "Set log verbosity (debug, info, warning, error)")
	root.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Emit logs as JSON")
	root.Flags().StringVar(&configPath, "config", "", "Path to the release configuration file (default "+config.DefaultConfigFile+" when present)")
	root.Flags().BoolVar(&frontendOnly, "frontend-only", false, "Release only the frontend component")
	root.Flags().BoolVar(&backendOnly, "backend-only", false, "Release only the backend component")
	root.MarkFlagsMutuallyExclusive("frontend-only", "backend-only")

	return root
}

func newOrchestrator(logger *slog.Logger, cfg *config.Release) *release.Orchestrator {
	runner := toolchain.ExecRunner{}

	var appBuild release.AppBuilder
	if cfg.AppBuild.Enabled {
		appBuild = &builder.AppBuilder{
			Logger:     logger.With("stage", "app-build"),
			Runner:     runner,
			Install:    cfg.AppBuild.Install,
			Build:      cfg.AppBuild.Build,
			EnvContent: cfg.AppBuild.EnvContent,
		}
	}

	workflow := &release.Workflow{
		Logger:   logger.With("service", "workflow"),
		Config:   cfg,
		Builder:  &builder.DockerBuilder{Logger: logger.With("stage", "build"), Runner: runner},
		AppBuild: appBuild,
		Registry: &registry.Client{
			Logger: logger.With("stage", "registry"),
			Runner: runner,
			URL:    cfg.Registry.URL,
			Region: cfg.Registry.Region,
		},
	}

	return &release.Orchestrator{
		Logger:   logger,
		Config:   cfg,
		Prereqs:  &toolchain.PrerequisiteChecker{Logger: logger.With("stage", "prerequisites"), Runner: runner},
		Workflow: workflow,
		Cleanup:  &release.Cleanup{Logger: logger.With("stage", "cleanup"), Runner: runner},
	}
}

func parseMode(frontendOnly, backendOnly bool) release.Mode {
	switch {
	case frontendOnly:
		return release.ModeFrontendOnly
	case backendOnly:
		return release.ModeBackendOnly
	default:
		return release.ModeAll
	}
}

func resolveConfigPath(flagValue string) (string, error) {
	if flagValue != "" {
		if _, err := os.Stat(flagValue); err != nil {
			return "", fmt.Errorf("config file %s: %w", flagValue, err)
		}
		return flagValue, nil
	}
	if _, err := os.Stat(config.DefaultConfigFile); err == nil {
		return config.DefaultConfigFile, nil
	}
	return "", nil
}

func parseLogLevel(value string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error", "err":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", value)
	}
}
