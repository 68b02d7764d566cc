// Package main implements the docrag CLI: ingest a document tree, then search
// and chat over it.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/docrag/internal/app"
	"github.com/fyrsmithlabs/docrag/internal/config"
	"github.com/fyrsmithlabs/docrag/internal/logging"
	"github.com/fyrsmithlabs/docrag/internal/telemetry"
)

// version is set at build time via -ldflags.
var version = "dev"

// cli holds global flags and the process wiring shared by every command.
type cli struct {
	configPath string
	envFile    string
	logLevel   string
	output     string

	out io.Writer
	// overrides replaces backends; tests use it to avoid network services.
	overrides app.Overrides
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c := &cli{out: os.Stdout}
	if err := newRootCmd(c).ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

func newRootCmd(c *cli) *cobra.Command {
	root := &cobra.Command{
		Use:   "docrag",
		Short: "Ingest documents and answer questions from them",
		Long: `docrag splits a directory tree of documents into chunks, embeds them
into per-directory collections and answers questions grounded in the
closest passages.

Examples:
  # Ingest a tree
  docrag ingest --input ./docs

  # Ask one question
  docrag chat --question "What coolant does the reactor use?"

  # Chat interactively over one collection
  docrag chat --interactive --collection pj1-dir1`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cmd.SetOut(c.out)
			return validateOutput(c.output)
		},
	}
	root.SetOut(c.out)

	pf := root.PersistentFlags()
	pf.StringVar(&c.configPath, "config", "", "config file (YAML or TOML; default ~/.config/docrag/config.yaml)")
	pf.StringVar(&c.envFile, "env-file", "", "dotenv file to load (default .env if present)")
	pf.StringVar(&c.logLevel, "log-level", "", "log level: trace, debug, info, warn, error")
	pf.StringVarP(&c.output, "output", "o", outputTable, "output format: table, json, yaml")

	root.AddCommand(
		newIngestCmd(c),
		newChatCmd(c),
		newSearchCmd(c),
		newListCmd(c),
		newDetailCmd(c),
		newServeCmd(c),
		newMCPCmd(c),
		newVersionCmd(c),
	)
	return root
}

// loadConfig reads configuration and applies the global flag overrides.
func (c *cli) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(config.LoadOptions{ConfigPath: c.configPath, EnvFile: c.envFile})
	if err != nil {
		return nil, err
	}
	if c.logLevel != "" {
		cfg.Logging.Level = c.logLevel
	}
	return cfg, nil
}

// start loads configuration, lets the command adjust it, and builds the app.
// Telemetry comes up first so the logger can bridge records to its provider.
// The returned cleanup closes the app, flushes the logger and stops telemetry.
func (c *cli) start(ctx context.Context, adjust func(*config.Config)) (*app.App, *logging.Logger, func(), error) {
	cfg, err := c.loadConfig()
	if err != nil {
		return nil, nil, nil, err
	}
	if adjust != nil {
		adjust(cfg)
		if err := cfg.Validate(); err != nil {
			return nil, nil, nil, err
		}
	}

	bootstrap, err := logging.FromConfig(cfg.Logging, nil)
	if err != nil {
		return nil, nil, nil, err
	}
	tel, err := telemetry.New(ctx, telemetry.FromConfig(cfg.Telemetry, version), bootstrap.Underlying().Named("telemetry"))
	if err != nil {
		_ = bootstrap.Sync()
		return nil, nil, nil, err
	}
	shutdownTelemetry := func() {
		if err := tel.Shutdown(context.WithoutCancel(ctx)); err != nil {
			bootstrap.Warn(ctx, "telemetry shutdown incomplete", zap.Error(err))
		}
		_ = bootstrap.Sync()
	}

	logger, err := logging.FromConfig(cfg.Logging, tel.LoggerProvider())
	if err != nil {
		shutdownTelemetry()
		return nil, nil, nil, fmt.Errorf("failed to create logger: %w", err)
	}

	ov := c.overrides
	ov.Telemetry = tel
	a, err := app.New(ctx, cfg, logger.Underlying(), version, ov)
	if err != nil {
		_ = logger.Sync()
		shutdownTelemetry()
		return nil, nil, nil, err
	}

	cleanup := func() {
		if err := a.Close(context.WithoutCancel(ctx)); err != nil {
			logger.Warn(ctx, "shutdown incomplete", zap.Error(err))
		}
		_ = logger.Sync()
		shutdownTelemetry()
	}
	return a, logger, cleanup, nil
}

func newVersionCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the docrag version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintf(c.out, "docrag %s\n", version)
			return err
		},
	}
}
