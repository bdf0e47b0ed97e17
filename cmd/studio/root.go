package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/rreenactt/AI-Videos-Tool/internal/apiclient"
	"github.com/rreenactt/AI-Videos-Tool/internal/infra"
	"github.com/rreenactt/AI-Videos-Tool/internal/session"
)

var version = "dev"

// app carries what every subcommand needs once flags are parsed.
type app struct {
	cfg    *infra.Config
	logger infra.Logger
	client *apiclient.Client
	out    io.Writer
}

func (a *app) sessionOptions() session.Options {
	return session.OptionsFromConfig(a.cfg, &a.logger)
}

func (a *app) printf(format string, args ...any) {
	fmt.Fprintf(a.out, format, args...)
}

func newRootCommand() *cobra.Command {
	a := &app{}
	cmd := &cobra.Command{
		Use:   "studio",
		Short: "Studio - storyboard projects from the terminal",
		Long: `Studio edits storyboard projects against the storyboard API.

Draft edits are autosaved, image jobs are tracked until they finish and
finished shots can be regenerated one at a time or exported as a zip.`,
		Version:      version,
		SilenceUsage: true,
	}

	apiBase := cmd.PersistentFlags().String("api", "", "API base URL (defaults to STUDIO_API_BASE)")
	debug := cmd.PersistentFlags().Bool("debug", false, "Enable debug logging")
	cmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		cfg, err := infra.LoadConfig()
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		if *apiBase != "" {
			cfg.APIBase = *apiBase
		}
		logger := infra.NewLoggerTo(cfg.AppEnv, cmd.ErrOrStderr())
		if *debug {
			logger = logger.Level(zerolog.DebugLevel)
		} else {
			logger = logger.Level(zerolog.WarnLevel)
		}
		a.cfg = cfg
		a.logger = logger
		a.out = cmd.OutOrStdout()
		a.client = apiclient.NewClient(apiclient.Options{
			BaseURL: cfg.APIBase,
			Timeout: cfg.HTTPClientTimeout,
			Logger:  &a.logger,
		})
		return nil
	}

	cmd.AddCommand(newHomeCommand(a))
	cmd.AddCommand(newNewCommand(a))
	cmd.AddCommand(newShowCommand(a))
	cmd.AddCommand(newDeleteCommand(a))
	cmd.AddCommand(newRunCommand(a))
	cmd.AddCommand(newRegenerateCommand(a))
	cmd.AddCommand(newExportCommand(a))

	return cmd
}

func execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	rootCmd := newRootCommand()
	return rootCmd.ExecuteContext(ctx)
}
