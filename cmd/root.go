package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/awertt/midi-proxy/internal/app"
	"github.com/awertt/midi-proxy/internal/config"
)

var cfgFile string

// appKeyType is the key for storing the App in the context.
type appKeyType string

const appKey appKeyType = "app"

// newApp is the application factory. It's a variable so tests can
// replace it.
var newApp = func(path string) (*app.App, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return app.New(cfg)
}

// newRootCmd creates and configures the root command. Running it without a
// subcommand starts the HTTP server.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "midi-proxy",
		Short: "MIDI relay and bitmidi search proxy.",
		Long: `midi-proxy serves a small HTTP API: /getMidi relays a remote MIDI file
as hex text, and /bitmidi/search scrapes the bitmidi search pages and returns
the matching files as JSON.`,
		SilenceUsage: true,

		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := newApp(cfgFile)
			if err != nil {
				return fmt.Errorf("failed to initialize application services: %w", err)
			}
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			cmd.SetContext(context.WithValue(ctx, appKey, appInstance))
			return nil
		},

		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			if appInstance, ok := cmd.Context().Value(appKey).(*app.App); ok && appInstance != nil {
				appInstance.Close()
			}
		},

		RunE: runServeCommand,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (YAML)")

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newSearchCmd())

	return cmd
}

func resolveApp(ctx context.Context) (*app.App, error) {
	appInstance, ok := ctx.Value(appKey).(*app.App)
	if !ok || appInstance == nil {
		return nil, errors.New("application services not initialized")
	}
	return appInstance, nil
}

// Execute is the main entry point.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
