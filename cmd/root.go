// Package cmd defines and implements the CLI commands for the webtopdf executable.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/JakeFAU/webtopdf/internal/app"
	"github.com/JakeFAU/webtopdf/internal/config"
	"github.com/JakeFAU/webtopdf/internal/logging"
	"github.com/JakeFAU/webtopdf/internal/pipeline"
)

// appKeyType is the key for storing the App in the context.
type appKeyType string

const appKey appKeyType = "app"

// needsApp marks commands that run against the service container.
const needsApp = "needs-app"

// App defines the application interface that commands use.
// Tests inject a fake through newApp.
type App interface {
	Close()
	Logger() *zap.Logger
	Run(ctx context.Context) (pipeline.Summary, error)
}

// newApp is the application factory: it loads config from the optional file,
// env and flags, builds the logger and wires every service.
var newApp = func(ctx context.Context, flags *pflag.FlagSet) (App, error) {
	cfgPath, err := flags.GetString("config")
	if err != nil {
		return nil, fmt.Errorf("read --config: %w", err)
	}
	cfg, err := config.Load(cfgPath, flags)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logger, err := logging.New(logging.Config{
		Development: cfg.Logging.Development,
		Level:       cfg.Logging.Level,
		File:        cfg.Logging.File,
	})
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	zap.ReplaceGlobals(logger)

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		_ = logger.Sync()
		return nil, err
	}
	return &syncingApp{App: a}, nil
}

// syncingApp flushes the logger after the services are closed.
type syncingApp struct {
	*app.App
}

func (s *syncingApp) Close() {
	s.App.Close()
	_ = s.Logger().Sync()
}

// newRootCmd creates and configures the root command.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "webtopdf",
		Short: "Crawl a documentation site into one PDF.",
		Long: `webtopdf walks every page under a documentation path, prints each page to
PDF with headless Chrome, recompresses the files and merges them into a single
document.`,
		SilenceUsage: true,

		// Builds the application once config and flags are known and stores it
		// in the context for the subcommand, which owns closing it.
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Annotations[needsApp] != "true" {
				return nil
			}
			appInstance, err := newApp(cmd.Context(), cmd.Flags())
			if err != nil {
				return fmt.Errorf("failed to initialize application services: %w", err)
			}
			cmd.SetContext(context.WithValue(cmd.Context(), appKey, appInstance))
			return nil
		},
	}

	cmd.PersistentFlags().String("config", "", "config file (yaml, json or toml)")
	cmd.AddCommand(newRunCmd())
	return cmd
}

func resolveApp(ctx context.Context) (App, error) {
	appInstance, ok := ctx.Value(appKey).(App)
	if !ok || appInstance == nil {
		return nil, errors.New("application services not initialized")
	}
	return appInstance, nil
}

// Execute is the main entry point. SIGINT and SIGTERM cancel the run context.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}
