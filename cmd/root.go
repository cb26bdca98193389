// Package cmd defines and implements the CLI commands for the docscraper executable.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/disclosure-scraper/internal/app"
	"github.com/JakeFAU/disclosure-scraper/internal/config"
	"github.com/JakeFAU/disclosure-scraper/internal/coordinator"
	"github.com/JakeFAU/disclosure-scraper/internal/logging"
)

var cfgFile string

// appKeyType is the key for storing the App in the context.
type appKeyType string

const appKey appKeyType = "app"

// App defines the application interface that commands will use.
// This allows us to inject a fake app during tests.
type App interface {
	Logger() *zap.Logger
	Login(ctx context.Context) error
	Scrape(ctx context.Context, entities []string) []coordinator.Summary
	SaveSession(ctx context.Context) error
	Logout() error
	Close(ctx context.Context) error
}

// newApp is the application factory. It's a variable so we can
// replace it with a fake factory in our tests.
var newApp = func(_ context.Context, path string) (App, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	logger, err := logging.New(logging.Options{
		Development: cfg.Logging.Development,
		Level:       cfg.Logging.Level,
	})
	if err != nil {
		return nil, err
	}
	a, err := app.New(cfg, logger)
	if err != nil {
		_ = logger.Sync()
		return nil, err
	}
	return a, nil
}

// newRootCmd creates and configures the root command.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "docscraper",
		Short: "Downloads company disclosures from screener.in.",
		Long: `docscraper collects the documents listed on a company's screener.in page:
the spreadsheet export, annual reports for the current and previous fiscal
year, recent credit ratings and concall transcripts, decks and recordings.
Files land under one directory per ticker and are never downloaded twice.

Run without arguments for an interactive prompt, or pass tickers to scrape
them in one go.`,
		Args:         cobra.ArbitraryArgs,
		SilenceUsage: true,

		// Build the application once, before any subcommand runs.
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := newApp(cmd.Context(), cfgFile)
			if err != nil {
				return fmt.Errorf("failed to initialize application services: %w", err)
			}
			ctx := context.WithValue(cmd.Context(), appKey, appInstance)
			cmd.SetContext(ctx)
			return nil
		},

		RunE: withApp(runScrape),
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (YAML); SCRAPER_* environment variables override it")

	cmd.AddCommand(newScrapeCmd(), newLoginCmd(), newLogoutCmd())
	return cmd
}

// resolveApp fetches the App injected by PersistentPreRunE.
func resolveApp(ctx context.Context) (App, error) {
	if ctx == nil {
		return nil, errors.New("command context is nil")
	}
	appInstance, ok := ctx.Value(appKey).(App)
	if !ok || appInstance == nil {
		return nil, errors.New("application is not initialized")
	}
	return appInstance, nil
}

// withApp resolves the App for run and closes it afterwards. Close runs even
// when run fails so progress sinks are flushed and Chrome is stopped.
func withApp(run func(cmd *cobra.Command, a App, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		appInstance, err := resolveApp(cmd.Context())
		if err != nil {
			return err
		}
		defer func() {
			if cerr := appInstance.Close(context.WithoutCancel(cmd.Context())); cerr != nil {
				appInstance.Logger().Warn("Error shutting down application services", zap.Error(cerr))
			}
		}()
		return run(cmd, appInstance, args)
	}
}

// Execute is the main entry point.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
