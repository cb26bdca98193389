// Package app initializes and holds long-lived application services, acting as a dependency injection container.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/JakeFAU/disclosure-scraper/internal/browser"
	"github.com/JakeFAU/disclosure-scraper/internal/category"
	"github.com/JakeFAU/disclosure-scraper/internal/clock/system"
	"github.com/JakeFAU/disclosure-scraper/internal/config"
	"github.com/JakeFAU/disclosure-scraper/internal/coordinator"
	collyfetcher "github.com/JakeFAU/disclosure-scraper/internal/fetcher/colly"
	"github.com/JakeFAU/disclosure-scraper/internal/hash/sha256"
	iduuid "github.com/JakeFAU/disclosure-scraper/internal/id/uuid"
	"github.com/JakeFAU/disclosure-scraper/internal/media"
	"github.com/JakeFAU/disclosure-scraper/internal/progress"
	"github.com/JakeFAU/disclosure-scraper/internal/progress/sinks"
	"github.com/JakeFAU/disclosure-scraper/internal/retrieval"
	"github.com/JakeFAU/disclosure-scraper/internal/scrape"
	"github.com/JakeFAU/disclosure-scraper/internal/session"
	"github.com/JakeFAU/disclosure-scraper/internal/storage/local"
)

// RemedyHint is logged when no spreadsheet tier succeeds.
const RemedyHint = "run `docscraper logout` and then `docscraper login` to sign in again"

// runIDs mints the identifier shared by every progress event of a run.
var runIDs scrape.IDGenerator = iduuid.New()

// BrowserStarter launches Chrome. Tests replace it to avoid a real browser.
type BrowserStarter func(cfg browser.Config, logger *zap.Logger) (*browser.Browser, error)

// App holds the shared, long-lived services of one run: the logger, the
// output store, the session cookies, the progress hub and the browser.
// It is built once at startup and closed by the CLI after the command ends.
type App struct {
	cfg     config.Config
	logger  *zap.Logger
	store   *local.Store
	session *session.Session
	hub     *progress.Hub
	runID   uuid.UUID

	// Progress is where audio extraction draws its bar.
	Progress io.Writer
	// StartBrowser launches Chrome on first use.
	StartBrowser BrowserStarter

	mu          sync.Mutex
	browser     *browser.Browser
	coordinator *coordinator.Coordinator
}

// New creates and initializes an App from cfg. Chrome is not started until a
// command needs a page.
func New(cfg config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger.Info("Initializing application services...")

	store, err := local.New(local.Config{BaseDir: cfg.Output.Dir})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize output store: %w", err)
	}

	sess, err := session.New()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize session: %w", err)
	}

	runID, err := runIDs.NewRunID()
	if err != nil {
		return nil, fmt.Errorf("failed to create run id: %w", err)
	}

	registry := prometheus.NewRegistry()
	hub, err := newHub(cfg, store.BaseDir(), registry, logger)
	if err != nil {
		return nil, err
	}

	logger.Info("Application services initialized successfully.",
		zap.String("run_id", runID.String()),
		zap.String("output", store.BaseDir()))

	return &App{
		cfg:          cfg,
		logger:       logger,
		store:        store,
		session:      sess,
		hub:          hub,
		runID:        runID,
		Progress:     os.Stderr,
		StartBrowser: browser.New,
	}, nil
}

func newHub(cfg config.Config, baseDir string, registry *prometheus.Registry, logger *zap.Logger) (*progress.Hub, error) {
	metrics, err := sinks.NewPrometheusSink(registry, cfg.Metrics.Textfile)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize metrics: %w", err)
	}
	all := []progress.Sink{sinks.NewLogSink(logger), metrics}
	if cfg.Manifest.Enabled {
		all = append(all, sinks.NewManifestSink(baseDir, logger))
	}
	return progress.NewHub(progress.Config{Logger: logger}, all...), nil
}

// Logger returns the shared zap logger.
func (a *App) Logger() *zap.Logger {
	return a.logger
}

// Login makes the shared session authenticated, prompting the user through
// the browser when the saved cookies no longer work.
func (a *App) Login(ctx context.Context) error {
	page, err := a.openPage(ctx)
	if err != nil {
		return err
	}
	defer a.closePage(page)
	return session.Establish(ctx, page, a.session, a.loginConfig(), a.logger)
}

func (a *App) loginConfig() session.LoginConfig {
	return session.LoginConfig{
		File:         a.cfg.Session.File,
		SiteURL:      a.cfg.SiteURL(),
		LoginURL:     a.cfg.LoginURL(),
		Marker:       a.cfg.Source.LoginMarker,
		PollInterval: a.cfg.Browser.LoginPollInterval,
		Timeout:      a.cfg.Session.LoginTimeout,
	}
}

// Scrape processes entities in order and returns one summary per entity
// started. Cancelling ctx stops the batch between entities and categories.
// Progress sinks have seen every event of the batch when it returns.
func (a *App) Scrape(ctx context.Context, entities []string) []coordinator.Summary {
	summaries := a.Coordinator().RunBatch(ctx, entities)
	if err := a.hub.Flush(context.WithoutCancel(ctx)); err != nil {
		a.logger.Warn("progress events not flushed", zap.Error(err))
	}
	return summaries
}

// Coordinator returns the entity coordinator, building it on first use.
func (a *App) Coordinator() *coordinator.Coordinator {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.coordinator == nil {
		a.coordinator = a.buildCoordinator()
	}
	return a.coordinator
}

func (a *App) buildCoordinator() *coordinator.Coordinator {
	cfg := a.cfg
	hasher := sha256.New()

	auth := collyfetcher.New(collyfetcher.Config{
		UserAgent:         cfg.Browser.UserAgent,
		Timeout:           cfg.HTTP.Timeout,
		Jar:               a.session,
		RequestsPerSecond: cfg.HTTP.RequestsPerSecond,
	})
	direct := collyfetcher.New(collyfetcher.Config{
		UserAgent:         cfg.HTTP.DirectUserAgent,
		Timeout:           cfg.HTTP.Timeout,
		RequestsPerSecond: cfg.HTTP.RequestsPerSecond,
	})

	runner := media.ExecRunner{}
	tools := media.NewToolchain(media.ToolchainConfig{
		Extractor:        cfg.Media.Extractor,
		AutoInstall:      cfg.Media.AutoInstall,
		NodeInstallerURL: cfg.Media.NodeInstallerURL,
	}, runner, direct, a.logger)
	extractor := media.NewExtractor(tools, runner, a.Progress, a.logger)

	docs := retrieval.NewResolver(auth, direct, extractor, a.store, hasher, a.logger)
	sheets := retrieval.NewSpreadsheetResolver(retrieval.SpreadsheetConfig{
		Labels:     cfg.Source.ExportLabels,
		Endpoints:  cfg.ExportEndpointTemplates(),
		MinBytes:   cfg.HTTP.MinExportBytes,
		RemedyHint: RemedyHint,
	}, auth, a.store, hasher, a.logger)

	orchestrators := []category.Orchestrator{
		category.NewSpreadsheet(sheets),
		category.NewAnnualReports(docs, a.logger),
		category.NewCreditRatings(docs, a.logger),
		category.NewConcalls(category.ConcallsConfig{
			MonthsBack: cfg.Window.MonthsBack,
			Settle:     cfg.Browser.ConcallSettleDelay,
		}, docs, a.store, a.logger),
	}

	return coordinator.New(coordinator.Config{
		CompanyURL: cfg.CompanyURLTemplate(),
		Settle:     cfg.Browser.SettleDelay,
		SavePages:  cfg.Output.SavePages,
	}, a.store, a.openCoordinatorPage, orchestrators, a.hub, system.New(), progress.UUIDToBytes(a.runID), a.logger)
}

func (a *App) openCoordinatorPage(ctx context.Context) (coordinator.Page, error) {
	page, err := a.openPage(ctx)
	if err != nil {
		return nil, err
	}
	return page, nil
}

// SaveSession copies the browser's cookies into the session file. It is a
// no-op when the browser never started.
func (a *App) SaveSession(ctx context.Context) error {
	a.mu.Lock()
	started := a.browser != nil
	a.mu.Unlock()
	if !started {
		return nil
	}

	page, err := a.openPage(ctx)
	if err != nil {
		return err
	}
	defer a.closePage(page)
	if err := session.Refresh(ctx, page, a.session); err != nil {
		return err
	}
	if err := session.Save(a.cfg.Session.File, a.session.Snapshot()); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	a.logger.Info("session saved", zap.String("path", a.cfg.Session.File))
	return nil
}

// Logout deletes the saved session file.
func (a *App) Logout() error {
	if err := session.Delete(a.cfg.Session.File); err != nil {
		return err
	}
	a.logger.Info("session deleted; the next run will ask you to log in", zap.String("path", a.cfg.Session.File))
	return nil
}

func (a *App) openPage(ctx context.Context) (*browser.Page, error) {
	b, err := a.ensureBrowser()
	if err != nil {
		return nil, err
	}
	page, err := b.NewPage(ctx)
	if err != nil {
		return nil, fmt.Errorf("open browser tab: %w", err)
	}
	return page, nil
}

func (a *App) closePage(page *browser.Page) {
	if err := page.Close(); err != nil {
		a.logger.Debug("closing browser tab failed", zap.Error(err))
	}
}

func (a *App) ensureBrowser() (*browser.Browser, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.browser != nil {
		return a.browser, nil
	}
	start := a.StartBrowser
	if start == nil {
		start = browser.New
	}
	b, err := start(browser.Config{
		Headless:          a.cfg.Browser.Headless,
		UserAgent:         a.cfg.Browser.UserAgent,
		NavigationTimeout: a.cfg.Browser.NavigationTimeout,
		DownloadTimeout:   a.cfg.Browser.DownloadTimeout,
		DownloadDir:       a.cfg.Browser.DownloadDir,
		ExecPath:          a.cfg.Browser.ExecPath,
	}, a.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to start browser: %w", err)
	}
	a.logger.Info("browser started", zap.String("download_dir", b.DownloadDir()))
	a.browser = b
	return b, nil
}

// Close gracefully shuts down all services in the App container.
// It is called by a Cobra hook after the command finishes execution.
func (a *App) Close(ctx context.Context) error {
	a.logger.Info("Shutting down application services...")
	var errs []error
	if err := a.hub.Close(ctx); err != nil {
		errs = append(errs, fmt.Errorf("close progress hub: %w", err))
	}
	if dropped := a.hub.Dropped(); dropped > 0 {
		a.logger.Warn("progress events dropped", zap.Int64("count", dropped))
	}

	a.mu.Lock()
	b := a.browser
	a.browser = nil
	a.mu.Unlock()
	if b != nil {
		if err := b.Close(); err != nil && !errors.Is(err, browser.ErrClosed) {
			errs = append(errs, fmt.Errorf("close browser: %w", err))
		}
	}

	_ = a.logger.Sync() //nolint:errcheck // stderr sync fails on some terminals
	return errors.Join(errs...)
}
