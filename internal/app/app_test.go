// Package app_test contains unit tests for the app package.
package app_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/disclosure-scraper/internal/app"
	"github.com/JakeFAU/disclosure-scraper/internal/browser"
	"github.com/JakeFAU/disclosure-scraper/internal/config"
	"github.com/JakeFAU/disclosure-scraper/internal/progress/sinks"
	"github.com/JakeFAU/disclosure-scraper/internal/session"
)

var errNoChrome = errors.New("chrome not installed")

// setupTest loads the default configuration rooted in a temp directory.
func setupTest(t *testing.T) config.Config {
	t.Helper()
	cfg, err := config.Load("")
	require.NoError(t, err)
	dir := t.TempDir()
	cfg.Output.Dir = filepath.Join(dir, "out")
	cfg.Session.File = filepath.Join(dir, "session.json")
	cfg.Metrics.Textfile = filepath.Join(dir, "scraper.prom")
	return cfg
}

func newTestApp(t *testing.T, cfg config.Config) *app.App {
	t.Helper()
	a, err := app.New(cfg, zap.NewNop())
	require.NoError(t, err)
	a.Progress = nil
	a.StartBrowser = func(browser.Config, *zap.Logger) (*browser.Browser, error) {
		return nil, errNoChrome
	}
	return a
}

func TestNewApp_Success(t *testing.T) {
	t.Parallel()
	cfg := setupTest(t)

	a := newTestApp(t, cfg)
	defer func() { require.NoError(t, a.Close(context.Background())) }()

	assert.NotNil(t, a.Logger())
	assert.DirExists(t, cfg.Output.Dir)
}

func TestNewApp_BadOutputDir(t *testing.T) {
	t.Parallel()
	cfg := setupTest(t)
	file := filepath.Join(t.TempDir(), "not-a-dir")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o600))
	cfg.Output.Dir = file

	_, err := app.New(cfg, zap.NewNop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "output store")
}

func TestLogoutDeletesSessionFile(t *testing.T) {
	t.Parallel()
	cfg := setupTest(t)
	require.NoError(t, session.Save(cfg.Session.File, []session.Cookie{{Name: "sessionid", Value: "abc", Domain: "www.screener.in", Path: "/"}}))

	a := newTestApp(t, cfg)
	defer func() { require.NoError(t, a.Close(context.Background())) }()

	require.NoError(t, a.Logout())
	assert.NoFileExists(t, cfg.Session.File)
	// Logging out twice is harmless.
	require.NoError(t, a.Logout())
}

func TestLoginReportsBrowserFailure(t *testing.T) {
	t.Parallel()
	a := newTestApp(t, setupTest(t))
	defer func() { require.NoError(t, a.Close(context.Background())) }()

	err := a.Login(context.Background())
	require.ErrorIs(t, err, errNoChrome)
}

func TestSaveSessionWithoutBrowserIsNoop(t *testing.T) {
	t.Parallel()
	cfg := setupTest(t)
	a := newTestApp(t, cfg)
	defer func() { require.NoError(t, a.Close(context.Background())) }()

	require.NoError(t, a.SaveSession(context.Background()))
	assert.NoFileExists(t, cfg.Session.File)
}

func TestCoordinatorBuiltOnce(t *testing.T) {
	t.Parallel()
	a := newTestApp(t, setupTest(t))
	defer func() { require.NoError(t, a.Close(context.Background())) }()

	first := a.Coordinator()
	assert.Same(t, first, a.Coordinator())
	assert.Equal(t, "https://www.screener.in/company/TCS/consolidated/", first.CompanyURL("TCS"))
}

func TestScrapeRecordsEntityFailure(t *testing.T) {
	t.Parallel()
	cfg := setupTest(t)
	a := newTestApp(t, cfg)

	summaries := a.Scrape(context.Background(), []string{"TCS", "INFY"})
	require.Len(t, summaries, 2)
	for _, s := range summaries {
		require.ErrorIs(t, s.Err, errNoChrome)
		assert.DirExists(t, s.Dir)
	}

	require.NoError(t, a.Close(context.Background()))

	manifest, err := sinks.ReadManifest(filepath.Join(cfg.Output.Dir, "TCS", sinks.ManifestFile))
	require.NoError(t, err)
	assert.Equal(t, "error", manifest.Result)
	runID, err := uuid.Parse(manifest.RunID)
	require.NoError(t, err)
	assert.EqualValues(t, 7, runID.Version())

	metrics, err := os.ReadFile(cfg.Metrics.Textfile)
	require.NoError(t, err)
	assert.Contains(t, string(metrics), `scraper_entities_total{result="error"} 2`)
}

func TestScrapeStopsWhenCancelled(t *testing.T) {
	t.Parallel()
	a := newTestApp(t, setupTest(t))
	defer func() { require.NoError(t, a.Close(context.Background())) }()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Empty(t, a.Scrape(ctx, []string{"TCS"}))
}
