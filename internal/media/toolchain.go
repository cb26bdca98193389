package media

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/disclosure-scraper/internal/scrape"
)

// ErrToolUnavailable is returned when a required utility cannot be found or installed.
var ErrToolUnavailable = errors.New("tool unavailable")

const (
	defaultExtractor = "yt-dlp"
	extractorModule  = "yt_dlp"
	installTimeout   = 180 * time.Second
	manualNodeHint   = "install Node.js manually from https://nodejs.org"
)

var (
	windowsNodeDirs = []string{
		`C:\Program Files\nodejs`,
		`C:\Program Files (x86)\nodejs`,
	}
	unixNodeDirs = []string{
		"/opt/homebrew/bin",
		"/usr/local/bin",
		"/usr/bin",
	}
)

// ToolchainConfig controls tool discovery and installation.
type ToolchainConfig struct {
	// Extractor is the audio-extraction executable name.
	Extractor string
	// AutoInstall permits installing missing tools.
	AutoInstall bool
	// NodeInstallerURL is the Windows MSI used to install the runtime.
	NodeInstallerURL string
	// GOOS overrides runtime.GOOS.
	GOOS string
}

// Toolchain finds, and on demand installs, the extraction utility and the
// JavaScript runtime it uses.
type Toolchain struct {
	cfg     ToolchainConfig
	runner  Runner
	fetcher scrape.Fetcher
	logger  *zap.Logger

	lookPath func(string) (string, error)
	exists   func(string) bool
	// tempDir holds downloaded installers; empty means the system default.
	tempDir string
}

// NewToolchain builds a Toolchain. fetcher downloads installers.
func NewToolchain(cfg ToolchainConfig, runner Runner, fetcher scrape.Fetcher, logger *zap.Logger) *Toolchain {
	if cfg.Extractor == "" {
		cfg.Extractor = defaultExtractor
	}
	if cfg.GOOS == "" {
		cfg.GOOS = runtime.GOOS
	}
	if runner == nil {
		runner = ExecRunner{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Toolchain{
		cfg:      cfg,
		runner:   runner,
		fetcher:  fetcher,
		logger:   logger.Named("toolchain"),
		lookPath: exec.LookPath,
		exists:   fileExists,
	}
}

// EnsureExtractor returns the command (name plus leading arguments) that
// runs the extraction utility, installing it with pip when permitted.
func (t *Toolchain) EnsureExtractor(ctx context.Context) ([]string, error) {
	if path, err := t.lookPath(t.cfg.Extractor); err == nil {
		return []string{path}, nil
	}
	python, err := t.python()
	if err != nil {
		return nil, fmt.Errorf("%w: %s not on PATH and no python interpreter: %w", ErrToolUnavailable, t.cfg.Extractor, err)
	}
	module := []string{python, "-m", extractorModule}
	if t.run(ctx, python, "-m", extractorModule, "--version") == nil {
		return module, nil
	}
	if !t.cfg.AutoInstall {
		return nil, fmt.Errorf("%w: %s is not installed", ErrToolUnavailable, t.cfg.Extractor)
	}

	t.logger.Info("installing audio extractor", zap.String("package", t.cfg.Extractor))
	if err := t.run(ctx, python, "-m", "pip", "install", t.cfg.Extractor, "--quiet"); err != nil {
		return nil, fmt.Errorf("%w: install %s: %w", ErrToolUnavailable, t.cfg.Extractor, err)
	}
	if path, err := t.lookPath(t.cfg.Extractor); err == nil {
		return []string{path}, nil
	}
	return module, nil
}

// FindRuntime returns the path of a Node.js executable, if any.
func (t *Toolchain) FindRuntime() (string, bool) {
	if path, err := t.lookPath("node"); err == nil {
		return path, true
	}
	if t.cfg.GOOS == "windows" {
		for _, dir := range windowsNodeDirs {
			if candidate := dir + `\node.exe`; t.exists(candidate) {
				return candidate, true
			}
		}
		return "", false
	}
	for _, dir := range unixNodeDirs {
		if candidate := filepath.Join(dir, "node"); t.exists(candidate) {
			return candidate, true
		}
	}
	return "", false
}

// EnsureRuntime finds Node.js, installing it when permitted. The runtime is
// optional for the extractor, so callers treat an error as a degraded mode.
func (t *Toolchain) EnsureRuntime(ctx context.Context) (string, error) {
	if path, ok := t.FindRuntime(); ok {
		return path, nil
	}
	if !t.cfg.AutoInstall {
		return "", fmt.Errorf("%w: node not found; %s", ErrToolUnavailable, manualNodeHint)
	}
	t.logger.Info("node.js not found, installing for video support", zap.String("os", t.cfg.GOOS))

	var err error
	switch t.cfg.GOOS {
	case "windows":
		err = t.installNodeWindows(ctx)
	case "darwin":
		err = t.installNodeDarwin(ctx)
	default:
		err = errors.New(manualNodeHint)
	}
	if err != nil {
		return "", fmt.Errorf("%w: install node: %w", ErrToolUnavailable, err)
	}
	if path, ok := t.FindRuntime(); ok {
		t.logger.Info("node.js installed", zap.String("path", path))
		return path, nil
	}
	return "", fmt.Errorf("%w: node still missing after install; %s", ErrToolUnavailable, manualNodeHint)
}

func (t *Toolchain) installNodeWindows(ctx context.Context) error {
	if t.fetcher == nil || t.cfg.NodeInstallerURL == "" {
		return errors.New("no installer source configured")
	}
	resp, err := t.fetcher.Fetch(ctx, scrape.FetchRequest{URL: t.cfg.NodeInstallerURL, Headers: http.Header{}})
	if err != nil {
		return fmt.Errorf("download installer: %w", err)
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("download installer: %w", &scrape.StatusError{
			URL:         t.cfg.NodeInstallerURL,
			StatusCode:  resp.StatusCode,
			ContentType: resp.Headers.Get("Content-Type"),
			Bytes:       len(resp.Body),
		})
	}
	installer, err := os.CreateTemp(t.tempDir, "node_installer_*.msi")
	if err != nil {
		return fmt.Errorf("create installer file: %w", err)
	}
	defer os.Remove(installer.Name()) //nolint:errcheck // best-effort cleanup
	if _, err := installer.Write(resp.Body); err != nil {
		_ = installer.Close()
		return fmt.Errorf("write installer: %w", err)
	}
	if err := installer.Close(); err != nil {
		return fmt.Errorf("close installer: %w", err)
	}

	t.logger.Info("running node.js installer, this may take a minute")
	if err := t.run(ctx, "msiexec", "/i", installer.Name(), "/quiet", "/norestart"); err != nil {
		return err
	}
	prependPath(windowsNodeDirs[0], ";")
	return nil
}

func (t *Toolchain) installNodeDarwin(ctx context.Context) error {
	brew, err := t.lookPath("brew")
	if err != nil {
		return errors.New(manualNodeHint)
	}
	t.logger.Info("installing node.js via homebrew")
	if err := t.run(ctx, brew, "install", "node"); err != nil {
		return err
	}
	for _, dir := range unixNodeDirs[:2] {
		prependPath(dir, ":")
	}
	return nil
}

func (t *Toolchain) python() (string, error) {
	var lastErr error
	for _, name := range []string{"python3", "python"} {
		path, err := t.lookPath(name)
		if err == nil {
			return path, nil
		}
		lastErr = err
	}
	return "", lastErr
}

// run executes a helper command to completion, logging its output at debug.
func (t *Toolchain) run(ctx context.Context, name string, args ...string) error {
	ctx, cancel := context.WithTimeout(ctx, installTimeout)
	defer cancel()
	proc, err := t.runner.Start(ctx, name, args...)
	if err != nil {
		return err
	}
	for line := range proc.Lines() {
		t.logger.Debug(filepath.Base(name), zap.String("line", line))
	}
	return proc.Wait()
}

func prependPath(dir, sep string) {
	current := os.Getenv("PATH")
	if strings.Contains(current, dir) {
		return
	}
	_ = os.Setenv("PATH", dir+sep+current)
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
