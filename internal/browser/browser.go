// Package browser drives a single Chrome instance through chromedp. One
// Browser is shared by every entity of a run; each entity gets its own Page
// (tab) so cookies and the download directory stay common.
package browser

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
)

const (
	defaultNavigationTimeout = 30 * time.Second
	defaultDownloadTimeout   = 60 * time.Second
	defaultActionTimeout     = 15 * time.Second
)

// ErrClosed is returned after Close.
var ErrClosed = errors.New("browser closed")

// Config controls the Chrome process.
type Config struct {
	Headless          bool
	UserAgent         string
	NavigationTimeout time.Duration
	DownloadTimeout   time.Duration
	// DownloadDir receives files saved by clicks; a temp dir is used when empty.
	DownloadDir string
	// ExecPath overrides the Chrome binary.
	ExecPath string
}

// Browser owns the Chrome allocator and the root browser context.
type Browser struct {
	cfg           Config
	logger        *zap.Logger
	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc
	downloadDir   string
	ownsDir       bool
}

// New starts Chrome. The process runs until Close.
func New(cfg Config, logger *zap.Logger) (*Browser, error) {
	if cfg.NavigationTimeout <= 0 {
		cfg.NavigationTimeout = defaultNavigationTimeout
	}
	if cfg.DownloadTimeout <= 0 {
		cfg.DownloadTimeout = defaultDownloadTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	dir, owns := cfg.DownloadDir, false
	if dir == "" {
		tmp, err := os.MkdirTemp("", "docscraper-downloads-")
		if err != nil {
			return nil, fmt.Errorf("create download dir: %w", err)
		}
		dir, owns = tmp, true
	} else if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create download dir: %w", err)
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), allocatorOptions(cfg)...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(logger.Sugar().Debugf),
		chromedp.WithErrorf(logger.Sugar().Debugf),
	)
	// The first Run launches the process.
	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocCancel()
		if owns {
			_ = os.RemoveAll(dir)
		}
		return nil, fmt.Errorf("start chrome: %w", err)
	}
	logger.Info("browser started", zap.Bool("headless", cfg.Headless))

	return &Browser{
		cfg:           cfg,
		logger:        logger.Named("browser"),
		allocCancel:   allocCancel,
		browserCtx:    browserCtx,
		browserCancel: browserCancel,
		downloadDir:   dir,
		ownsDir:       owns,
	}, nil
}

func allocatorOptions(cfg Config) []chromedp.ExecAllocatorOption {
	opts := append([]chromedp.ExecAllocatorOption(nil), chromedp.DefaultExecAllocatorOptions[:]...)
	opts = append(opts,
		chromedp.Flag("headless", cfg.Headless),
		chromedp.Flag("start-maximized", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("enable-automation", false),
		chromedp.Flag("hide-scrollbars", false),
	)
	if !cfg.Headless {
		opts = append(opts, chromedp.WindowSize(1440, 900))
	}
	if cfg.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(cfg.UserAgent))
	}
	if cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(cfg.ExecPath))
	}
	return opts
}

// NewPage opens a tab. Callers must Close it.
func (b *Browser) NewPage(ctx context.Context) (*Page, error) {
	if b.browserCtx.Err() != nil {
		return nil, ErrClosed
	}
	tabCtx, tabCancel := chromedp.NewContext(b.browserCtx)
	page := newPage(tabCtx, tabCancel, b.cfg, b.downloadDir, b.logger)
	if err := page.run(ctx, defaultActionTimeout, page.setupAction()); err != nil {
		tabCancel()
		return nil, fmt.Errorf("open tab: %w", err)
	}
	return page, nil
}

// DownloadDir is where clicked downloads land before being adopted.
func (b *Browser) DownloadDir() string {
	return b.downloadDir
}

// Close terminates Chrome and removes a temporary download directory.
func (b *Browser) Close() error {
	b.browserCancel()
	b.allocCancel()
	if b.ownsDir {
		if err := os.RemoveAll(b.downloadDir); err != nil {
			return fmt.Errorf("remove download dir: %w", err)
		}
	}
	return nil
}
