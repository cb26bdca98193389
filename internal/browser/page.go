package browser

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	cdpbrowser "github.com/chromedp/cdproto/browser"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/JakeFAU/disclosure-scraper/internal/locator"
)

// Page is one Chrome tab.
type Page struct {
	ctx         context.Context
	cancel      context.CancelFunc
	cfg         Config
	downloadDir string
	logger      *zap.Logger
	meta        *responseMeta
	downloads   *downloadTracker
	closeOnce   sync.Once
}

func newPage(ctx context.Context, cancel context.CancelFunc, cfg Config, downloadDir string, logger *zap.Logger) *Page {
	p := &Page{
		ctx:         ctx,
		cancel:      cancel,
		cfg:         cfg,
		downloadDir: downloadDir,
		logger:      logger,
		meta:        newResponseMeta(),
		downloads:   newDownloadTracker(),
	}
	chromedp.ListenTarget(ctx, func(ev any) {
		p.meta.captureEvent(ev)
		p.downloads.captureEvent(ev)
	})
	return p
}

func (p *Page) setupAction() chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		if err := network.Enable().Do(ctx); err != nil {
			return fmt.Errorf("enable network domain: %w", err)
		}
		err := cdpbrowser.SetDownloadBehavior(cdpbrowser.SetDownloadBehaviorBehaviorAllowAndName).
			WithDownloadPath(p.downloadDir).
			WithEventsEnabled(true).
			Do(ctx)
		if err != nil {
			return fmt.Errorf("set download behavior: %w", err)
		}
		return nil
	})
}

// run executes actions in the tab, bounded by timeout and by ctx.
func (p *Page) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithTimeout(p.ctx, timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()
	if err := chromedp.Run(runCtx, actions...); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return err
	}
	return nil
}

// Navigate loads url and waits for the body. Error statuses are logged, not
// returned, since the page still renders.
func (p *Page) Navigate(ctx context.Context, url string) error {
	p.meta.reset()
	err := p.run(ctx, p.cfg.NavigationTimeout,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
	if err != nil {
		return fmt.Errorf("navigate %s: %w", url, err)
	}
	if status, _, final := p.meta.snapshotWithFallbacks(url, ""); status >= http.StatusBadRequest {
		p.logger.Warn("page returned error status", zap.String("url", final), zap.Int("status", status))
	}
	return nil
}

// Title returns the document title.
func (p *Page) Title(ctx context.Context) (string, error) {
	var title string
	if err := p.run(ctx, defaultActionTimeout, chromedp.Title(&title)); err != nil {
		return "", fmt.Errorf("read title: %w", err)
	}
	return title, nil
}

// HTML returns the rendered document markup.
func (p *Page) HTML(ctx context.Context) (string, error) {
	var html string
	if err := p.run(ctx, defaultActionTimeout, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("read html: %w", err)
	}
	return html, nil
}

// Snapshot parses the current DOM for the section locator.
func (p *Page) Snapshot(ctx context.Context) (*locator.Document, error) {
	var html, location string
	err := p.run(ctx, defaultActionTimeout,
		chromedp.Location(&location),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	if err != nil {
		return nil, fmt.Errorf("snapshot: %w", err)
	}
	return locator.NewDocumentFromString(html, location)
}

// ScrollIntoView scrolls the first element matching selector into view. A
// missing element is not an error.
func (p *Page) ScrollIntoView(ctx context.Context, selector string) error {
	return p.evaluate(ctx, scrollSelectorScript(selector), nil)
}

// ScrollToText scrolls the first leaf element whose text equals text into view.
func (p *Page) ScrollToText(ctx context.Context, text string) error {
	return p.evaluate(ctx, scrollTextScript(text), nil)
}

// Settle waits d for lazily rendered content.
func (p *Page) Settle(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	return p.run(ctx, d+defaultActionTimeout, chromedp.Sleep(d))
}

// ClickableTexts lists the visible texts of links and buttons.
func (p *Page) ClickableTexts(ctx context.Context) ([]string, error) {
	var texts []string
	if err := p.evaluate(ctx, clickableTextsScript, &texts); err != nil {
		return nil, err
	}
	return texts, nil
}

func (p *Page) evaluate(ctx context.Context, script string, res any) error {
	if err := p.run(ctx, defaultActionTimeout, chromedp.Evaluate(script, res)); err != nil {
		return fmt.Errorf("evaluate: %w", err)
	}
	return nil
}

// Close closes the tab.
func (p *Page) Close() error {
	p.closeOnce.Do(p.cancel)
	return nil
}
