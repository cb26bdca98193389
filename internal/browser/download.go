package browser

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	cdpbrowser "github.com/chromedp/cdproto/browser"
	"go.uber.org/zap"

	"github.com/JakeFAU/disclosure-scraper/internal/retrieval"
	"github.com/JakeFAU/disclosure-scraper/internal/scrape"
)

// ErrDownloadCanceled is returned when Chrome aborts a download.
var ErrDownloadCanceled = errors.New("download canceled")

// DownloadByText clicks the first link or button whose text contains one of
// texts and waits for the download it triggers.
func (p *Page) DownloadByText(ctx context.Context, texts []string) (scrape.Download, error) {
	wait := p.downloads.arm()
	defer p.downloads.disarm()

	var clicked bool
	if err := p.evaluate(ctx, clickByTextScript(texts), &clicked); err != nil {
		return scrape.Download{}, err
	}
	if !clicked {
		return scrape.Download{}, fmt.Errorf("%w: %v", retrieval.ErrNoExportAction, texts)
	}

	timer := time.NewTimer(p.cfg.DownloadTimeout)
	defer timer.Stop()
	select {
	case done := <-wait:
		if done.err != nil {
			return scrape.Download{}, done.err
		}
		p.logger.Debug("download finished",
			zap.String("suggested", done.suggested),
			zap.String("guid", done.guid))
		return scrape.Download{
			SuggestedFilename: done.suggested,
			Path:              filepath.Join(p.downloadDir, done.guid),
		}, nil
	case <-timer.C:
		return scrape.Download{}, fmt.Errorf("download did not finish within %s", p.cfg.DownloadTimeout)
	case <-ctx.Done():
		return scrape.Download{}, ctx.Err()
	}
}

type downloadResult struct {
	guid      string
	suggested string
	err       error
}

// downloadTracker turns Chrome download events into one result per armed wait.
type downloadTracker struct {
	mu     sync.Mutex
	names  map[string]string
	waiter chan downloadResult
}

func newDownloadTracker() *downloadTracker {
	return &downloadTracker{names: make(map[string]string)}
}

func (t *downloadTracker) arm() <-chan downloadResult {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.waiter = make(chan downloadResult, 1)
	return t.waiter
}

func (t *downloadTracker) disarm() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.waiter = nil
}

func (t *downloadTracker) captureEvent(ev any) {
	switch e := ev.(type) {
	case *cdpbrowser.EventDownloadWillBegin:
		t.mu.Lock()
		t.names[e.GUID] = e.SuggestedFilename
		t.mu.Unlock()
	case *cdpbrowser.EventDownloadProgress:
		switch e.State {
		case cdpbrowser.DownloadProgressStateCompleted:
			t.deliver(downloadResult{guid: e.GUID})
		case cdpbrowser.DownloadProgressStateCanceled:
			t.deliver(downloadResult{guid: e.GUID, err: ErrDownloadCanceled})
		}
	}
}

func (t *downloadTracker) deliver(res downloadResult) {
	t.mu.Lock()
	defer t.mu.Unlock()
	res.suggested = t.names[res.guid]
	delete(t.names, res.guid)
	if t.waiter == nil {
		return
	}
	select {
	case t.waiter <- res:
	default:
	}
}
