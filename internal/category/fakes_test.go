package category

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/disclosure-scraper/internal/locator"
	"github.com/JakeFAU/disclosure-scraper/internal/retrieval"
	"github.com/JakeFAU/disclosure-scraper/internal/scrape"
	"github.com/JakeFAU/disclosure-scraper/internal/storage/local"
	"github.com/JakeFAU/disclosure-scraper/internal/timewindow"
)

const entityPage = `<!doctype html>
<html><body>
<section id="documents">
  <div class="documents flex-column">
    <h3>Annual reports</h3>
    <ul class="list-links">
      <li><a href="https://www.bseindia.com/ar/2024.pdf">Financial Year 2024<div>from bse</div></a></li>
      <li><a href="https://www.bseindia.com/ar/2023.pdf">Financial Year 2023<div>from bse</div></a></li>
      <li><a href="https://www.bseindia.com/ar/2019.pdf">Financial Year 2019<div>from bse</div></a></li>
      <li><a href="https://www.bseindia.com/ar/undated.pdf">Directors report<div>from bse</div></a></li>
    </ul>
  </div>
  <div class="documents credit-ratings flex-column">
    <h3>Credit ratings</h3>
    <ul class="list-links">
      <li><a href="https://www.icra.in/r/1">Rating update</a><div>14 Mar 2024 from icra</div></li>
      <li><a href="https://www.crisil.com/r/2">Rating 2023</a></li>
      <li><a href="https://www.crisil.com/r/3">Rating update</a><div>2 Jan 2020 from crisil</div></li>
    </ul>
  </div>
</section>
</body></html>`

const concallSection = `<!doctype html>
<html><body>
  <div class="documents concalls flex-column">
    <div><h3>Concalls</h3></div>
    <ul class="list-links">
      <li class="flex">
        <div class="ink-600">Nov 2023</div>
        <a href="https://example.com/t.pdf">Transcript</a>
        <a href="https://example.com/deck.pdf">PPT</a>
        <a href="https://www.youtube.com/watch?v=abc">REC</a>
      </li>
      <li class="flex">
        <div class="ink-600">Aug 2023</div>
        <a href="https://example.com/aug.pdf"></a>
      </li>
      <li class="flex">
        <div class="ink-600">Jan 2021</div>
        <a href="https://example.com/old.pdf">Transcript</a>
      </li>
    </ul>
  </div>
</body></html>`

const referer = "https://www.screener.in/company/TCS/consolidated/"

func mustDocument(t *testing.T, markup string) *locator.Document {
	t.Helper()
	doc, err := locator.NewDocumentFromString(markup, referer)
	require.NoError(t, err)
	return doc
}

type docCall struct {
	recording bool
	req       retrieval.Request
}

type fakeDocs struct {
	mu    sync.Mutex
	calls []docCall
	fail  map[string]bool
}

func (d *fakeDocs) Document(_ context.Context, req retrieval.Request) scrape.Result {
	return d.record(false, req)
}

func (d *fakeDocs) Recording(_ context.Context, req retrieval.Request) scrape.Result {
	return d.record(true, req)
}

func (d *fakeDocs) record(recording bool, req retrieval.Request) scrape.Result {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, docCall{recording: recording, req: req})
	if d.fail[req.URL] {
		return scrape.Result{Status: scrape.StatusFailed, URL: req.URL, Path: req.Path, Err: errors.New("both strategies failed")}
	}
	return scrape.Result{Status: scrape.StatusRetrieved, URL: req.URL, Path: req.Path, Bytes: 1}
}

func (d *fakeDocs) paths() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]string, 0, len(d.calls))
	for _, c := range d.calls {
		out = append(out, c.req.Path)
	}
	return out
}

type fakePage struct {
	snapshot  *locator.Document
	snapErr   error
	scrolled  []string
	settled   []time.Duration
	snapshots int
}

func (p *fakePage) DownloadByText(context.Context, []string) (scrape.Download, error) {
	return scrape.Download{}, retrieval.ErrNoExportAction
}

func (p *fakePage) ClickableTexts(context.Context) ([]string, error) {
	return nil, nil
}

func (p *fakePage) ScrollToText(_ context.Context, text string) error {
	p.scrolled = append(p.scrolled, text)
	return nil
}

func (p *fakePage) Settle(_ context.Context, d time.Duration) error {
	p.settled = append(p.settled, d)
	return nil
}

func (p *fakePage) Snapshot(context.Context) (*locator.Document, error) {
	p.snapshots++
	return p.snapshot, p.snapErr
}

type dirRecorder struct {
	dirs []string
	err  error
}

func (r *dirRecorder) EnsureDir(dir string) error {
	if r.err != nil {
		return r.err
	}
	r.dirs = append(r.dirs, dir)
	return os.MkdirAll(dir, 0o755)
}

type collected struct {
	mu      sync.Mutex
	results map[scrape.Category][]scrape.Result
}

func newCollected() *collected {
	return &collected{results: make(map[scrape.Category][]scrape.Result)}
}

func (c *collected) Report(category scrape.Category, res scrape.Result) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.results[category] = append(c.results[category], res)
}

func testInput(t *testing.T, tree locator.Tree) Input {
	t.Helper()
	store, err := local.New(local.Config{BaseDir: t.TempDir()})
	require.NoError(t, err)
	layout, err := store.EnsureLayout("TCS")
	require.NoError(t, err)
	now := time.Date(2024, time.February, 15, 12, 0, 0, 0, time.UTC)
	return Input{
		Entity:  "TCS",
		Layout:  layout,
		Referer: referer,
		Years:   timewindow.FiscalYearsOfInterest(now),
		Now:     now,
		Tree:    tree,
	}
}
