package retrieval

import (
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/disclosure-scraper/internal/hash/sha256"
	"github.com/JakeFAU/disclosure-scraper/internal/scrape"
	"github.com/JakeFAU/disclosure-scraper/internal/storage/local"
)

type fakeFetcher struct {
	mu       sync.Mutex
	requests []scrape.FetchRequest
	respond  func(req scrape.FetchRequest) (scrape.FetchResponse, error)
}

func (f *fakeFetcher) Fetch(_ context.Context, req scrape.FetchRequest) (scrape.FetchResponse, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()
	if f.respond == nil {
		return scrape.FetchResponse{}, errors.New("connection refused")
	}
	return f.respond(req)
}

func (f *fakeFetcher) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

func okBody(body, contentType string) func(scrape.FetchRequest) (scrape.FetchResponse, error) {
	return func(req scrape.FetchRequest) (scrape.FetchResponse, error) {
		return scrape.FetchResponse{
			URL:        req.URL,
			StatusCode: http.StatusOK,
			Headers:    http.Header{"Content-Type": {contentType}},
			Body:       []byte(body),
		}, nil
	}
}

func failing(err error) func(scrape.FetchRequest) (scrape.FetchResponse, error) {
	return func(scrape.FetchRequest) (scrape.FetchResponse, error) {
		return scrape.FetchResponse{}, err
	}
}

type fakeExtractor struct {
	calls int
	body  string
	err   error
}

func (e *fakeExtractor) Extract(_ context.Context, _ string, outPath string) (string, error) {
	e.calls++
	if e.err != nil {
		return "", e.err
	}
	if err := os.WriteFile(outPath, []byte(e.body), 0o600); err != nil {
		return "", err
	}
	return outPath, nil
}

// fakeExportPage serves downloads for captions it knows.
type fakeExportPage struct {
	dir       string
	captions  []string
	downloads map[string]scrape.Download
	clicked   [][]string
}

func (p *fakeExportPage) DownloadByText(_ context.Context, texts []string) (scrape.Download, error) {
	p.clicked = append(p.clicked, texts)
	for _, caption := range p.captions {
		for _, want := range texts {
			if strings.Contains(strings.ToLower(caption), strings.ToLower(want)) {
				if dl, ok := p.downloads[caption]; ok {
					return dl, nil
				}
				return scrape.Download{}, errors.New("download did not start")
			}
		}
	}
	return scrape.Download{}, ErrNoExportAction
}

func (p *fakeExportPage) ClickableTexts(context.Context) ([]string, error) {
	return p.captions, nil
}

func newTestStore(t *testing.T) (*local.Store, local.Layout) {
	t.Helper()
	store, err := local.New(local.Config{BaseDir: t.TempDir()})
	require.NoError(t, err)
	layout, err := store.EnsureLayout("TCS")
	require.NoError(t, err)
	return store, layout
}

func newTestResolver(t *testing.T, auth, direct scrape.Fetcher, media AudioExtractor) (*Resolver, local.Layout) {
	t.Helper()
	store, layout := newTestStore(t)
	return NewResolver(auth, direct, media, store, sha256.New(), nil), layout
}

func writeDownload(t *testing.T, dir, name, body string) scrape.Download {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return scrape.Download{Path: path}
}
