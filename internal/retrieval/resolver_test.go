package retrieval

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/disclosure-scraper/internal/scrape"
)

const referer = "https://www.screener.in/company/TCS/consolidated/"

func TestDocumentSkipsExistingWithoutNetwork(t *testing.T) {
	t.Parallel()

	auth, direct := &fakeFetcher{}, &fakeFetcher{}
	r, layout := newTestResolver(t, auth, direct, nil)
	path := filepath.Join(layout.AnnualReports, "AnnualReport_FY2024_x.pdf")
	require.NoError(t, os.WriteFile(path, []byte("%PDF"), 0o600))

	res := r.Document(context.Background(), Request{URL: "https://bse.example/a.pdf", Path: path, Referer: referer})
	assert.Equal(t, scrape.StatusSkipped, res.Status)
	assert.True(t, res.OK())
	assert.Zero(t, auth.calls())
	assert.Zero(t, direct.calls())
}

func TestDocumentRefetchesZeroByteFile(t *testing.T) {
	t.Parallel()

	auth := &fakeFetcher{respond: okBody("%PDF-1.7", "application/pdf")}
	r, layout := newTestResolver(t, auth, &fakeFetcher{}, nil)
	path := filepath.Join(layout.AnnualReports, "zero.pdf")
	require.NoError(t, os.WriteFile(path, nil, 0o600))

	res := r.Document(context.Background(), Request{URL: "https://bse.example/a.pdf", Path: path, Referer: referer})
	assert.Equal(t, scrape.StatusRetrieved, res.Status)
	assert.Equal(t, 1, auth.calls())
}

func TestDocumentUsesAuthenticatedFetchFirst(t *testing.T) {
	t.Parallel()

	auth, direct := &fakeFetcher{respond: okBody("%PDF-1.7", "application/pdf")}, &fakeFetcher{}
	r, layout := newTestResolver(t, auth, direct, nil)
	path := filepath.Join(layout.AnnualReports, "a.pdf")

	res := r.Document(context.Background(), Request{URL: "https://bse.example/a.pdf#page=2", Path: path, Referer: referer})
	require.Equal(t, scrape.StatusRetrieved, res.Status, res.Err)
	assert.Equal(t, "authenticated", res.Strategy)
	assert.EqualValues(t, 8, res.Bytes)
	assert.Len(t, res.Digest, 64)
	assert.Zero(t, direct.calls())

	require.Len(t, auth.requests, 1)
	sent := auth.requests[0]
	assert.Equal(t, "https://bse.example/a.pdf", sent.URL)
	assert.Equal(t, referer, sent.Headers.Get("Referer"))
	assert.Equal(t, "*/*", sent.Headers.Get("Accept"))
}

func TestDocumentFallsBackToDirect(t *testing.T) {
	t.Parallel()

	auth := &fakeFetcher{respond: failing(errors.New("status 403"))}
	direct := &fakeFetcher{respond: okBody("%PDF-direct", "application/pdf")}
	r, layout := newTestResolver(t, auth, direct, nil)
	path := filepath.Join(layout.CreditRatings, "CreditRating_2024_x.pdf")

	res := r.Document(context.Background(), Request{URL: "https://icra.example/r/1", Path: path, Referer: referer})
	require.Equal(t, scrape.StatusRetrieved, res.Status)
	assert.Equal(t, "direct", res.Strategy)
	assert.Equal(t, referer, direct.requests[0].Headers.Get("Referer"))

	body, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-direct", string(body))
}

func TestDocumentEmptyBodyFallsBack(t *testing.T) {
	t.Parallel()

	auth := &fakeFetcher{respond: okBody("", "application/pdf")}
	direct := &fakeFetcher{respond: okBody("%PDF", "application/pdf")}
	r, layout := newTestResolver(t, auth, direct, nil)

	res := r.Document(context.Background(), Request{URL: "https://x.example/a.pdf", Path: filepath.Join(layout.Root, "a.pdf")})
	assert.Equal(t, scrape.StatusRetrieved, res.Status)
	assert.Equal(t, "direct", res.Strategy)
}

func TestDocumentBothFailLeavesNoFile(t *testing.T) {
	t.Parallel()

	authErr, directErr := errors.New("auth timeout"), errors.New("direct refused")
	auth := &fakeFetcher{respond: failing(authErr)}
	direct := &fakeFetcher{respond: failing(directErr)}
	r, layout := newTestResolver(t, auth, direct, nil)
	path := filepath.Join(layout.AnnualReports, "a.pdf")

	res := r.Document(context.Background(), Request{URL: "https://x.example/a.pdf", Path: path})
	assert.Equal(t, scrape.StatusFailed, res.Status)
	assert.False(t, res.OK())
	require.ErrorIs(t, res.Err, authErr)
	require.ErrorIs(t, res.Err, directErr)
	assert.NoFileExists(t, path)

	entries, err := os.ReadDir(layout.AnnualReports)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestDocumentRejectsNonHTTP(t *testing.T) {
	t.Parallel()

	auth := &fakeFetcher{}
	r, layout := newTestResolver(t, auth, &fakeFetcher{}, nil)

	res := r.Document(context.Background(), Request{URL: "javascript:void(0)", Path: filepath.Join(layout.Root, "x.pdf")})
	assert.Equal(t, scrape.StatusFailed, res.Status)
	require.ErrorIs(t, res.Err, ErrUnsupportedScheme)
	assert.Zero(t, auth.calls())
}

func TestRecordingSkipsAnyFileWithStem(t *testing.T) {
	t.Parallel()

	media := &fakeExtractor{body: "ID3"}
	auth := &fakeFetcher{}
	r, layout := newTestResolver(t, auth, &fakeFetcher{}, media)
	require.NoError(t, os.WriteFile(filepath.Join(layout.Concalls, "REC.m4a"), []byte("audio"), 0o600))

	res := r.Recording(context.Background(), Request{
		URL:  "https://www.youtube.com/watch?v=abc",
		Path: filepath.Join(layout.Concalls, "REC.mp3"),
	})
	assert.Equal(t, scrape.StatusSkipped, res.Status)
	assert.Equal(t, filepath.Join(layout.Concalls, "REC.m4a"), res.Path)
	assert.Zero(t, media.calls)
	assert.Zero(t, auth.calls())
}

func TestRecordingRetriesInterruptedExtraction(t *testing.T) {
	t.Parallel()

	media := &fakeExtractor{body: "ID3audio"}
	r, layout := newTestResolver(t, &fakeFetcher{}, &fakeFetcher{}, media)
	require.NoError(t, os.WriteFile(filepath.Join(layout.Concalls, "REC.mp3.part"), []byte("partial"), 0o600))
	path := filepath.Join(layout.Concalls, "REC.mp3")

	res := r.Recording(context.Background(), Request{URL: "https://youtu.be/abc", Path: path})
	require.Equal(t, scrape.StatusRetrieved, res.Status, res.Err)
	assert.Equal(t, path, res.Path)
	assert.Equal(t, 1, media.calls)
}

func TestRecordingExtractsVideoAudio(t *testing.T) {
	t.Parallel()

	media := &fakeExtractor{body: "ID3audio"}
	auth := &fakeFetcher{}
	r, layout := newTestResolver(t, auth, &fakeFetcher{}, media)
	path := filepath.Join(layout.Concalls, "REC.mp3")

	res := r.Recording(context.Background(), Request{URL: "https://youtu.be/abc", Path: path})
	require.Equal(t, scrape.StatusRetrieved, res.Status, res.Err)
	assert.Equal(t, "audio-extract", res.Strategy)
	assert.EqualValues(t, 8, res.Bytes)
	assert.Len(t, res.Digest, 64)
	assert.Equal(t, 1, media.calls)
	assert.Zero(t, auth.calls())
}

func TestRecordingExtractionFailure(t *testing.T) {
	t.Parallel()

	media := &fakeExtractor{err: errors.New("tool unavailable")}
	r, layout := newTestResolver(t, &fakeFetcher{}, &fakeFetcher{}, media)

	res := r.Recording(context.Background(), Request{URL: "https://youtu.be/abc", Path: filepath.Join(layout.Concalls, "REC.mp3")})
	assert.Equal(t, scrape.StatusFailed, res.Status)
	assert.ErrorContains(t, res.Err, "tool unavailable")

	none, layout2 := newTestResolver(t, &fakeFetcher{}, &fakeFetcher{}, nil)
	res = none.Recording(context.Background(), Request{URL: "https://youtu.be/abc", Path: filepath.Join(layout2.Concalls, "REC.mp3")})
	require.ErrorIs(t, res.Err, ErrNoExtractor)
}

func TestRecordingFetchesPlainAudio(t *testing.T) {
	t.Parallel()

	auth := &fakeFetcher{respond: okBody("ID3", "audio/mpeg")}
	media := &fakeExtractor{}
	r, layout := newTestResolver(t, auth, &fakeFetcher{}, media)

	res := r.Recording(context.Background(), Request{
		URL:  "https://cdn.example.com/call.mp3",
		Path: filepath.Join(layout.Concalls, "Audio.mp3"),
	})
	assert.Equal(t, scrape.StatusRetrieved, res.Status)
	assert.Equal(t, "authenticated", res.Strategy)
	assert.Zero(t, media.calls)
}
