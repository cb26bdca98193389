package category

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/JakeFAU/disclosure-scraper/internal/retrieval"
	"github.com/JakeFAU/disclosure-scraper/internal/scrape"
)

func TestAnnualReportsFiltersByFiscalYear(t *testing.T) {
	t.Parallel()

	docs := &fakeDocs{}
	in := testInput(t, mustDocument(t, entityPage))
	reported := newCollected()
	in.Reporter = reported

	count := NewAnnualReports(docs, zaptest.NewLogger(t)).Run(context.Background(), in)

	require.Equal(t, 2, count)
	assert.Equal(t, []string{
		filepath.Join(in.Layout.AnnualReports, "AnnualReport_FY2024_Financial_Year_2024.pdf"),
		filepath.Join(in.Layout.AnnualReports, "AnnualReport_FY2023_Financial_Year_2023.pdf"),
	}, docs.paths())
	assert.Len(t, reported.results[scrape.CategoryAnnualReports], 2)
	assert.Equal(t, referer, docs.calls[0].req.Referer)
}

func TestAnnualReportsCountsOnlySuccess(t *testing.T) {
	t.Parallel()

	docs := &fakeDocs{fail: map[string]bool{"https://www.bseindia.com/ar/2024.pdf": true}}
	in := testInput(t, mustDocument(t, entityPage))

	count := NewAnnualReports(docs, nil).Run(context.Background(), in)
	assert.Equal(t, 1, count)
	assert.Len(t, docs.calls, 2)
}

func TestAnnualReportsMissingSection(t *testing.T) {
	t.Parallel()

	docs := &fakeDocs{}
	in := testInput(t, mustDocument(t, `<html><body><p>nothing here</p></body></html>`))
	assert.Zero(t, NewAnnualReports(docs, nil).Run(context.Background(), in))
	assert.Empty(t, docs.calls)
}

func TestCreditRatingsYearFromRowThenText(t *testing.T) {
	t.Parallel()

	docs := &fakeDocs{}
	in := testInput(t, mustDocument(t, entityPage))

	count := NewCreditRatings(docs, zaptest.NewLogger(t)).Run(context.Background(), in)

	require.Equal(t, 2, count)
	assert.Equal(t, []string{
		filepath.Join(in.Layout.CreditRatings, "CreditRating_2024_Rating_update_14_Mar_2024_from_icra.pdf"),
		filepath.Join(in.Layout.CreditRatings, "CreditRating_2023_Rating_2023.pdf"),
	}, docs.paths())
}

func TestConcallsUsesFreshSnapshot(t *testing.T) {
	t.Parallel()

	docs := &fakeDocs{}
	dirs := &dirRecorder{}
	in := testInput(t, mustDocument(t, entityPage))
	page := &fakePage{snapshot: mustDocument(t, concallSection)}
	in.Page = page

	count := NewConcalls(ConcallsConfig{}, docs, dirs, zaptest.NewLogger(t)).Run(context.Background(), in)

	require.Equal(t, 4, count)
	assert.Equal(t, []string{HeadingConcalls}, page.scrolled)
	assert.Equal(t, []string{
		filepath.Join(in.Layout.Concalls, "2023_11_Nov_2023"),
		filepath.Join(in.Layout.Concalls, "2023_08_Aug_2023"),
	}, dirs.dirs)

	nov := filepath.Join(in.Layout.Concalls, "2023_11_Nov_2023")
	require.Len(t, docs.calls, 4)
	assert.Equal(t, filepath.Join(nov, "Transcript.pdf"), docs.calls[0].req.Path)
	assert.False(t, docs.calls[0].recording)
	assert.Equal(t, filepath.Join(nov, "PPT.pptx"), docs.calls[1].req.Path)
	assert.Equal(t, filepath.Join(nov, "REC.mp3"), docs.calls[2].req.Path)
	assert.True(t, docs.calls[2].recording)
	assert.Equal(t, filepath.Join(in.Layout.Concalls, "2023_08_Aug_2023", "file.pdf"), docs.calls[3].req.Path)
}

func TestConcallsSettleDefault(t *testing.T) {
	t.Parallel()

	page := &fakePage{snapshot: mustDocument(t, concallSection)}
	in := testInput(t, nil)
	in.Page = page

	NewConcalls(ConcallsConfig{Settle: DefaultConcallSettle}, &fakeDocs{}, &dirRecorder{}, nil).Run(context.Background(), in)
	assert.Equal(t, 1, page.snapshots)
	require.Len(t, page.settled, 1)
	assert.Equal(t, DefaultConcallSettle, page.settled[0])
}

func TestConcallsFallsBackToInputTree(t *testing.T) {
	t.Parallel()

	docs := &fakeDocs{}
	in := testInput(t, mustDocument(t, concallSection))
	in.Page = &fakePage{snapErr: errors.New("target closed")}

	count := NewConcalls(ConcallsConfig{MonthsBack: 2}, docs, &dirRecorder{}, nil).Run(context.Background(), in)
	assert.Zero(t, count, "every event predates a two month window")
	assert.Empty(t, docs.calls)
}

func TestConcallsSkipsEventWhenFolderFails(t *testing.T) {
	t.Parallel()

	docs := &fakeDocs{}
	in := testInput(t, mustDocument(t, concallSection))

	count := NewConcalls(ConcallsConfig{}, docs, &dirRecorder{err: errors.New("read-only")}, nil).Run(context.Background(), in)
	assert.Zero(t, count)
	assert.Empty(t, docs.calls)
}

type fakeSpreadsheets struct {
	status  scrape.Status
	rootDir string
	page    retrieval.ExportPage
}

func (f *fakeSpreadsheets) Resolve(_ context.Context, page retrieval.ExportPage, _, rootDir, _ string) scrape.Result {
	f.rootDir = rootDir
	f.page = page
	return scrape.Result{Status: f.status}
}

func TestSpreadsheetReportsOneOrZero(t *testing.T) {
	t.Parallel()

	in := testInput(t, nil)
	reported := newCollected()
	in.Reporter = reported

	ok := &fakeSpreadsheets{status: scrape.StatusSkipped}
	assert.Equal(t, 1, NewSpreadsheet(ok).Run(context.Background(), in))
	assert.Equal(t, in.Layout.Root, ok.rootDir)
	assert.Nil(t, ok.page)

	failed := &fakeSpreadsheets{status: scrape.StatusFailed}
	assert.Zero(t, NewSpreadsheet(failed).Run(context.Background(), in))
	assert.Len(t, reported.results[scrape.CategorySpreadsheet], 2)
}

func TestReporterFunc(t *testing.T) {
	t.Parallel()

	var got scrape.Category
	ReporterFunc(func(c scrape.Category, _ scrape.Result) { got = c }).Report(scrape.CategoryConcalls, scrape.Result{})
	assert.Equal(t, scrape.CategoryConcalls, got)
}
