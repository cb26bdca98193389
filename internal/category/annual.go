package category

import (
	"context"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/JakeFAU/disclosure-scraper/internal/locator"
	"github.com/JakeFAU/disclosure-scraper/internal/retrieval"
	"github.com/JakeFAU/disclosure-scraper/internal/scrape"
	"github.com/JakeFAU/disclosure-scraper/internal/timewindow"
)

// AnnualReports retrieves annual reports for the fiscal years of interest.
type AnnualReports struct {
	docs   Documents
	logger *zap.Logger
}

// NewAnnualReports builds the annual report orchestrator.
func NewAnnualReports(docs Documents, logger *zap.Logger) *AnnualReports {
	return &AnnualReports{docs: docs, logger: orNop(logger)}
}

// Category implements Orchestrator.
func (a *AnnualReports) Category() scrape.Category {
	return scrape.CategoryAnnualReports
}

// Run implements Orchestrator. The year comes from the listing row; rows
// without a year or outside the fiscal-year set are ignored.
func (a *AnnualReports) Run(ctx context.Context, in Input) int {
	logger := a.logger.With(zap.String("entity", in.Entity))
	count := 0
	for _, ref := range locator.Locate(in.Tree, HeadingAnnualReports) {
		if ctx.Err() != nil {
			break
		}
		year, ok := timewindow.YearFromText(ref.RowText)
		if !ok || !in.Years.Contains(year) {
			continue
		}
		path := filepath.Join(in.Layout.AnnualReports, scrape.AnnualReportName(year, ref.RowText))
		res := a.docs.Document(ctx, retrieval.Request{URL: ref.URL, Path: path, Referer: in.Referer})
		in.report(scrape.CategoryAnnualReports, res)
		if res.OK() {
			count++
		}
	}
	logCount(logger, scrape.CategoryAnnualReports, count)
	return count
}
