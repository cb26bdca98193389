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

// CreditRatings retrieves credit rating documents for the fiscal years of
// interest.
type CreditRatings struct {
	docs   Documents
	logger *zap.Logger
}

// NewCreditRatings builds the credit rating orchestrator.
func NewCreditRatings(docs Documents, logger *zap.Logger) *CreditRatings {
	return &CreditRatings{docs: docs, logger: orNop(logger)}
}

// Category implements Orchestrator.
func (c *CreditRatings) Category() scrape.Category {
	return scrape.CategoryCreditRatings
}

// Run implements Orchestrator.
func (c *CreditRatings) Run(ctx context.Context, in Input) int {
	logger := c.logger.With(zap.String("entity", in.Entity))
	count := 0
	for _, ref := range locator.Locate(in.Tree, HeadingCreditRatings) {
		if ctx.Err() != nil {
			break
		}
		year, ok := ratingYear(ref)
		if !ok || !in.Years.Contains(year) {
			continue
		}
		path := filepath.Join(in.Layout.CreditRatings, scrape.CreditRatingName(year, ref.RowText))
		res := c.docs.Document(ctx, retrieval.Request{URL: ref.URL, Path: path, Referer: in.Referer})
		in.report(scrape.CategoryCreditRatings, res)
		if res.OK() {
			count++
		}
	}
	logCount(logger, scrape.CategoryCreditRatings, count)
	return count
}

func ratingYear(ref scrape.DocumentRef) (int, bool) {
	if year, ok := timewindow.YearFromText(ref.RowText); ok {
		return year, true
	}
	return timewindow.YearFromText(ref.Text)
}
