package coordinator

import (
	"fmt"
	"time"

	"github.com/JakeFAU/disclosure-scraper/internal/scrape"
)

// Summary holds the per-entity counts.
type Summary struct {
	Entity        string
	Dir           string
	Spreadsheet   bool
	AnnualReports int
	CreditRatings int
	Concalls      int
	Duration      time.Duration
	// Err is set by RunBatch when the entity failed.
	Err error
}

func (s *Summary) record(category scrape.Category, count int) {
	switch category {
	case scrape.CategorySpreadsheet:
		s.Spreadsheet = count > 0
	case scrape.CategoryAnnualReports:
		s.AnnualReports = count
	case scrape.CategoryCreditRatings:
		s.CreditRatings = count
	case scrape.CategoryConcalls:
		s.Concalls = count
	}
}

// String renders the one-line report shown after each entity.
func (s Summary) String() string {
	mark := "✗"
	if s.Spreadsheet {
		mark = "✓"
	}
	return fmt.Sprintf("Excel: %s  |  Annual Reports: %d  |  Ratings: %d  |  Concalls: %d",
		mark, s.AnnualReports, s.CreditRatings, s.Concalls)
}
