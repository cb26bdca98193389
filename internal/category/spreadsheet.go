package category

import (
	"context"

	"github.com/JakeFAU/disclosure-scraper/internal/scrape"
)

// Spreadsheet retrieves the financial workbook export into the entity root.
type Spreadsheet struct {
	resolver Spreadsheets
}

// NewSpreadsheet builds the workbook orchestrator.
func NewSpreadsheet(resolver Spreadsheets) *Spreadsheet {
	return &Spreadsheet{resolver: resolver}
}

// Category implements Orchestrator.
func (s *Spreadsheet) Category() scrape.Category {
	return scrape.CategorySpreadsheet
}

// Run implements Orchestrator and returns 1 when a workbook is present.
func (s *Spreadsheet) Run(ctx context.Context, in Input) int {
	res := s.resolver.Resolve(ctx, in.Page, in.Entity, in.Layout.Root, in.Referer)
	in.report(scrape.CategorySpreadsheet, res)
	if res.OK() {
		return 1
	}
	return 0
}
