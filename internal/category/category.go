package category

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/disclosure-scraper/internal/locator"
	"github.com/JakeFAU/disclosure-scraper/internal/retrieval"
	"github.com/JakeFAU/disclosure-scraper/internal/scrape"
	"github.com/JakeFAU/disclosure-scraper/internal/storage/local"
	"github.com/JakeFAU/disclosure-scraper/internal/timewindow"
)

// Section headings as rendered on the entity detail page.
const (
	HeadingAnnualReports = "Annual reports"
	HeadingCreditRatings = "Credit ratings"
	HeadingConcalls      = "Concalls"
)

// Page is the rendered entity page as seen by the orchestrators.
type Page interface {
	retrieval.ExportPage
	ScrollToText(ctx context.Context, text string) error
	Settle(ctx context.Context, d time.Duration) error
	Snapshot(ctx context.Context) (*locator.Document, error)
}

// Documents resolves single references to local files.
type Documents interface {
	Document(ctx context.Context, req retrieval.Request) scrape.Result
	Recording(ctx context.Context, req retrieval.Request) scrape.Result
}

// Spreadsheets resolves the workbook export.
type Spreadsheets interface {
	Resolve(ctx context.Context, page retrieval.ExportPage, entity, rootDir, referer string) scrape.Result
}

// DirMaker creates per-event folders.
type DirMaker interface {
	EnsureDir(dir string) error
}

// Reporter receives every artifact outcome.
type Reporter interface {
	Report(category scrape.Category, res scrape.Result)
}

// ReporterFunc adapts a function to Reporter.
type ReporterFunc func(category scrape.Category, res scrape.Result)

// Report implements Reporter.
func (f ReporterFunc) Report(category scrape.Category, res scrape.Result) {
	f(category, res)
}

// Input is everything an orchestrator needs for one entity.
type Input struct {
	Entity string
	Layout local.Layout
	// Referer is the entity detail page URL.
	Referer string
	Years   timewindow.FiscalYears
	Now     time.Time
	// Tree is the settled snapshot of the detail page.
	Tree     locator.Tree
	Page     Page
	Reporter Reporter
}

func (in Input) report(category scrape.Category, res scrape.Result) {
	if in.Reporter != nil {
		in.Reporter.Report(category, res)
	}
}

// Orchestrator retrieves one category for one entity and returns how many
// artifacts are present afterwards.
type Orchestrator interface {
	Category() scrape.Category
	Run(ctx context.Context, in Input) int
}

func logCount(logger *zap.Logger, category scrape.Category, count int) {
	if count == 0 {
		logger.Info("none found", zap.String("category", string(category)))
		return
	}
	logger.Info("category complete", zap.String("category", string(category)), zap.Int("count", count))
}

func orNop(logger *zap.Logger) *zap.Logger {
	if logger == nil {
		return zap.NewNop()
	}
	return logger
}
