package coordinator

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/disclosure-scraper/internal/category"
	"github.com/JakeFAU/disclosure-scraper/internal/clock/system"
	"github.com/JakeFAU/disclosure-scraper/internal/locator"
	"github.com/JakeFAU/disclosure-scraper/internal/progress"
	"github.com/JakeFAU/disclosure-scraper/internal/scrape"
	"github.com/JakeFAU/disclosure-scraper/internal/storage/local"
	"github.com/JakeFAU/disclosure-scraper/internal/timewindow"
)

const (
	// DefaultCompanyURL is the entity detail page template.
	DefaultCompanyURL = "https://www.screener.in/company/%s/consolidated/"
	// DefaultDocumentsSelector is the region scrolled into view before the
	// categories run.
	DefaultDocumentsSelector = "#documents"
	// DefaultSettle is the wait after scrolling the documents region.
	DefaultSettle = 2 * time.Second
)

// ErrPanic marks an entity aborted by a recovered panic.
var ErrPanic = errors.New("entity processing panicked")

// Page is one browser tab showing an entity detail page.
type Page interface {
	category.Page
	Navigate(ctx context.Context, url string) error
	Title(ctx context.Context) (string, error)
	HTML(ctx context.Context) (string, error)
	ScrollIntoView(ctx context.Context, selector string) error
	Close() error
}

// PageOpener opens a fresh tab in the shared browser.
type PageOpener func(ctx context.Context) (Page, error)

// Layouts prepares entity directories and stores page snapshots.
type Layouts interface {
	EnsureLayout(entity string) (local.Layout, error)
	SavePage(layout local.Layout, name string, markup []byte) (string, error)
}

// Config tunes the coordinator.
type Config struct {
	// CompanyURL is a template with one %s for the entity.
	CompanyURL        string
	DocumentsSelector string
	Settle            time.Duration
	// SavePages stores the rendered detail page under pages/.
	SavePages bool
}

// Coordinator runs the category orchestrators for each entity.
type Coordinator struct {
	cfg           Config
	layouts       Layouts
	open          PageOpener
	orchestrators []category.Orchestrator
	emitter       progress.Emitter
	clock         scrape.Clock
	runID         [16]byte
	logger        *zap.Logger
}

// New builds a Coordinator. orchestrators run in the order given.
func New(
	cfg Config,
	layouts Layouts,
	open PageOpener,
	orchestrators []category.Orchestrator,
	emitter progress.Emitter,
	clock scrape.Clock,
	runID [16]byte,
	logger *zap.Logger,
) *Coordinator {
	if cfg.CompanyURL == "" {
		cfg.CompanyURL = DefaultCompanyURL
	}
	if cfg.DocumentsSelector == "" {
		cfg.DocumentsSelector = DefaultDocumentsSelector
	}
	if cfg.Settle < 0 {
		cfg.Settle = 0
	}
	if emitter == nil {
		emitter = progress.Discard{}
	}
	if clock == nil {
		clock = system.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Coordinator{
		cfg:           cfg,
		layouts:       layouts,
		open:          open,
		orchestrators: orchestrators,
		emitter:       emitter,
		clock:         clock,
		runID:         runID,
		logger:        logger,
	}
}

// CompanyURL returns the detail page address for entity.
func (c *Coordinator) CompanyURL(entity string) string {
	return fmt.Sprintf(c.cfg.CompanyURL, entity)
}

// ProcessEntity retrieves every category for entity. The returned error is
// set only when the detail page could not be prepared; category and item
// failures are reflected in the Summary counts.
func (c *Coordinator) ProcessEntity(ctx context.Context, entity string) (Summary, error) {
	start := c.clock.Now()
	summary := Summary{Entity: entity}
	c.emit(progress.Event{TS: start, Stage: progress.StageEntityStart, Entity: entity})

	err := c.process(ctx, entity, start, &summary)
	summary.Duration = c.clock.Now().Sub(start)
	if summary.Duration < 0 {
		summary.Duration = 0
	}
	c.finish(summary, err)
	return summary, err
}

func (c *Coordinator) process(ctx context.Context, entity string, now time.Time, summary *Summary) error {
	logger := c.logger.With(zap.String("entity", entity))

	layout, err := c.layouts.EnsureLayout(entity)
	if err != nil {
		return fmt.Errorf("prepare layout: %w", err)
	}
	summary.Dir = layout.Root
	years := timewindow.FiscalYearsOfInterest(now)
	url := c.CompanyURL(entity)
	logger.Info("processing entity", zap.String("url", url), zap.Ints("fiscal_years", years.Years()))

	page, err := c.open(ctx)
	if err != nil {
		return fmt.Errorf("open page: %w", err)
	}
	defer func() {
		if err := page.Close(); err != nil {
			logger.Debug("page close failed", zap.Error(err))
		}
	}()

	if err := page.Navigate(ctx, url); err != nil {
		return fmt.Errorf("load %s: %w", url, err)
	}
	if title, err := page.Title(ctx); err == nil {
		logger.Info("loaded", zap.String("title", title))
	}
	if err := page.ScrollIntoView(ctx, c.cfg.DocumentsSelector); err != nil {
		logger.Debug("documents region not scrolled", zap.Error(err))
	}
	if err := page.Settle(ctx, c.cfg.Settle); err != nil {
		return fmt.Errorf("settle page: %w", err)
	}

	markup, err := page.HTML(ctx)
	if err != nil {
		return fmt.Errorf("read page: %w", err)
	}
	if c.cfg.SavePages {
		if path, err := c.layouts.SavePage(layout, entity, []byte(markup)); err != nil {
			logger.Warn("page snapshot not saved", zap.Error(err))
		} else {
			logger.Debug("page snapshot saved", zap.String("path", path))
		}
	}
	tree, err := locator.NewDocumentFromString(markup, url)
	if err != nil {
		return fmt.Errorf("parse page: %w", err)
	}

	in := category.Input{
		Entity:   entity,
		Layout:   layout,
		Referer:  url,
		Years:    years,
		Now:      now,
		Tree:     tree,
		Page:     page,
		Reporter: c.reporter(entity),
	}
	for _, orch := range c.orchestrators {
		if ctx.Err() != nil {
			return fmt.Errorf("interrupted before %s: %w", orch.Category(), ctx.Err())
		}
		logger.Info("category", zap.String("category", string(orch.Category())))
		summary.record(orch.Category(), orch.Run(ctx, in))
	}
	return nil
}

func (c *Coordinator) finish(summary Summary, err error) {
	logger := c.logger.With(zap.String("entity", summary.Entity))
	evt := progress.Event{
		TS:     c.clock.Now(),
		Stage:  progress.StageEntityDone,
		Entity: summary.Entity,
		Path:   summary.Dir,
		Dur:    summary.Duration,
	}
	if err != nil {
		evt.Stage = progress.StageEntityError
		evt.Note = err.Error()
		logger.Error("entity failed", zap.Error(err))
	} else {
		logger.Info("done", zap.String("dir", summary.Dir))
		logger.Info(summary.String(),
			zap.Bool("spreadsheet", summary.Spreadsheet),
			zap.Int("annual_reports", summary.AnnualReports),
			zap.Int("credit_ratings", summary.CreditRatings),
			zap.Int("concalls", summary.Concalls),
		)
	}
	c.emit(evt)
}

func (c *Coordinator) reporter(entity string) category.Reporter {
	return category.ReporterFunc(func(cat scrape.Category, res scrape.Result) {
		c.emit(progress.ArtifactEvent(c.runID, entity, cat, res, c.clock.Now()))
	})
}

func (c *Coordinator) emit(evt progress.Event) {
	evt.RunID = c.runID
	c.emitter.Emit(evt)
}

// RunBatch processes entities in order. Cancellation is honoured between
// entities; a panic inside one entity is logged with its stack and the batch
// moves on.
func (c *Coordinator) RunBatch(ctx context.Context, entities []string) []Summary {
	summaries := make([]Summary, 0, len(entities))
	for i, entity := range entities {
		if ctx.Err() != nil {
			c.logger.Warn("batch interrupted",
				zap.Int("processed", i),
				zap.Int("remaining", len(entities)-i))
			break
		}
		c.logger.Info(fmt.Sprintf("[%d/%d] %s", i+1, len(entities), entity))
		summary, err := c.safeProcess(ctx, entity)
		summary.Err = err
		summaries = append(summaries, summary)
	}
	return summaries
}

func (c *Coordinator) safeProcess(ctx context.Context, entity string) (summary Summary, err error) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("entity panicked",
				zap.String("entity", entity),
				zap.Any("panic", r),
				zap.String("stack", string(debug.Stack())))
			summary = Summary{Entity: entity}
			err = fmt.Errorf("%w: %v", ErrPanic, r)
			c.emit(progress.Event{
				TS:     c.clock.Now(),
				Stage:  progress.StageEntityError,
				Entity: entity,
				Note:   err.Error(),
			})
		}
	}()
	return c.ProcessEntity(ctx, entity)
}
