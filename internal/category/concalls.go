package category

import (
	"context"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/disclosure-scraper/internal/locator"
	"github.com/JakeFAU/disclosure-scraper/internal/retrieval"
	"github.com/JakeFAU/disclosure-scraper/internal/scrape"
	"github.com/JakeFAU/disclosure-scraper/internal/timewindow"
)

// DefaultConcallSettle is how long the concall listing gets to render after
// it is scrolled into view.
const DefaultConcallSettle = 1500 * time.Millisecond

// ConcallsConfig tunes the concall orchestrator.
type ConcallsConfig struct {
	// MonthsBack is the retention window (default 18).
	MonthsBack int
	// Settle is the wait after scrolling the heading into view.
	Settle time.Duration
}

// Concalls retrieves earnings-call documents and recordings grouped by month.
type Concalls struct {
	cfg    ConcallsConfig
	docs   Documents
	dirs   DirMaker
	logger *zap.Logger
}

// NewConcalls builds the concall orchestrator.
func NewConcalls(cfg ConcallsConfig, docs Documents, dirs DirMaker, logger *zap.Logger) *Concalls {
	if cfg.MonthsBack <= 0 {
		cfg.MonthsBack = timewindow.DefaultMonthsBack
	}
	if cfg.Settle < 0 {
		cfg.Settle = 0
	}
	return &Concalls{cfg: cfg, docs: docs, dirs: dirs, logger: orNop(logger)}
}

// Category implements Orchestrator.
func (c *Concalls) Category() scrape.Category {
	return scrape.CategoryConcalls
}

// Run implements Orchestrator. The listing is lazily rendered, so the page is
// scrolled to the heading and re-snapshotted before events are located.
func (c *Concalls) Run(ctx context.Context, in Input) int {
	logger := c.logger.With(zap.String("entity", in.Entity))
	cutoff := timewindow.ConcallCutoff(in.Now, c.cfg.MonthsBack)
	tree := c.refresh(ctx, in, logger)

	count := 0
	for _, event := range locator.LocateEvents(tree, HeadingConcalls) {
		if ctx.Err() != nil {
			break
		}
		ym, ok := timewindow.MonthYearFromText(event.DateLabel)
		if !ok || !ym.AtOrAfter(cutoff) {
			continue
		}
		folder := filepath.Join(in.Layout.Concalls, scrape.ConcallFolderName(ym, event.DateLabel))
		if err := c.dirs.EnsureDir(folder); err != nil {
			logger.Warn("cannot create concall folder", zap.String("path", folder), zap.Error(err))
			continue
		}
		logger.Info("concall",
			zap.String("date", event.DateLabel),
			zap.Int("files", len(event.Files)),
		)
		for _, file := range event.Files {
			res := c.resolve(ctx, in, folder, file)
			in.report(scrape.CategoryConcalls, res)
			if res.OK() {
				count++
			}
		}
	}
	logCount(logger, scrape.CategoryConcalls, count)
	return count
}

func (c *Concalls) resolve(ctx context.Context, in Input, folder string, file scrape.FileRef) scrape.Result {
	label := scrape.FileLabel(file.Label)
	kind := scrape.ClassifyFile(label, file.URL)
	req := retrieval.Request{
		URL:     file.URL,
		Path:    filepath.Join(folder, label+kind.Ext()),
		Referer: in.Referer,
	}
	if kind == scrape.KindRecording {
		return c.docs.Recording(ctx, req)
	}
	return c.docs.Document(ctx, req)
}

func (c *Concalls) refresh(ctx context.Context, in Input, logger *zap.Logger) locator.Tree {
	if in.Page == nil {
		return in.Tree
	}
	if err := in.Page.ScrollToText(ctx, HeadingConcalls); err != nil {
		logger.Debug("concall heading not scrolled", zap.Error(err))
	}
	if err := in.Page.Settle(ctx, c.cfg.Settle); err != nil {
		return in.Tree
	}
	doc, err := in.Page.Snapshot(ctx)
	if err != nil {
		logger.Warn("concall snapshot failed, using page snapshot", zap.Error(err))
		return in.Tree
	}
	return doc
}
