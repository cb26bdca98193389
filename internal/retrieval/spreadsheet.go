package retrieval

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/JakeFAU/disclosure-scraper/internal/scrape"
)

const (
	// DefaultMinExportBytes is the smallest body accepted from an export endpoint.
	DefaultMinExportBytes = 5000
	maxClickableText      = 50
	spreadsheetExt        = ".xlsx"
)

// ErrNoExportAction is returned when no export control is present.
var ErrNoExportAction = errors.New("no export action found")

// ExportPage is the page capability the spreadsheet tiers need.
type ExportPage interface {
	// DownloadByText clicks the first link or button whose text contains any
	// of texts (case-insensitive) and waits for the resulting download.
	DownloadByText(ctx context.Context, texts []string) (scrape.Download, error)
	// ClickableTexts lists the trimmed texts of every link and button.
	ClickableTexts(ctx context.Context) ([]string, error)
}

// SpreadsheetConfig configures the export tiers.
type SpreadsheetConfig struct {
	// Labels are the known export control captions.
	Labels []string
	// Endpoints are absolute URL templates with one %s for the entity.
	Endpoints []string
	// MinBytes is the smallest acceptable endpoint body.
	MinBytes int
	// RemedyHint is logged when every tier fails.
	RemedyHint string
}

// SpreadsheetResolver retrieves the per-entity spreadsheet export.
type SpreadsheetResolver struct {
	cfg    SpreadsheetConfig
	auth   scrape.Fetcher
	store  ArtifactStore
	hasher FileHasher
	logger *zap.Logger
}

// NewSpreadsheetResolver builds a SpreadsheetResolver.
func NewSpreadsheetResolver(
	cfg SpreadsheetConfig,
	auth scrape.Fetcher,
	store ArtifactStore,
	hasher FileHasher,
	logger *zap.Logger,
) *SpreadsheetResolver {
	if cfg.MinBytes <= 0 {
		cfg.MinBytes = DefaultMinExportBytes
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SpreadsheetResolver{
		cfg:    cfg,
		auth:   auth,
		store:  store,
		hasher: hasher,
		logger: logger.Named("spreadsheet"),
	}
}

// Resolve ensures a spreadsheet export exists in rootDir. Any non-empty
// .xlsx already there counts as retrieved.
func (s *SpreadsheetResolver) Resolve(ctx context.Context, page ExportPage, entity, rootDir, referer string) scrape.Result {
	start := time.Now()
	if path, size, ok := s.store.FindByExt(rootDir, spreadsheetExt); ok {
		res := scrape.Result{Status: scrape.StatusSkipped, Path: path, Bytes: size, Duration: time.Since(start)}
		logResult(s.logger, res)
		return res
	}

	name, attempt := RunChain(ctx, []Strategy{
		s.ExportAction(page, entity, rootDir),
		s.ExportHeuristic(page, entity, rootDir),
		s.ExportEndpoints(entity, rootDir, referer),
	})
	res := resultFrom(name, "", filepath.Join(rootDir, scrape.SpreadsheetName(entity)), attempt)
	res.Duration = time.Since(start)
	if res.Status == scrape.StatusRetrieved {
		res.Note = s.inspect(res.Path)
	}
	logResult(s.logger, res)
	if res.Status == scrape.StatusFailed {
		s.logger.Warn("spreadsheet export failed, most likely not logged in")
		if s.cfg.RemedyHint != "" {
			s.logger.Info(s.cfg.RemedyHint)
		}
	}
	return res
}

// ExportAction clicks a control captioned with one of the known labels.
func (s *SpreadsheetResolver) ExportAction(page ExportPage, entity, rootDir string) Strategy {
	return Strategy{
		Name: "export-action",
		Run: func(ctx context.Context) Attempt {
			if page == nil || len(s.cfg.Labels) == 0 {
				return Soft(ErrNoExportAction)
			}
			return s.download(ctx, page, s.cfg.Labels, entity, rootDir)
		},
	}
}

// ExportHeuristic clicks the first control whose caption mentions excel or export.
func (s *SpreadsheetResolver) ExportHeuristic(page ExportPage, entity, rootDir string) Strategy {
	return Strategy{
		Name: "export-heuristic",
		Run: func(ctx context.Context) Attempt {
			if page == nil {
				return Soft(ErrNoExportAction)
			}
			texts, err := page.ClickableTexts(ctx)
			if err != nil {
				return Soft(fmt.Errorf("list controls: %w", err))
			}
			hints := ExportHints(texts)
			if len(hints) == 0 {
				s.logger.Info("no export button found on page; this usually means the session is not logged in")
				return Soft(ErrNoExportAction)
			}
			s.logger.Info("found export-like controls, trying the first", zap.Strings("controls", hints))
			return s.download(ctx, page, hints[:1], entity, rootDir)
		},
	}
}

// ExportEndpoints tries the conventional export URLs with the session.
func (s *SpreadsheetResolver) ExportEndpoints(entity, rootDir, referer string) Strategy {
	return Strategy{
		Name: "export-endpoint",
		Run: func(ctx context.Context) Attempt {
			if s.auth == nil || len(s.cfg.Endpoints) == 0 {
				return Soft(errors.New("no export endpoints configured"))
			}
			var errs []error
			for _, tpl := range s.cfg.Endpoints {
				url := fmt.Sprintf(tpl, entity)
				resp, err := s.auth.Fetch(ctx, scrape.FetchRequest{
					URL:     url,
					Headers: http.Header{"Referer": {referer}},
				})
				if err != nil {
					var statusErr *scrape.StatusError
					if errors.As(err, &statusErr) {
						s.logEndpoint(url, statusErr.StatusCode, statusErr.ContentType, statusErr.Bytes)
					} else {
						s.logger.Info("export endpoint failed", zap.String("url", url), zap.Error(err))
					}
					errs = append(errs, err)
					continue
				}
				s.logEndpoint(url, resp.StatusCode, resp.Headers.Get("Content-Type"), len(resp.Body))
				if !AcceptExport(resp, s.cfg.MinBytes) {
					errs = append(errs, fmt.Errorf("%s: rejected response", url))
					continue
				}
				return persistWith(s.store, s.hasher, filepath.Join(rootDir, scrape.SpreadsheetName(entity)), resp.Body)
			}
			return Soft(errors.Join(errs...))
		},
	}
}

func (s *SpreadsheetResolver) logEndpoint(url string, status int, contentType string, size int) {
	s.logger.Info("export endpoint responded",
		zap.String("url", url),
		zap.Int("status", status),
		zap.String("content_type", truncate(contentType, 50)),
		zap.Int("bytes", size))
}

func (s *SpreadsheetResolver) download(ctx context.Context, page ExportPage, texts []string, entity, rootDir string) Attempt {
	dl, err := page.DownloadByText(ctx, texts)
	if err != nil {
		s.logger.Info("export click failed", zap.Strings("captions", texts), zap.Error(err))
		return Soft(err)
	}
	dst := filepath.Join(rootDir, DownloadName(dl.SuggestedFilename, entity))
	n, err := s.store.Adopt(dl.Path, dst)
	if err != nil {
		return Soft(fmt.Errorf("keep download: %w", err))
	}
	attempt := Attempt{Outcome: Success, Path: dst, Bytes: n}
	if s.hasher != nil {
		if digest, _, err := s.hasher.HashFile(dst); err == nil {
			attempt.Digest = digest
		}
	}
	return attempt
}

// inspect opens the workbook and describes its sheets.
func (s *SpreadsheetResolver) inspect(path string) string {
	f, err := excelize.OpenFile(path)
	if err != nil {
		s.logger.Warn("export is not a readable workbook", zap.String("path", path), zap.Error(err))
		return ""
	}
	defer f.Close() //nolint:errcheck // read-only
	sheets := f.GetSheetList()
	s.logger.Debug("workbook sheets", zap.Strings("sheets", sheets))
	return fmt.Sprintf("sheets: %s", strings.Join(sheets, ", "))
}

// ExportHints filters control captions down to plausible export actions.
func ExportHints(texts []string) []string {
	var hints []string
	for _, text := range texts {
		text = strings.TrimSpace(text)
		n := utf8.RuneCountInString(text)
		if n == 0 || n >= maxClickableText {
			continue
		}
		lower := strings.ToLower(text)
		if strings.Contains(lower, "excel") || strings.Contains(lower, "export") {
			hints = append(hints, text)
		}
	}
	return hints
}

// AcceptExport reports whether an endpoint response looks like a workbook.
func AcceptExport(resp scrape.FetchResponse, minBytes int) bool {
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return false
	}
	if len(resp.Body) <= minBytes {
		return false
	}
	return !strings.Contains(strings.ToLower(resp.Headers.Get("Content-Type")), "html")
}

// DownloadName picks the local name for a browser download.
func DownloadName(suggested, entity string) string {
	name := filepath.Base(strings.TrimSpace(suggested))
	if name == "" || name == "." || name == string(filepath.Separator) {
		return scrape.SpreadsheetName(entity)
	}
	return name
}

func persistWith(store ArtifactStore, hasher FileHasher, path string, body []byte) Attempt {
	n, err := store.WriteArtifact(path, body)
	if err != nil {
		return Hard(fmt.Errorf("store artifact: %w", err))
	}
	attempt := Attempt{Outcome: Success, Path: path, Bytes: n}
	if hasher != nil {
		if digest, err := hasher.Hash(body); err == nil {
			attempt.Digest = digest
		}
	}
	return attempt
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
