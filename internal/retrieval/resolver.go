package retrieval

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/disclosure-scraper/internal/scrape"
)

var (
	// ErrUnsupportedScheme rejects references that are not http(s).
	ErrUnsupportedScheme = errors.New("unsupported url scheme")
	// ErrEmptyBody rejects successful responses without content.
	ErrEmptyBody = errors.New("empty response body")
	// ErrNoExtractor is returned for video references when audio extraction is disabled.
	ErrNoExtractor = errors.New("audio extraction not configured")
)

// ArtifactStore persists artifacts and answers existence checks.
type ArtifactStore interface {
	HasArtifact(path string) (int64, bool)
	HasStem(stemPath string) (string, int64, bool)
	FindByExt(dir, ext string) (string, int64, bool)
	WriteArtifact(path string, body []byte) (int64, error)
	Adopt(src, dst string) (int64, error)
}

// AudioExtractor writes the audio track of a video page to outPath.
type AudioExtractor interface {
	Extract(ctx context.Context, url, outPath string) (string, error)
}

// FileHasher digests bodies and files already on disk.
type FileHasher interface {
	scrape.Hasher
	HashFile(path string) (string, int64, error)
}

// Request asks for url to be stored at Path.
type Request struct {
	URL     string
	Path    string
	Referer string
}

// Resolver fetches documents and recordings.
type Resolver struct {
	auth   scrape.Fetcher
	direct scrape.Fetcher
	media  AudioExtractor
	store  ArtifactStore
	hasher FileHasher
	logger *zap.Logger
}

// NewResolver builds a Resolver. auth carries the session cookies, direct is
// the anonymous fallback. media may be nil to disable audio extraction.
func NewResolver(
	auth, direct scrape.Fetcher,
	media AudioExtractor,
	store ArtifactStore,
	hasher FileHasher,
	logger *zap.Logger,
) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{
		auth:   auth,
		direct: direct,
		media:  media,
		store:  store,
		hasher: hasher,
		logger: logger.Named("resolver"),
	}
}

// Document ensures a non-empty file exists at req.Path. Failures are
// reported in the result, never returned or panicked.
func (r *Resolver) Document(ctx context.Context, req Request) scrape.Result {
	start := time.Now()
	url := scrape.CleanURL(req.URL)
	if !scrape.IsHTTPURL(url) {
		return r.finish(scrape.Result{
			Status: scrape.StatusFailed, URL: url, Path: req.Path,
			Err: fmt.Errorf("%w: %q", ErrUnsupportedScheme, url),
		}, start)
	}
	if size, ok := r.store.HasArtifact(req.Path); ok {
		return r.finish(scrape.Result{Status: scrape.StatusSkipped, URL: url, Path: req.Path, Bytes: size}, start)
	}

	strategies := []Strategy{
		r.fetchStrategy("authenticated", r.auth, url, req.Path, http.Header{
			"Referer": {req.Referer},
			"Accept":  {"*/*"},
		}),
		r.fetchStrategy("direct", r.direct, url, req.Path, http.Header{
			"Referer": {req.Referer},
		}),
	}
	name, attempt := RunChain(ctx, strategies)
	return r.finish(resultFrom(name, url, req.Path, attempt), start)
}

// Recording ensures an audio file exists for req. Any non-empty file sharing
// req.Path's stem counts as already retrieved. Video pages go through the
// audio extractor; anything else is fetched as a document.
func (r *Resolver) Recording(ctx context.Context, req Request) scrape.Result {
	start := time.Now()
	url := scrape.CleanURL(req.URL)
	stem := scrape.StemPath(req.Path)
	if existing, size, ok := r.store.HasStem(stem); ok {
		return r.finish(scrape.Result{Status: scrape.StatusSkipped, URL: url, Path: existing, Bytes: size}, start)
	}
	if !scrape.IsVideoURL(url) {
		return r.Document(ctx, Request{URL: url, Path: stem + ".mp3", Referer: req.Referer})
	}

	name, attempt := RunChain(ctx, []Strategy{r.extractStrategy(url, stem+".mp3")})
	return r.finish(resultFrom(name, url, stem+".mp3", attempt), start)
}

func (r *Resolver) fetchStrategy(name string, fetcher scrape.Fetcher, url, path string, headers http.Header) Strategy {
	return Strategy{
		Name: name,
		Run: func(ctx context.Context) Attempt {
			if fetcher == nil {
				return Soft(errors.New("fetcher not configured"))
			}
			resp, err := fetcher.Fetch(ctx, scrape.FetchRequest{URL: url, Headers: headers})
			if err != nil {
				return Soft(err)
			}
			if resp.StatusCode < 200 || resp.StatusCode > 299 {
				return Soft(fmt.Errorf("status %d", resp.StatusCode))
			}
			if len(resp.Body) == 0 {
				return Soft(ErrEmptyBody)
			}
			return r.persist(path, resp.Body)
		},
	}
}

func (r *Resolver) extractStrategy(url, outPath string) Strategy {
	return Strategy{
		Name: "audio-extract",
		Run: func(ctx context.Context) Attempt {
			if r.media == nil {
				return Hard(ErrNoExtractor)
			}
			path, err := r.media.Extract(ctx, url, outPath)
			if err != nil {
				return Hard(err)
			}
			attempt := Attempt{Outcome: Success, Path: path}
			if size, ok := r.store.HasArtifact(path); ok {
				attempt.Bytes = size
			}
			if r.hasher != nil {
				if digest, _, err := r.hasher.HashFile(path); err == nil {
					attempt.Digest = digest
				}
			}
			return attempt
		},
	}
}

// persist writes body to path. Write errors are hard failures: the next
// strategy would hit the same disk.
func (r *Resolver) persist(path string, body []byte) Attempt {
	return persistWith(r.store, r.hasher, path, body)
}

func resultFrom(strategy, url, path string, attempt Attempt) scrape.Result {
	res := scrape.Result{
		Status:   scrape.StatusFailed,
		URL:      url,
		Path:     path,
		Strategy: strategy,
		Note:     attempt.Note,
		Err:      attempt.Err,
	}
	if attempt.Outcome == Success {
		res.Status = scrape.StatusRetrieved
		res.Bytes = attempt.Bytes
		res.Digest = attempt.Digest
		res.Err = nil
		if attempt.Path != "" {
			res.Path = attempt.Path
		}
	}
	return res
}

func (r *Resolver) finish(res scrape.Result, start time.Time) scrape.Result {
	res.Duration = time.Since(start)
	logResult(r.logger, res)
	return res
}

func logResult(logger *zap.Logger, res scrape.Result) {
	fields := []zap.Field{
		zap.String("file", filepath.Base(res.Path)),
		zap.String("url", res.URL),
	}
	switch res.Status {
	case scrape.StatusSkipped:
		logger.Info("already exists", append(fields, zap.Int64("bytes", res.Bytes))...)
	case scrape.StatusRetrieved:
		logger.Info("retrieved", append(fields,
			zap.Int64("bytes", res.Bytes),
			zap.String("via", res.Strategy),
			zap.Duration("took", res.Duration))...)
	default:
		logger.Warn("failed", append(fields, zap.Error(res.Err))...)
	}
}
