package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
)

// ErrNotLoggedIn is returned when the login marker never appeared.
var ErrNotLoggedIn = errors.New("not logged in")

// Page is the browser capability the login flow drives.
type Page interface {
	Navigate(ctx context.Context, url string) error
	HTML(ctx context.Context) (string, error)
	Cookies(ctx context.Context) ([]Cookie, error)
	SetCookies(ctx context.Context, cookies []Cookie) error
}

// LoginConfig describes where and how to verify a login.
type LoginConfig struct {
	// File is the session file path.
	File string
	// SiteURL is opened to verify a restored session.
	SiteURL string
	// LoginURL is opened when the user must sign in.
	LoginURL string
	// Marker is the case-insensitive text present only when signed in.
	Marker string
	// PollInterval is how often the login page is re-read.
	PollInterval time.Duration
	// Timeout bounds the wait for a manual login; zero waits until ctx ends.
	Timeout time.Duration
}

// Establish makes sess hold a logged-in cookie set. Saved cookies are tried
// first; when they no longer authenticate, the stale file is deleted and the
// login page is shown until the user signs in, after which cookies are saved.
func Establish(ctx context.Context, page Page, sess *Session, cfg LoginConfig, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("session")

	saved, err := Load(cfg.File)
	if err != nil {
		logger.Warn("ignoring unreadable session file", zap.String("path", cfg.File), zap.Error(err))
		saved = nil
	}

	if len(saved) > 0 {
		logger.Info("checking saved session", zap.Int("cookies", len(saved)))
		ok, err := restore(ctx, page, saved, cfg)
		if err != nil {
			logger.Warn("saved session check failed", zap.Error(err))
		}
		if ok {
			logger.Info("logged in using saved session")
			return Refresh(ctx, page, sess)
		}
		logger.Info("session expired, please log in again")
		if err := Delete(cfg.File); err != nil {
			logger.Warn("failed to delete stale session", zap.Error(err))
		}
	}

	if err := page.Navigate(ctx, cfg.LoginURL); err != nil {
		return fmt.Errorf("open login page: %w", err)
	}
	logger.Info("a browser window has opened; log in there and come back",
		zap.String("url", cfg.LoginURL))

	if err := waitForMarker(ctx, page, cfg, logger); err != nil {
		return err
	}
	if err := Refresh(ctx, page, sess); err != nil {
		return err
	}
	if err := Save(cfg.File, sess.Snapshot()); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	logger.Info("session saved; next run will skip the login step", zap.String("path", cfg.File))
	return nil
}

// Refresh copies the browser's current cookies into sess.
func Refresh(ctx context.Context, page Page, sess *Session) error {
	cookies, err := page.Cookies(ctx)
	if err != nil {
		return fmt.Errorf("read browser cookies: %w", err)
	}
	if err := sess.Replace(cookies); err != nil {
		return fmt.Errorf("install cookies: %w", err)
	}
	return nil
}

func restore(ctx context.Context, page Page, saved []Cookie, cfg LoginConfig) (bool, error) {
	if err := page.SetCookies(ctx, saved); err != nil {
		return false, fmt.Errorf("install saved cookies: %w", err)
	}
	if err := page.Navigate(ctx, cfg.SiteURL); err != nil {
		return false, fmt.Errorf("open site: %w", err)
	}
	markup, err := page.HTML(ctx)
	if err != nil {
		return false, fmt.Errorf("read site: %w", err)
	}
	return HasMarker(markup, cfg.Marker), nil
}

func waitForMarker(ctx context.Context, page Page, cfg LoginConfig, logger *zap.Logger) error {
	interval := cfg.PollInterval
	if interval <= 0 {
		interval = 2 * time.Second
	}
	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for attempt := 1; ; attempt++ {
		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %w", ErrNotLoggedIn, ctx.Err())
		case <-ticker.C:
		}
		markup, err := page.HTML(ctx)
		if err != nil {
			// Navigation in progress; try again on the next tick.
			logger.Debug("login page not readable yet", zap.Int("attempt", attempt), zap.Error(err))
			continue
		}
		if HasMarker(markup, cfg.Marker) {
			return nil
		}
		logger.Debug("waiting for login", zap.Int("attempt", attempt))
	}
}

// HasMarker reports whether markup contains marker, ignoring case.
func HasMarker(markup, marker string) bool {
	if marker == "" {
		return false
	}
	return strings.Contains(strings.ToLower(markup), strings.ToLower(marker))
}
