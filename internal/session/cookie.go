// Package session owns the authenticated state shared by the browser and the
// HTTP fetchers: the cookie file on disk, the in-memory cookie jar and the
// interactive login flow that refreshes both.
package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Cookie is one persisted cookie record. Field names match the cookie files
// written by browser automation tools so existing session files load as-is.
type Cookie struct {
	Name     string  `json:"name"`
	Value    string  `json:"value"`
	Domain   string  `json:"domain"`
	Path     string  `json:"path"`
	Expires  float64 `json:"expires"`
	HTTPOnly bool    `json:"httpOnly"`
	Secure   bool    `json:"secure"`
	SameSite string  `json:"sameSite,omitempty"`
}

// IsSession reports whether the cookie lives only for the browser session.
func (c Cookie) IsSession() bool {
	return c.Expires <= 0
}

// ExpiresAt converts Expires (Unix seconds) to a time.
func (c Cookie) ExpiresAt() time.Time {
	if c.IsSession() {
		return time.Time{}
	}
	sec := int64(c.Expires)
	nsec := int64((c.Expires - float64(sec)) * float64(time.Second))
	return time.Unix(sec, nsec)
}

// HTTPCookie converts the record for use with an http.CookieJar. A leading
// dot marks a domain cookie; otherwise the cookie is host-only.
func (c Cookie) HTTPCookie() *http.Cookie {
	hc := &http.Cookie{
		Name:     c.Name,
		Value:    c.Value,
		Path:     c.Path,
		Secure:   c.Secure,
		HttpOnly: c.HTTPOnly,
		SameSite: sameSiteMode(c.SameSite),
	}
	if strings.HasPrefix(c.Domain, ".") {
		hc.Domain = c.Domain
	}
	if !c.IsSession() {
		hc.Expires = c.ExpiresAt()
	}
	return hc
}

// Host returns the cookie's domain without a leading dot.
func (c Cookie) Host() string {
	return strings.TrimPrefix(c.Domain, ".")
}

func sameSiteMode(v string) http.SameSite {
	switch strings.ToLower(v) {
	case "strict":
		return http.SameSiteStrictMode
	case "lax":
		return http.SameSiteLaxMode
	case "none":
		return http.SameSiteNoneMode
	default:
		return http.SameSiteDefaultMode
	}
}

// Load reads the session file. A missing file yields no cookies and no error.
func Load(path string) ([]Cookie, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- operator-configured session path
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read session file: %w", err)
	}
	var cookies []Cookie
	if err := json.Unmarshal(data, &cookies); err != nil {
		return nil, fmt.Errorf("decode session file %s: %w", path, err)
	}
	return cookies, nil
}

// Save atomically rewrites the session file with cookies.
func Save(path string, cookies []Cookie) error {
	if cookies == nil {
		cookies = []Cookie{}
	}
	data, err := json.MarshalIndent(cookies, "", "  ")
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("create session dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("create temp session file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("write session: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("close session: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("replace session file: %w", err)
	}
	return nil
}

// Delete removes the session file. Deleting a missing file is not an error.
func Delete(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("delete session file: %w", err)
	}
	return nil
}
