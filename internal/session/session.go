package session

import (
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"sync"

	"golang.org/x/net/publicsuffix"
)

// Session is the authenticated cookie state shared by every fetch of a run.
// It satisfies http.CookieJar so fetchers can hold it directly; Replace swaps
// the whole cookie set after a login or a browser refresh.
type Session struct {
	mu      sync.RWMutex
	jar     *cookiejar.Jar
	cookies []Cookie
}

var _ http.CookieJar = (*Session)(nil)

// New returns an empty session.
func New() (*Session, error) {
	jar, err := newJar()
	if err != nil {
		return nil, err
	}
	return &Session{jar: jar}, nil
}

// Replace discards the current cookies and installs cookies.
func (s *Session) Replace(cookies []Cookie) error {
	jar, err := newJar()
	if err != nil {
		return err
	}
	for _, c := range cookies {
		if c.Host() == "" || c.Name == "" {
			continue
		}
		scheme := "http"
		if c.Secure {
			scheme = "https"
		}
		path := c.Path
		if path == "" {
			path = "/"
		}
		jar.SetCookies(&url.URL{Scheme: scheme, Host: c.Host(), Path: path}, []*http.Cookie{c.HTTPCookie()})
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.jar = jar
	s.cookies = append([]Cookie(nil), cookies...)
	return nil
}

// Snapshot returns the cookie records last installed with Replace.
func (s *Session) Snapshot() []Cookie {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Cookie(nil), s.cookies...)
}

// Len reports how many cookie records the session holds.
func (s *Session) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.cookies)
}

// SetCookies implements http.CookieJar.
func (s *Session) SetCookies(u *url.URL, cookies []*http.Cookie) {
	s.mu.RLock()
	jar := s.jar
	s.mu.RUnlock()
	jar.SetCookies(u, cookies)
}

// Cookies implements http.CookieJar.
func (s *Session) Cookies(u *url.URL) []*http.Cookie {
	s.mu.RLock()
	jar := s.jar
	s.mu.RUnlock()
	return jar.Cookies(u)
}

func newJar() (*cookiejar.Jar, error) {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("create cookie jar: %w", err)
	}
	return jar, nil
}
