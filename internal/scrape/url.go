package scrape

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

var videoURLMarkers = []string{
	"youtube.com/watch",
	"youtu.be/",
	"youtube.com/live",
}

var entityPattern = regexp.MustCompile(`^[A-Z0-9][A-Z0-9&_-]*$`)

// CleanURL drops any fragment from raw.
func CleanURL(raw string) string {
	if idx := strings.IndexByte(raw, '#'); idx >= 0 {
		return raw[:idx]
	}
	return raw
}

// IsHTTPURL reports whether raw is an absolute http(s) URL.
func IsHTTPURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	scheme := strings.ToLower(u.Scheme)
	return (scheme == "http" || scheme == "https") && u.Host != ""
}

// IsVideoURL reports whether raw points at a streaming-video page.
func IsVideoURL(raw string) bool {
	lower := strings.ToLower(raw)
	for _, marker := range videoURLMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

// NormalizeEntity upper-cases and validates an entity identifier.
func NormalizeEntity(raw string) (string, error) {
	entity := strings.ToUpper(strings.TrimSpace(raw))
	if !entityPattern.MatchString(entity) {
		return "", fmt.Errorf("invalid entity identifier %q", raw)
	}
	return entity, nil
}
