package session

import (
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleCookies() []Cookie {
	return []Cookie{
		{Name: "sessionid", Value: "abc", Domain: ".screener.in", Path: "/", Expires: 4102444800, HTTPOnly: true, Secure: true, SameSite: "Lax"},
		{Name: "csrftoken", Value: "tok", Domain: "www.screener.in", Path: "/", Expires: -1, Secure: true},
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "screener_session.json")
	require.NoError(t, Save(path, sampleCookies()))

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, sampleCookies(), got)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"httpOnly": true`)
	assert.Contains(t, string(raw), `"sameSite": "Lax"`)
}

func TestLoadMissingAndCorrupt(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	got, err := Load(filepath.Join(dir, "missing.json"))
	require.NoError(t, err)
	assert.Nil(t, got)

	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte("{not json"), 0o600))
	_, err = Load(bad)
	require.Error(t, err)
}

func TestDelete(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "s.json")
	require.NoError(t, Save(path, nil))
	require.NoError(t, Delete(path))
	assert.NoFileExists(t, path)
	require.NoError(t, Delete(path))
}

func TestCookieConversion(t *testing.T) {
	t.Parallel()

	domain := sampleCookies()[0].HTTPCookie()
	assert.Equal(t, ".screener.in", domain.Domain)
	assert.True(t, domain.HttpOnly)
	assert.Equal(t, time.Unix(4102444800, 0), domain.Expires)

	host := sampleCookies()[1]
	assert.True(t, host.IsSession())
	assert.Empty(t, host.HTTPCookie().Domain)
	assert.True(t, host.HTTPCookie().Expires.IsZero())
}

func TestSessionReplaceServesJar(t *testing.T) {
	t.Parallel()

	sess, err := New()
	require.NoError(t, err)
	require.NoError(t, sess.Replace(sampleCookies()))
	assert.Equal(t, 2, sess.Len())

	www := &url.URL{Scheme: "https", Host: "www.screener.in", Path: "/company/TCS/"}
	names := cookieNames(sess.Cookies(www))
	assert.ElementsMatch(t, []string{"sessionid", "csrftoken"}, names)

	api := &url.URL{Scheme: "https", Host: "api.screener.in", Path: "/"}
	assert.Equal(t, []string{"sessionid"}, cookieNames(sess.Cookies(api)))

	other := &url.URL{Scheme: "https", Host: "www.bseindia.com", Path: "/"}
	assert.Empty(t, sess.Cookies(other))

	require.NoError(t, sess.Replace(nil))
	assert.Empty(t, sess.Cookies(www))
	assert.Empty(t, sess.Snapshot())
}

func TestHasMarker(t *testing.T) {
	t.Parallel()

	assert.True(t, HasMarker(`<a href="/logout/">Logout</a>`, "logout"))
	assert.False(t, HasMarker(`<a href="/login/">Login</a>`, "logout"))
	assert.False(t, HasMarker("anything", ""))
}

func cookieNames(cookies []*http.Cookie) []string {
	names := make([]string, 0, len(cookies))
	for _, c := range cookies {
		names = append(names, c.Name)
	}
	return names
}
