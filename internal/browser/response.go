package browser

import (
	"fmt"
	"net/http"
	"sync"

	"github.com/chromedp/cdproto/network"
)

// responseMeta remembers the last main-document response seen by a tab.
type responseMeta struct {
	mu      sync.RWMutex
	status  int
	headers http.Header
	url     string
}

func newResponseMeta() *responseMeta {
	return &responseMeta{headers: http.Header{}}
}

func (m *responseMeta) reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.status, m.headers, m.url = 0, http.Header{}, ""
}

func (m *responseMeta) captureEvent(ev any) {
	if resp, ok := ev.(*network.EventResponseReceived); ok {
		m.capture(resp)
	}
}

func (m *responseMeta) capture(event *network.EventResponseReceived) {
	if event.Type != network.ResourceTypeDocument || event.Response == nil {
		return
	}
	headers := http.Header{}
	for key, value := range event.Response.Headers {
		switch v := value.(type) {
		case string:
			headers.Add(key, v)
		case []any:
			for _, entry := range v {
				headers.Add(key, fmt.Sprint(entry))
			}
		default:
			headers.Add(key, fmt.Sprint(v))
		}
	}
	m.mu.Lock()
	m.status = int(event.Response.Status)
	m.headers = headers
	m.url = event.Response.URL
	m.mu.Unlock()
}

func (m *responseMeta) snapshot() (int, http.Header, string) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status, m.headers.Clone(), m.url
}

// snapshotWithFallbacks fills a missing URL from the navigation target and a
// missing status with 200.
func (m *responseMeta) snapshotWithFallbacks(requestURL, finalURL string) (int, http.Header, string) {
	status, headers, url := m.snapshot()
	switch {
	case url != "":
	case finalURL != "":
		url = finalURL
	default:
		url = requestURL
	}
	if status == 0 {
		status = http.StatusOK
	}
	return status, headers, url
}
