package scrape

import (
	"fmt"
	"net/http"
	"time"
)

// Category names one of the fixed document categories retrieved per entity.
type Category string

// Supported categories, in the order the coordinator runs them.
const (
	CategorySpreadsheet   Category = "spreadsheet"
	CategoryAnnualReports Category = "annual_reports"
	CategoryCreditRatings Category = "credit_ratings"
	CategoryConcalls      Category = "concalls"
)

// Categories lists every category in execution order.
func Categories() []Category {
	return []Category{
		CategorySpreadsheet,
		CategoryAnnualReports,
		CategoryCreditRatings,
		CategoryConcalls,
	}
}

// DocumentRef is a link discovered under a section heading. RowText holds the
// text of the nearest row-like container and falls back to the link text.
type DocumentRef struct {
	Text    string
	RowText string
	URL     string
}

// FileRef is one file listed under a concall event.
type FileRef struct {
	Label string
	URL   string
}

// EventRef groups the files listed under one dated concall entry.
type EventRef struct {
	DateLabel string
	Files     []FileRef
}

// Status is the outcome of resolving one reference to a local file.
type Status string

// Result statuses.
const (
	StatusRetrieved Status = "retrieved"
	StatusSkipped   Status = "skipped"
	StatusFailed    Status = "failed"
)

// Result reports what happened to a single artifact.
type Result struct {
	Status   Status
	URL      string
	Path     string
	Bytes    int64
	Digest   string
	Strategy string
	Duration time.Duration
	// Note carries a short human-readable detail, such as workbook sheet names.
	Note string
	Err  error
}

// OK reports whether a non-empty file now exists at Path.
func (r Result) OK() bool {
	return r.Status == StatusRetrieved || r.Status == StatusSkipped
}

// FetchRequest captures everything needed to fetch a URL.
type FetchRequest struct {
	URL     string
	Headers http.Header
}

// FetchResponse is the result returned by a Fetcher implementation.
type FetchResponse struct {
	URL        string
	StatusCode int
	Headers    http.Header
	Body       []byte
	Duration   time.Duration
}

// StatusError reports a response outside 2xx. ContentType and Bytes describe
// the rejected body.
type StatusError struct {
	URL         string
	StatusCode  int
	ContentType string
	Bytes       int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: status %d %s", e.URL, e.StatusCode, http.StatusText(e.StatusCode))
}

// Download describes a file the browser saved after a click. Path is where the
// browser wrote it; SuggestedFilename is the name the server proposed.
type Download struct {
	SuggestedFilename string
	Path              string
}
