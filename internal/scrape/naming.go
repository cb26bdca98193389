package scrape

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/JakeFAU/disclosure-scraper/internal/timewindow"
)

// MaxNameLength bounds the sanitized label portion of artifact names.
const MaxNameLength = 60

var unsafeNameChars = regexp.MustCompile(`[^\w\-]`)

// SafeName restricts s to word characters, hyphens and underscores, truncates
// it to MaxNameLength and trims underscores from both ends.
func SafeName(s string) string {
	name := unsafeNameChars.ReplaceAllString(strings.TrimSpace(s), "_")
	if len(name) > MaxNameLength {
		name = name[:MaxNameLength]
	}
	return strings.Trim(name, "_")
}

// FirstLine returns the first non-empty line of s.
func FirstLine(s string) string {
	for _, line := range strings.Split(s, "\n") {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			return trimmed
		}
	}
	return ""
}

// AnnualReportName is the file name for an annual report of fiscal year fy.
func AnnualReportName(fy int, label string) string {
	return fmt.Sprintf("AnnualReport_FY%d_%s.pdf", fy, SafeName(FirstLine(label)))
}

// CreditRatingName is the file name for a credit rating issued in year.
func CreditRatingName(year int, rowText string) string {
	flat := strings.ReplaceAll(rowText, "\n", " ")
	return fmt.Sprintf("CreditRating_%d_%s.pdf", year, SafeName(flat))
}

// ConcallFolderName is the per-event directory name for a concall.
func ConcallFolderName(ym timewindow.YearMonth, dateLabel string) string {
	return fmt.Sprintf("%d_%02d_%s", ym.Year, int(ym.Month), SafeName(dateLabel))
}

// SpreadsheetName is the fallback name for an exported workbook.
func SpreadsheetName(entity string) string {
	return fmt.Sprintf("%s_financials.xlsx", entity)
}

// StemPath strips the extension from path.
func StemPath(path string) string {
	return strings.TrimSuffix(path, filepath.Ext(path))
}

// FileKind classifies a concall file reference.
type FileKind int

// Concall file kinds.
const (
	KindDocument FileKind = iota
	KindSlideDeck
	KindRecording
)

// Ext returns the file extension (with dot) used for the kind.
func (k FileKind) Ext() string {
	switch k {
	case KindRecording:
		return ".mp3"
	case KindSlideDeck:
		return ".pptx"
	default:
		return ".pdf"
	}
}

func (k FileKind) String() string {
	switch k {
	case KindRecording:
		return "recording"
	case KindSlideDeck:
		return "slides"
	default:
		return "document"
	}
}

// ClassifyFile decides the kind of a concall file from its sanitized label and URL.
func ClassifyFile(label, rawURL string) FileKind {
	lowerLabel := strings.ToLower(label)
	lowerURL := strings.ToLower(rawURL)
	switch {
	case lowerLabel == "rec" || IsVideoURL(rawURL) || strings.HasSuffix(lowerURL, ".mp3"):
		return KindRecording
	case lowerLabel == "ppt" || strings.Contains(lowerURL, ".ppt"):
		return KindSlideDeck
	default:
		return KindDocument
	}
}

// FileLabel sanitizes a concall file label, defaulting to "file".
func FileLabel(label string) string {
	if name := SafeName(label); name != "" {
		return name
	}
	return "file"
}
