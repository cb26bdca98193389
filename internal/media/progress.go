package media

import (
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
)

// BarWidth is the number of glyphs in the rendered bar.
const BarWidth = 20

const (
	filledGlyph = "█"
	emptyGlyph  = "░"
	// barLineWidth is the minimum rendered width in runes.
	barLineWidth = 79
)

// Lines look like "[download]  42.3% of ~  8.50MiB at  1.23MiB/s ETA 00:05".
var progressPattern = regexp.MustCompile(`([\d.]+)%.*?of\s+~?\s*(\S+).*?at\s+(\S+)`)

// Progress is one parsed progress report.
type Progress struct {
	Percent float64
	Total   string
	Speed   string
}

// ParseProgress extracts a progress report from a download line.
func ParseProgress(line string) (Progress, bool) {
	if !strings.Contains(line, "[download]") || !strings.Contains(line, "%") {
		return Progress{}, false
	}
	m := progressPattern.FindStringSubmatch(line)
	if m == nil {
		return Progress{}, false
	}
	pct, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return Progress{}, false
	}
	return Progress{Percent: pct, Total: m[2], Speed: m[3]}, true
}

// RenderBar formats p as a carriage-return-prefixed status line, so repeated
// writes overwrite each other in place. Short lines are padded with spaces to
// cover the tail of a longer previous one.
func RenderBar(p Progress) string {
	pct := p.Percent
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}
	filled := int(pct / 100 * BarWidth)
	bar := strings.Repeat(filledGlyph, filled) + strings.Repeat(emptyGlyph, BarWidth-filled)
	line := fmt.Sprintf("        [audio] |%s| %5.1f%%  %s  @ %s", bar, p.Percent, p.Total, p.Speed)
	return fmt.Sprintf("\r%-*s", barLineWidth, line)
}

// Track consumes lines until the channel closes, rendering every progress
// report to w. It reports the last progress seen and whether any was.
func Track(lines <-chan string, w io.Writer) (Progress, bool) {
	var (
		last Progress
		seen bool
	)
	for line := range lines {
		p, ok := ParseProgress(strings.TrimSpace(line))
		if !ok {
			continue
		}
		last, seen = p, true
		if w != nil {
			_, _ = io.WriteString(w, RenderBar(p))
		}
	}
	if seen && w != nil {
		_, _ = io.WriteString(w, "\n")
	}
	return last, seen
}
