package locator

import (
	"regexp"

	"github.com/JakeFAU/disclosure-scraper/internal/scrape"
)

const (
	// MaxSectionDepth bounds the ancestor walk from a heading.
	MaxSectionDepth = 6
	// MaxEventDepth bounds the ancestor walk from a concall date element.
	MaxEventDepth = 4
)

// EventDatePattern matches a whole element text such as "Nov 2023".
var EventDatePattern = regexp.MustCompile(`^(Jan|Feb|Mar|Apr|May|Jun|Jul|Aug|Sep|Oct|Nov|Dec)\s+20\d{2}$`)

// Node is an opaque handle owned by a Tree implementation.
type Node any

// Link is an anchor discovered under a node.
type Link struct {
	// Text is the anchor's own rendered text.
	Text string
	// RowText is the text of the nearest row-like container, or Text when
	// the anchor has none.
	RowText string
	// URL is the absolute href.
	URL string
}

// Tree is the structure-query capability the locator needs from a rendered page.
type Tree interface {
	// FindLeafByText returns the first element without child elements whose
	// trimmed text equals label.
	FindLeafByText(label string) (Node, bool)
	// Ancestors returns up to maxDepth ancestors of n, nearest first.
	Ancestors(n Node, maxDepth int) []Node
	// LinksUnder returns every descendant anchor with an href, in document order.
	LinksUnder(n Node) []Link
	// MatchText returns the deepest descendants of n whose trimmed text fully
	// matches re, in document order.
	MatchText(n Node, re *regexp.Regexp) []Node
	// Text returns the trimmed rendered text of n.
	Text(n Node) string
}

// Locate returns the links belonging to the section headed by heading. It
// returns nil when the heading is absent or no ancestor within
// MaxSectionDepth holds links.
func Locate(tree Tree, heading string) []scrape.DocumentRef {
	if tree == nil {
		return nil
	}
	anchor, ok := tree.FindLeafByText(heading)
	if !ok {
		return nil
	}
	for _, level := range tree.Ancestors(anchor, MaxSectionDepth) {
		links := tree.LinksUnder(level)
		if len(links) == 0 {
			continue
		}
		refs := make([]scrape.DocumentRef, 0, len(links))
		for _, link := range links {
			refs = append(refs, scrape.DocumentRef{
				Text:    link.Text,
				RowText: link.RowText,
				URL:     link.URL,
			})
		}
		return refs
	}
	return nil
}

// LocateEvents returns the date-grouped listings under heading. The first
// ancestor level containing date elements wins; each date element then
// collects the links of its own nearest link-bearing ancestor.
func LocateEvents(tree Tree, heading string) []scrape.EventRef {
	if tree == nil {
		return nil
	}
	anchor, ok := tree.FindLeafByText(heading)
	if !ok {
		return nil
	}
	for _, level := range tree.Ancestors(anchor, MaxSectionDepth) {
		dates := tree.MatchText(level, EventDatePattern)
		if len(dates) == 0 {
			continue
		}
		events := make([]scrape.EventRef, 0, len(dates))
		for _, dateNode := range dates {
			if event, ok := eventFor(tree, dateNode); ok {
				events = append(events, event)
			}
		}
		return events
	}
	return nil
}

func eventFor(tree Tree, dateNode Node) (scrape.EventRef, bool) {
	for _, row := range tree.Ancestors(dateNode, MaxEventDepth) {
		links := tree.LinksUnder(row)
		if len(links) == 0 {
			continue
		}
		files := make([]scrape.FileRef, 0, len(links))
		for _, link := range links {
			label := link.Text
			if label == "" {
				label = "file"
			}
			files = append(files, scrape.FileRef{Label: label, URL: link.URL})
		}
		return scrape.EventRef{DateLabel: tree.Text(dateNode), Files: files}, true
	}
	return scrape.EventRef{}, false
}
