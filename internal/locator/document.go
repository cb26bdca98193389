package locator

import (
	"fmt"
	"io"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

const rowSelector = "li,div,tr"

var (
	blockElements = map[string]struct{}{
		"address": {}, "article": {}, "aside": {}, "blockquote": {}, "dd": {},
		"div": {}, "dl": {}, "dt": {}, "fieldset": {}, "figure": {}, "footer": {},
		"form": {}, "h1": {}, "h2": {}, "h3": {}, "h4": {}, "h5": {}, "h6": {},
		"header": {}, "hr": {}, "li": {}, "main": {}, "nav": {}, "ol": {}, "p": {},
		"pre": {}, "section": {}, "table": {}, "tbody": {}, "thead": {}, "tfoot": {},
		"tr": {}, "ul": {},
	}
	hiddenElements = map[string]struct{}{
		"head": {}, "noscript": {}, "script": {}, "style": {}, "template": {},
	}
)

// Document is a Tree over a static snapshot of a rendered page. Nodes are
// *html.Node values.
type Document struct {
	doc  *goquery.Document
	base *url.URL
}

var _ Tree = (*Document)(nil)

// NewDocument parses a rendered HTML snapshot. Relative hrefs are resolved
// against baseURL, or against a <base href> element when the page has one.
func NewDocument(r io.Reader, baseURL string) (*Document, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if href, ok := doc.Find("base[href]").First().Attr("href"); ok {
		if ref, err := url.Parse(strings.TrimSpace(href)); err == nil {
			base = base.ResolveReference(ref)
		}
	}
	return &Document{doc: doc, base: base}, nil
}

// NewDocumentFromString is NewDocument over an in-memory string.
func NewDocumentFromString(markup, baseURL string) (*Document, error) {
	return NewDocument(strings.NewReader(markup), baseURL)
}

// FindLeafByText implements Tree.
func (d *Document) FindLeafByText(label string) (Node, bool) {
	want := strings.TrimSpace(label)
	var found *html.Node
	d.doc.Find("body *").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		if sel.Children().Length() > 0 {
			return true
		}
		if innerText(sel.Get(0)) == want {
			found = sel.Get(0)
			return false
		}
		return true
	})
	if found == nil {
		return nil, false
	}
	return found, true
}

// Ancestors implements Tree.
func (d *Document) Ancestors(n Node, maxDepth int) []Node {
	node, ok := n.(*html.Node)
	if !ok || node == nil {
		return nil
	}
	out := make([]Node, 0, maxDepth)
	for p := node.Parent; p != nil && p.Type == html.ElementNode && len(out) < maxDepth; p = p.Parent {
		out = append(out, p)
	}
	return out
}

// LinksUnder implements Tree.
func (d *Document) LinksUnder(n Node) []Link {
	node, ok := n.(*html.Node)
	if !ok || node == nil {
		return nil
	}
	var links []Link
	d.doc.FindNodes(node).Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		text := innerText(a.Get(0))
		row := text
		if container := a.Closest(rowSelector); container.Length() > 0 {
			if rowText := innerText(container.Get(0)); rowText != "" {
				row = rowText
			}
		}
		links = append(links, Link{Text: text, RowText: row, URL: d.resolve(href)})
	})
	return links
}

// MatchText implements Tree.
func (d *Document) MatchText(n Node, re *regexp.Regexp) []Node {
	node, ok := n.(*html.Node)
	if !ok || node == nil || re == nil {
		return nil
	}
	var matches []*html.Node
	matched := make(map[*html.Node]bool)
	d.doc.FindNodes(node).Find("*").Each(func(_ int, sel *goquery.Selection) {
		el := sel.Get(0)
		if re.MatchString(innerText(el)) {
			matches = append(matches, el)
			matched[el] = true
		}
	})
	// Drop containers whose text matched only because a descendant did.
	shadowed := make(map[*html.Node]bool)
	for _, el := range matches {
		for p := el.Parent; p != nil && p != node; p = p.Parent {
			if matched[p] {
				shadowed[p] = true
			}
		}
	}
	out := make([]Node, 0, len(matches))
	for _, el := range matches {
		if !shadowed[el] {
			out = append(out, el)
		}
	}
	return out
}

// Text implements Tree.
func (d *Document) Text(n Node) string {
	node, ok := n.(*html.Node)
	if !ok || node == nil {
		return ""
	}
	return innerText(node)
}

func (d *Document) resolve(href string) string {
	href = strings.TrimSpace(href)
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	if d.base == nil {
		return ref.String()
	}
	return d.base.ResolveReference(ref).String()
}

// innerText approximates the browser's rendered text: source whitespace
// collapses, block elements and <br> break lines, and blank lines vanish.
func innerText(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			b.WriteString(strings.Map(flattenSpace, n.Data))
			return
		case html.ElementNode:
			if _, hidden := hiddenElements[n.Data]; hidden {
				return
			}
			if n.Data == "br" {
				b.WriteByte('\n')
				return
			}
		}
		_, block := blockElements[n.Data]
		if n.Type == html.ElementNode && block {
			b.WriteByte('\n')
		}
		if n.Type == html.ElementNode && (n.Data == "td" || n.Data == "th") {
			b.WriteByte(' ')
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
		if n.Type == html.ElementNode && block {
			b.WriteByte('\n')
		}
	}
	walk(n)

	lines := strings.Split(b.String(), "\n")
	kept := lines[:0]
	for _, line := range lines {
		if line = strings.Join(strings.Fields(line), " "); line != "" {
			kept = append(kept, line)
		}
	}
	return strings.Join(kept, "\n")
}

func flattenSpace(r rune) rune {
	switch r {
	case '\n', '\r', '\t', '\f':
		return ' '
	}
	return r
}
