// Package locator finds document listings inside a rendered page without
// relying on stable selectors. A listing is found by matching a heading's
// exact text and walking up its ancestors until a level exposes links.
//
// The traversal is written against the Tree interface; Document adapts a
// goquery snapshot of the rendered DOM to it.
package locator
