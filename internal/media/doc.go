// Package media extracts audio from streaming-video pages with an external
// command-line utility. It locates or installs the utility and the
// JavaScript runtime it needs, streams the utility's output as lines and
// folds its progress reports into a single self-overwriting status bar.
package media
