// The main package for the docscraper executable.
package main

import (
	"github.com/JakeFAU/disclosure-scraper/cmd"
)

// main defers all execution to the Cobra CLI library.
func main() {
	cmd.Execute()
}
