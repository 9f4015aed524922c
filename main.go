// The main package for the dircrawler executable.
package main

import (
	"github.com/JakeFAU/directory-crawler/cmd"
)

// main defers all execution to the Cobra CLI.
func main() {
	cmd.Execute()
}
