// The main package for the webtopdf executable.
package main

import (
	"github.com/JakeFAU/webtopdf/cmd"
)

// main defers all execution to the Cobra CLI.
func main() {
	cmd.Execute()
}
