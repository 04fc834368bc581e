// ./main.go
package main

import (
	"github.com/kimjiwoons/blindscroll/cmd"
)

// main is the entry point for the blindscroll CLI.
func main() {
	// Execute the root command defined in the cmd package.
	// This handles all command-line parsing, configuration, and execution.
	cmd.Execute()
}
