// ./main.go
package main

import (
	"github.com/fennelsoft/slipstream/cmd"
)

// main is the entry point for the slipstream CLI.
func main() {
	// Execute the root command defined in the cmd package.
	// This handles all command-line parsing, configuration, and execution.
	cmd.Execute()
}
