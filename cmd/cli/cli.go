package cli

import (
	"fmt"
	"os"
)

// Execute runs the CLI with all commands
func Execute() {
	RootCmd.SetVersionTemplate("tokenest version {{.Version}}\n")
	if err := RootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
