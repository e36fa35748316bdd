// ============================================================================
// fleetd - Main Entry Point
// ============================================================================
//
// File: cmd/fleetd/main.go
// Purpose: Application entry point and CLI initialization.
//
// Version Injection:
//   Variables injected at build time via -ldflags:
//   go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
//
// Usage:
//   ./fleetd --help                         # Show help
//   ./fleetd run --mode master -c master.yaml
//   ./fleetd run --mode worker -c worker.yaml
//   ./fleetd status -c worker.yaml
//
// ============================================================================

package main

import (
	"fmt"
	"os"

	"github.com/hiveworks/fleetd/internal/cli"
)

var (
	version = "1.0.0"
	commit  = "dev"
	date    = "unknown"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(os.Stderr, "Fatal error: %v\n", r)
			os.Exit(1)
		}
	}()

	rootCmd := cli.BuildCLI()
	rootCmd.Version = fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
