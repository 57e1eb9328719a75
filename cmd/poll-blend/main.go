// Command poll-blend fits time-varying variance models for fundamentals and
// polling forecasts and serves the fused posterior.
package main

import (
	"fmt"
	"os"
)

// Build information - set via ldflags
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
