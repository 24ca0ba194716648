// Package main is the entry point for the provermon CLI.
//
// Usage:
//
//	provermon                       # same as "run"
//	provermon run -c provermon.yaml # poll and notify until SIGINT/SIGTERM
//	provermon check                 # one fetch, one notification
//	provermon config                # print the effective configuration
//	provermon version
package main

import (
	"context"
	"os"
)

// Set at build time via -ldflags "-X main.version=...".
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		// cobra already printed the error
		os.Exit(1)
	}
}
