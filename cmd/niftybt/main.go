package main

import (
	"os"

	"niftybt/internal/btctl"
	"niftybt/internal/btserve"
)

// Version is injected by build scripts via -ldflags "-X main.Version=..."
var Version = "dev"

func main() {
	args := os.Args[1:]
	if shouldServe(args) {
		os.Exit(btserve.Run(args))
	}
	os.Exit(btctl.Run(args))
}

func shouldServe(args []string) bool {
	for _, a := range args {
		if a == "-serve" || a == "--serve" {
			return true
		}
	}
	return false
}
