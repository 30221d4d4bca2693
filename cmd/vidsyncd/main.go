// Package main is the entry point for the vidsyncd application.
package main

import (
	"os"

	"github.com/vidsyncd/vidsyncd/cmd/vidsyncd/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
