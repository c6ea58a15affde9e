// Package main is the entry point for the ringlist CLI.
package main

import (
	"os"

	"github.com/runger/ringlist/internal/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
