// Package main is the entry point for the deskwise CLI.
package main

import (
	"os"

	"github.com/deskwise/deskwise/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
