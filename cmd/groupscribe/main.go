// Package main is the entry point for the groupscribe CLI.
package main

import (
	"os"

	"github.com/groupscribe/groupscribe/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
