// Package main provides the entry point for the loreseek CLI.
package main

import (
	"os"

	"github.com/loreseek/loreseek/cmd/loreseek/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
