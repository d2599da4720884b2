// Package main is the entry point for the marketsync CLI.
package main

import (
	"os"

	"github.com/thoreinstein/marketsync/cmd/marketsync/commands"
)

func main() {
	os.Exit(commands.Run())
}
