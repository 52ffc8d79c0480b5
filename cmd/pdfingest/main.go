package main

import (
	"os"

	"github.com/dgallion1/pdfingest/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
