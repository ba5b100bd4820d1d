package main

import (
	"os"

	"github.com/iliyamo/restaurant-floor/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
