package main

import (
	"os"

	"github.com/stecom/seopulse/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
