package main

import (
	"os"

	"github.com/yesterday-dev/yesterday/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
