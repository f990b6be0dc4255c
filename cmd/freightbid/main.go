package main

import (
	"os"

	"github.com/cargomesh/freightbid/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
