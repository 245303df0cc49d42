package main

import (
	"os"

	"github.com/contrastkit/contrastkit/cmd/contrastkit/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
