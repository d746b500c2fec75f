package main

import (
	"os"

	"github.com/thothlabs/thoth/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
