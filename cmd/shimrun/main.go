package main

import (
	"os"

	"github.com/shimrun/shimrun/cmd/shimrun/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
