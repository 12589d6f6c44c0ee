package main

import (
	"os"

	"github.com/rustyeddy/sigrun/cmd/sigrun/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
