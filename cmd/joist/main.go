package main

import (
	"os"

	"github.com/joistio/joist/cmd/joist/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
