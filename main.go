package main

import (
	"os"

	"github.com/arcadeforge/arcadeforge/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
