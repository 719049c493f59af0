package main

import (
	"os"
)

// Version is set at build time via -ldflags
var Version = "dev"

func main() {
	app := NewApp(Version)
	if err := app.Execute(); err != nil {
		os.Exit(1)
	}
}
