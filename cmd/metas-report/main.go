package main

import (
	"os"

	"metas/internal/cli"
	"metas/internal/report"
)

var version = "dev"

func main() {
	cli.LoadEnvFile()
	if err := report.NewCommand(version).Execute(); err != nil {
		os.Exit(1)
	}
}
