package main

import (
	"os"

	"github.com/depscope/depscope/internal/cli"
	"github.com/depscope/depscope/pkg/buildinfo"
)

func main() {
	cli.SetVersion(buildinfo.Version, buildinfo.Commit, buildinfo.Date)
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
