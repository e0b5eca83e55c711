package main

import (
	"github.com/certsync/certsync/internal/client/cli"
)

// Version may be set at build time via -ldflags "-X main.Version=...".
var Version = "dev"

func main() {
	cli.SetVersion(Version)
	cli.Execute()
}
