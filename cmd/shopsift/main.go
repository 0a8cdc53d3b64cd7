package main

import "github.com/shopsift/shopsift/cmd/shopsift/cmd"

// Version information set via ldflags at build time.
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	cmd.Execute(version, commit, date)
}
