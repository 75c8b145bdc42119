package main

import "teca-cli/internal/cli"

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "0.1.0"

func main() {
	cli.Execute(version)
}
