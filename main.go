package main

import (
	"github.com/urlmg/urlkeeper/cmd"

	// Subcommands register themselves with the root command.
	_ "github.com/urlmg/urlkeeper/cmd/cli"
	_ "github.com/urlmg/urlkeeper/cmd/server"
)

func main() {
	cmd.Execute()
}
