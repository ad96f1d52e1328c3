package main

import (
	"context"
	"flag"
	"os"
	"path"

	"github.com/google/subcommands"
)

var configFile = flag.String("config", "orbitfolio.toml", "Path to the TOML configuration file")

func main() {
	commander := subcommands.NewCommander(flag.CommandLine, path.Base(os.Args[0]))
	commander.Register(commander.HelpCommand(), "")
	commander.Register(commander.FlagsCommand(), "")
	commander.Register(&serveCmd{}, "")
	commander.Register(&ratesCmd{}, "")
	commander.Register(&valueCmd{}, "")

	flag.Parse()
	os.Exit(int(commander.Execute(context.Background())))
}
