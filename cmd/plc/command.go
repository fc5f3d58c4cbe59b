package main

import "flag"

// command mirrors cmd_local/go's own subcommand shape (a base.Command):
// a Flag set scoped to just that subcommand, and a Run func invoked
// once arguments are parsed. Kept minimal here since the driver has
// exactly two subcommands, not a command tree.
type command struct {
	Name  string
	Short string
	Flag  *flag.FlagSet
	Run   func(args []string) error
}

func newCommand(name, short string) *command {
	return &command{Name: name, Short: short, Flag: flag.NewFlagSet(name, flag.ExitOnError)}
}
