// Copyright © 2023 J. Salvador Arias <jsalarias@gmail.com>
// All rights reserved.
// Distributed under BSD2 license that can be found in the LICENSE file.

// Package families is a metapackage for commands
// that deal with a cafego project's gene family counts.
package families

import (
	"github.com/js-arias/cafego/cmd/cafego/families/load"
	"github.com/js-arias/command"
)

var Command = &command.Command{
	Usage: "families <command> [<argument>...]",
	Short: "commands for gene family counts",
}

func init() {
	Command.Add(load.Command)
}
