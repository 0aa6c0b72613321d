// Copyright © 2023 J. Salvador Arias <jsalarias@gmail.com>
// All rights reserved.
// Distributed under BSD2 license that can be found in the LICENSE file.

// Package tree is a metapackage for commands
// that deal with the phylogenetic tree of a cafego project.
package tree

import (
	"github.com/js-arias/cafego/cmd/cafego/tree/set"
	"github.com/js-arias/command"
)

var Command = &command.Command{
	Usage: "tree <command> [<argument>...]",
	Short: "commands for the phylogenetic tree",
}

func init() {
	Command.Add(set.Command)
}
