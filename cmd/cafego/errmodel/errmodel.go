// Copyright © 2023 J. Salvador Arias <jsalarias@gmail.com>
// All rights reserved.
// Distributed under BSD2 license that can be found in the LICENSE file.

// Package errmodel is a metapackage for commands
// that deal with a cafego project's observation error models.
package errmodel

import (
	"github.com/js-arias/cafego/cmd/cafego/errmodel/estimate"
	"github.com/js-arias/cafego/cmd/cafego/errmodel/set"
	"github.com/js-arias/command"
)

var Command = &command.Command{
	Usage: "errmodel <command> [<argument>...]",
	Short: "commands for observation error models",
}

func init() {
	Command.Add(set.Command)
	Command.Add(estimate.Command)
}
