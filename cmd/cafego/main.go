// Copyright © 2023 J. Salvador Arias <jsalarias@gmail.com>
// All rights reserved.
// Distributed under BSD2 license that can be found in the LICENSE file.

// Cafego is a tool for gene family birth-death inference.
package main

import (
	"log"

	"github.com/js-arias/cafego/cmd/cafego/errmodel"
	"github.com/js-arias/cafego/cmd/cafego/estimate"
	"github.com/js-arias/cafego/cmd/cafego/families"
	"github.com/js-arias/cafego/cmd/cafego/lhtest"
	"github.com/js-arias/cafego/cmd/cafego/report"
	"github.com/js-arias/cafego/cmd/cafego/shell"
	"github.com/js-arias/cafego/cmd/cafego/simulate"
	"github.com/js-arias/cafego/cmd/cafego/tree"
	"github.com/js-arias/command"
)

var app = &command.Command{
	Usage: "cafego <command> [<argument>...]",
	Short: "a tool for gene family birth-death inference",
}

func init() {
	app.Add(tree.Command)
	app.Add(families.Command)
	app.Add(errmodel.Command)
	app.Add(estimate.Command)
	app.Add(report.Command)
	app.Add(simulate.Command)
	app.Add(lhtest.Command)
	app.Add(shell.Command)
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)
	app.Main()
}
