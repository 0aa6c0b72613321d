// Copyright © 2023 J. Salvador Arias <jsalarias@gmail.com>
// All rights reserved.
// Distributed under BSD2 license that can be found in the LICENSE file.

// Package shell implements an interactive command shell: a thin loop
// reading one cafego command per line and dispatching it, rather than
// a reimplementation of the inference engine.
package shell

import (
	"bufio"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/js-arias/command"
)

var Command = &command.Command{
	Usage: "shell",
	Short: "run an interactive cafego command shell",
	Long: `
Command shell starts an interactive loop: each line of input is split
into fields and dispatched as a cafego command, exactly as if it had
been given as arguments on the command line (e.g. "tree set proj.tsv
tree.nwk"). Type "exit" or "quit", or send end-of-file, to leave the
shell.

Because cafego's own command.Command tree is assembled once in main,
the shell re-invokes the cafego binary itself for each line, rather
than reaching into a second, parallel copy of the dispatch tree.
	`,
	Run: run,
}

func run(c *command.Command, args []string) error {
	bin, err := os.Executable()
	if err != nil {
		bin = os.Args[0]
	}

	sc := bufio.NewScanner(c.Stdin())
	out := c.Stdout()
	for {
		fmt.Fprint(out, "cafego> ")
		if !sc.Scan() {
			break
		}
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		if line == "exit" || line == "quit" {
			break
		}
		fields := strings.Fields(line)
		cmd := exec.Command(bin, fields...)
		cmd.Stdout = out
		cmd.Stderr = out
		cmd.Stdin = c.Stdin()
		if err := cmd.Run(); err != nil {
			fmt.Fprintf(out, "error: %v\n", err)
		}
	}
	if err := sc.Err(); err != nil {
		return err
	}
	return nil
}
