// Command rensen is the operator shell: a REPL over the add/del/mod/run/
// list/compile/clear/exit command tree in cmd/rensen/command. It is one
// of the two process entry points (the other is rensend, the scheduler
// daemon) the design names as external collaborators of the core.
package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"

	"github.com/gingapard/rensen/cmd/rensen/command"
)

const defaultGlobalConfigPath = "/etc/rensen/rensen_config.yml"

func main() {
	globalConfigPath := defaultGlobalConfigPath
	if len(os.Args) > 1 {
		globalConfigPath = os.Args[1]
	}

	state, err := command.NewState(globalConfigPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}

	fmt.Fprintln(state.Out, "rensen operator shell. Type \"help\" for commands, \"exit\" to quit.")
	scanner := bufio.NewScanner(os.Stdin)
	for {
		color.New(color.FgCyan).Fprint(state.Out, "rensen> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		root := command.NewRootCommand(state)
		root.SetArgs(strings.Fields(line))
		if err := root.Execute(); err != nil {
			if errors.Is(err, command.ErrExit) {
				break
			}
			color.New(color.FgRed).Fprintf(state.Out, "error: %v\n", err)
		}
	}
}
