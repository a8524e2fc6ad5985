package command

import (
	"errors"

	"github.com/spf13/cobra"
)

// ErrExit is returned by the exit/quit/q command so the REPL loop in
// main knows to stop reading input rather than treating it as a failure.
var ErrExit = errors.New("exit requested")

// newExitCommand implements exit, with the quit and q aliases.
func newExitCommand(state *State) *cobra.Command {
	return &cobra.Command{
		Use:     "exit",
		Aliases: []string{"quit", "q"},
		Short:   "Leave the shell",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ErrExit
		},
	}
}
