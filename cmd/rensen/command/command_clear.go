package command

import (
	"fmt"

	"github.com/spf13/cobra"
)

// newClearCommand implements `clear`: an ANSI clear-screen, nothing more.
func newClearCommand(state *State) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Clear the screen",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprint(state.Out, "\033[H\033[2J")
			return nil
		},
	}
}
