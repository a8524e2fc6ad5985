package command

import (
	"github.com/spf13/cobra"
)

const (
	cliName        = "rensen"
	cliDescription = "Multi-host SFTP snapshot backup engine — operator shell"
)

// NewRootCommand assembles the full command tree against state. A fresh
// root is built for every line of the REPL so flag state never leaks
// between invocations.
func NewRootCommand(state *State) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           cliName,
		Short:         cliDescription,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(
		newAddCommand(state),
		newDelCommand(state),
		newModCommand(state),
		newRunCommand(state),
		newListCommand(state),
		newCompileCommand(state),
		newClearCommand(state),
		newExitCommand(state),
	)

	return rootCmd
}
