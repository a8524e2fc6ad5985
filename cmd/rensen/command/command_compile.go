package command

import (
	"fmt"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/gingapard/rensen/internal/compiler"
)

// newCompileCommand implements `compile <hostname>`: prompts for a
// snapshot name (or "latest") and reconstructs it under the
// compiled-snapshots root.
func newCompileCommand(state *State) *cobra.Command {
	return &cobra.Command{
		Use:   "compile <hostname>",
		Short: "Reconstruct one of a host's historical snapshots",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			hostname := args[0]
			host, exists := state.Hosts.Lookup(hostname)
			if !exists {
				return fmt.Errorf("host %q not found", hostname)
			}

			snapshotName := state.prompt("snapshot name (or \"latest\")")
			if snapshotName == "" {
				return fmt.Errorf("snapshot name is required")
			}

			recordFile := snapshotName + ".json"
			if snapshotName == "latest" {
				recordFile = "record.json"
			}
			recordPath := filepath.Join(state.Global.BackupsRoot, host.Config.Identifier, ".records", recordFile)

			c, err := compiler.From(recordPath)
			if err != nil {
				return err
			}

			destination := filepath.Join(state.Global.SnapshotsRoot, host.Config.Identifier, snapshotName)
			problems, err := c.Compile(destination)
			if err != nil {
				return err
			}
			for _, p := range problems {
				color.New(color.FgYellow).Fprintf(state.Out, "warning: %v\n", p)
			}
			for _, p := range c.Cleanup() {
				color.New(color.FgYellow).Fprintf(state.Out, "warning: %v\n", p)
			}

			color.New(color.FgGreen).Fprintf(state.Out, "compiled %q to %s\n", snapshotName, destination)
			return nil
		},
	}
}
