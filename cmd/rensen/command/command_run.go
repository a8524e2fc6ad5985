package command

import (
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/gingapard/rensen/internal/backup"
	"github.com/gingapard/rensen/internal/snapshot"
)

// newRunCommand implements `run <hostname> <full|inc>`, accepting the
// aliases full|f and incremental|inc|i.
func newRunCommand(state *State) *cobra.Command {
	return &cobra.Command{
		Use:   "run <hostname> <full|inc>",
		Short: "Run a backup for one host now",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			hostname, modeArg := args[0], args[1]
			host, exists := state.Hosts.Lookup(hostname)
			if !exists {
				return fmt.Errorf("host %q not found", hostname)
			}

			mode, err := parseMode(modeArg)
			if err != nil {
				return err
			}

			layout := backup.ComputeLayout(state.Global.BackupsRoot, host, backup.Timestamp(time.Now()))
			rec, err := snapshot.Load(layout.CanonicalRecord)
			if err != nil {
				return err
			}

			builder := backup.NewBuilder(host, state.Global.BackupsRoot, mode, rec, state.Logger)
			builder.Debug = true
			if _, err := builder.Run(cmd.Context()); err != nil {
				return err
			}
			color.New(color.FgGreen).Fprintf(state.Out, "backup of %q complete\n", hostname)
			return nil
		},
	}
}

func parseMode(arg string) (backup.Mode, error) {
	switch arg {
	case "full", "f":
		return backup.Full, nil
	case "incremental", "inc", "i":
		return backup.Incremental, nil
	default:
		return 0, fmt.Errorf("unknown run mode %q: expected full|f or incremental|inc|i", arg)
	}
}
