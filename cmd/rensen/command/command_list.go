package command

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"
)

// newListCommand implements `list` (every hostname) and
// `list <hostname> <snapshots|config>`.
func newListCommand(state *State) *cobra.Command {
	return &cobra.Command{
		Use:   "list [hostname] [snapshots|config]",
		Short: "List hosts, or one host's snapshots or configuration",
		Args:  cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				for _, h := range state.Hosts.Hosts() {
					fmt.Fprintln(state.Out, h.Hostname)
				}
				return nil
			}
			if len(args) != 2 {
				return fmt.Errorf("usage: list <hostname> <snapshots|config>")
			}
			hostname, what := args[0], args[1]
			host, exists := state.Hosts.Lookup(hostname)
			if !exists {
				return fmt.Errorf("host %q not found", hostname)
			}

			switch what {
			case "config":
				fmt.Fprintln(state.Out, host.Config.String())
			case "snapshots":
				return listSnapshots(state, host.Config.Identifier)
			default:
				return fmt.Errorf("unknown list target %q: expected snapshots or config", what)
			}
			return nil
		},
	}
}

type snapshotEntry struct {
	name string
	size int64
}

// listSnapshots prints every snapshot archive under the host's backups
// directory, sorted oldest-first, with on-disk size.
func listSnapshots(state *State, identifier string) error {
	hostRoot := filepath.Join(state.Global.BackupsRoot, identifier)
	entries, err := os.ReadDir(hostRoot)
	if err != nil {
		if os.IsNotExist(err) {
			fmt.Fprintln(state.Out, "no snapshots")
			return nil
		}
		return err
	}

	var snapshots []snapshotEntry
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".tar.gz") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		snapshots = append(snapshots, snapshotEntry{name: entry.Name(), size: info.Size()})
	}
	sort.Slice(snapshots, func(i, j int) bool { return snapshots[i].name < snapshots[j].name })

	for _, s := range snapshots {
		fmt.Fprintf(state.Out, "%s\t%d bytes\n", s.name, s.size)
	}
	return nil
}
