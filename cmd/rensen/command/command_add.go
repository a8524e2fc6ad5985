package command

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/gingapard/rensen/internal/config"
)

// newAddCommand implements `add <hostname>`: interactive form-fill for a
// brand new host, rejecting a duplicate hostname.
func newAddCommand(state *State) *cobra.Command {
	return &cobra.Command{
		Use:   "add <hostname>",
		Short: "Add a new host",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			hostname := args[0]
			if _, exists := state.Hosts.Lookup(hostname); exists {
				return fmt.Errorf("host %q already exists", hostname)
			}

			cfg := config.HostConfig{
				User:         state.prompt("user"),
				Identifier:   state.prompt("identifier (address)"),
				Port:         state.promptInt(fmt.Sprintf("port [%d]", config.DefaultPort), config.DefaultPort),
				KeyPath:      state.prompt("key path (blank for default)"),
				Source:       state.prompt("source path"),
				Destination:  state.prompt("destination root"),
				CronSchedule: state.prompt(fmt.Sprintf("cron schedule [%s]", config.DefaultCron)),
			}

			if err := state.Hosts.Add(config.Host{Hostname: hostname, Config: cfg}); err != nil {
				return err
			}
			if err := state.Hosts.Save(state.HostsPath); err != nil {
				return err
			}
			color.New(color.FgGreen).Fprintf(state.Out, "added host %q\n", hostname)
			return nil
		},
	}
}

// newDelCommand implements `del <hostname>`.
func newDelCommand(state *State) *cobra.Command {
	return &cobra.Command{
		Use:   "del <hostname>",
		Short: "Remove a host",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			hostname := args[0]
			if err := state.Hosts.Remove(hostname); err != nil {
				return err
			}
			if err := state.Hosts.Save(state.HostsPath); err != nil {
				return err
			}
			color.New(color.FgYellow).Fprintf(state.Out, "removed host %q\n", hostname)
			return nil
		},
	}
}

// newModCommand implements `mod <hostname>`: every prompt left blank
// keeps the host's current value, per the Config Store's merge rule.
func newModCommand(state *State) *cobra.Command {
	return &cobra.Command{
		Use:   "mod <hostname>",
		Short: "Modify an existing host",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			hostname := args[0]
			current, exists := state.Hosts.Lookup(hostname)
			if !exists {
				return fmt.Errorf("host %q not found", hostname)
			}
			fmt.Fprintf(state.Out, "current configuration:\n%s\n", current.Config.String())

			patch := config.HostConfig{
				User:         state.prompt("user (blank keeps current)"),
				Identifier:   state.prompt("identifier (blank keeps current)"),
				Port:         state.promptInt("port (0 keeps current)", 0),
				KeyPath:      state.prompt("key path (blank keeps current)"),
				Source:       state.prompt("source path (blank keeps current)"),
				Destination:  state.prompt("destination root (blank keeps current)"),
				CronSchedule: state.prompt("cron schedule (blank keeps current)"),
			}

			if err := state.Hosts.Modify(hostname, patch); err != nil {
				return err
			}
			if err := state.Hosts.Save(state.HostsPath); err != nil {
				return err
			}
			color.New(color.FgGreen).Fprintf(state.Out, "updated host %q\n", hostname)
			return nil
		},
	}
}
