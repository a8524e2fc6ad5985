// Package command implements the operator CLI: one newXCommand()
// constructor per subcommand. The dispatcher is a thin shell over the
// core packages — it owns no backup logic of its own.
package command

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/gingapard/rensen/internal/config"
	"github.com/gingapard/rensen/internal/rensenlog"
)

// State is the mutable context every subcommand operates on: the loaded
// global config, the hosts table, and where prompts read/write.
type State struct {
	Global    *config.Global
	Hosts     *config.HostStore
	HostsPath string
	Logger    *rensenlog.Logger

	In  *bufio.Reader
	Out io.Writer
}

// NewState loads global config and the hosts table from disk.
func NewState(globalConfigPath string) (*State, error) {
	global, err := config.LoadGlobal(globalConfigPath)
	if err != nil {
		return nil, err
	}
	hosts, err := config.LoadHosts(global.HostsPath)
	if err != nil {
		return nil, err
	}
	logger, err := rensenlog.Open(global.LogPath)
	if err != nil {
		return nil, err
	}
	return &State{
		Global:    global,
		Hosts:     hosts,
		HostsPath: global.HostsPath,
		Logger:    logger,
		In:        bufio.NewReader(os.Stdin),
		Out:       os.Stdout,
	}, nil
}

func (s *State) prompt(label string) string {
	fmt.Fprintf(s.Out, "%s: ", label)
	line, _ := s.In.ReadString('\n')
	return strings.TrimSpace(line)
}

func (s *State) promptInt(label string, fallback int) int {
	raw := s.prompt(label)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return n
}
