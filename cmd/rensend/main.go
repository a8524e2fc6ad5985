// Command rensend is the scheduler daemon: it loads the global config and
// hosts table once at startup and then runs the Scheduler forever, one
// tick every 30 seconds. A bad global config or hosts file is a fatal
// startup error, per the design's "bootstrap error is fatal" policy.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gingapard/rensen/internal/config"
	"github.com/gingapard/rensen/internal/rensenlog"
	"github.com/gingapard/rensen/internal/scheduler"
)

const defaultGlobalConfigPath = "/etc/rensen/rensen_config.yml"

func main() {
	globalConfigPath := defaultGlobalConfigPath
	if len(os.Args) > 1 {
		globalConfigPath = os.Args[1]
	}

	global, err := config.LoadGlobal(globalConfigPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}

	hostStore, err := config.LoadHosts(global.HostsPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}

	logger, err := rensenlog.Open(global.LogPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}

	sched, err := scheduler.New(global, hostStore.Hosts(), scheduler.NewBuilderRunner(logger), logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := sched.Run(ctx); err != nil && err != context.Canceled {
		fmt.Fprintf(os.Stderr, "scheduler stopped: %v\n", err)
		os.Exit(1)
	}
}
