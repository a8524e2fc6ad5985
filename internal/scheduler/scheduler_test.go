package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hashicorp/cronexpr"
	"github.com/stretchr/testify/require"

	"github.com/gingapard/rensen/internal/config"
)

func everyMinuteHost(name string) config.Host {
	return config.Host{
		Hostname: name,
		Config: config.HostConfig{
			Identifier:   "10.0.0." + name,
			Source:       "/srv/data",
			CronSchedule: "* * * * *",
		},
	}
}

func TestNewSkipsHostWithInvalidCron(t *testing.T) {
	hosts := []config.Host{{
		Hostname: "edge",
		Config:   config.HostConfig{Identifier: "10.0.0.5", Source: "/srv/data", CronSchedule: "not a cron expression"},
	}}
	global := &config.Global{BackupsRoot: t.TempDir()}

	run := func(ctx context.Context, host config.Host, backupsRoot string) error { return nil }

	s, err := New(global, hosts, run, nil)
	require.NoError(t, err)
	require.Len(t, s.schedules, 0)
}

func TestShouldRunFiresOnceThenWaitsForTheNextOccurrence(t *testing.T) {
	expr, err := cronexpr.Parse("* * * * *")
	require.NoError(t, err)

	base := time.Date(2024, 6, 1, 12, 29, 30, 0, time.UTC)
	hs := &hostSchedule{expr: expr, lastChecked: base}
	s := &Scheduler{}

	atMinute := time.Date(2024, 6, 1, 12, 30, 0, 0, time.UTC)
	require.True(t, s.shouldRun(hs, atMinute))
	hs.lastChecked = atMinute

	// Checked again a few seconds later, within the same minute: no new
	// occurrence has happened since lastChecked advanced past it.
	require.False(t, s.shouldRun(hs, atMinute.Add(20*time.Second)))
}

func TestTickRunsDistinctHostsConcurrently(t *testing.T) {
	hosts := []config.Host{everyMinuteHost("a"), everyMinuteHost("b")}
	global := &config.Global{BackupsRoot: t.TempDir()}

	var mu sync.Mutex
	var concurrent, maxConcurrent int32

	run := func(ctx context.Context, host config.Host, backupsRoot string) error {
		mu.Lock()
		concurrent++
		if concurrent > maxConcurrent {
			maxConcurrent = concurrent
		}
		mu.Unlock()

		time.Sleep(50 * time.Millisecond)

		mu.Lock()
		concurrent--
		mu.Unlock()
		return nil
	}

	s, err := New(global, hosts, run, nil)
	require.NoError(t, err)
	for i := range s.schedules {
		s.schedules[i].lastChecked = time.Now().Add(-time.Minute)
	}

	s.tick(context.Background(), time.Now())

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, int32(2), maxConcurrent, "two different hosts should run concurrently")
}

func TestTickSkipsSameHostWhileBusy(t *testing.T) {
	hosts := []config.Host{everyMinuteHost("a"), everyMinuteHost("a")}
	global := &config.Global{BackupsRoot: t.TempDir()}

	var runCount atomic.Int32
	release := make(chan struct{})

	run := func(ctx context.Context, host config.Host, backupsRoot string) error {
		runCount.Add(1)
		<-release
		return nil
	}

	s, err := New(global, hosts, run, nil)
	require.NoError(t, err)
	for i := range s.schedules {
		s.schedules[i].lastChecked = time.Now().Add(-time.Minute)
	}

	done := make(chan struct{})
	go func() {
		s.tick(context.Background(), time.Now())
		close(done)
	}()

	time.Sleep(50 * time.Millisecond)
	require.Equal(t, int32(1), runCount.Load(), "second entry for the same host should be skipped while busy")

	close(release)
	<-done
}
