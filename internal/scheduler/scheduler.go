// Package scheduler is the daemon's Scheduler: it ticks every 30 seconds,
// decides which hosts are due per their cron expression, and fans out a
// backup run per due host while refusing to double-spawn a host whose
// previous run hasn't finished. Spawns directly under a per-host busy
// flag rather than queueing through a worker pool, and fans work out
// the way a ticker-driven background loop does.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/hashicorp/cronexpr"
	"golang.org/x/sync/errgroup"

	"github.com/gingapard/rensen/internal/backup"
	"github.com/gingapard/rensen/internal/config"
	"github.com/gingapard/rensen/internal/rensenerr"
	"github.com/gingapard/rensen/internal/rensenlog"
	"github.com/gingapard/rensen/internal/snapshot"
)

const tickInterval = 30 * time.Second

// Runner performs one backup for one host. NewBuilderRunner adapts
// backup.Builder into one; tests supply a fake.
type Runner func(ctx context.Context, host config.Host, backupsRoot string) error

// hostSchedule pairs a host with its parsed cron expression and the last
// instant it was checked, so should-run is decided by whether an
// occurrence falls in (lastChecked, now] rather than by re-deriving the
// "next" occurrence from now itself — which would miss firing on every
// tick whose wall-clock instant has already passed the exact boundary
// second.
type hostSchedule struct {
	host        config.Host
	expr        *cronexpr.Expression
	lastChecked time.Time
}

// Scheduler owns one parsed cron expression per host and the per-host
// busy flags that keep a slow run from overlapping its own next tick.
type Scheduler struct {
	global    *config.Global
	run       Runner
	logger    *rensenlog.Logger
	schedules []hostSchedule

	mu   sync.Mutex
	busy map[string]bool
}

// New parses every host's cron schedule and returns a Scheduler ready to
// run. A missing expression takes config.DefaultCron with a warning; a
// host with an invalid expression is logged and left out of the schedule.
// Each schedule's window starts at construction time — an occurrence
// before New() was called never fires.
func New(global *config.Global, hosts []config.Host, run Runner, logger *rensenlog.Logger) (*Scheduler, error) {
	if logger == nil {
		logger = rensenlog.Discard()
	}
	s := &Scheduler{global: global, run: run, logger: logger, busy: make(map[string]bool)}
	start := time.Now()
	for _, h := range hosts {
		if h.Config.CronSchedule == "" {
			logger.Warn(rensenerr.Scheduler, "host %s: no cron schedule, using default %q", h.Hostname, config.DefaultCron)
		}
		cfg := h.Config.Normalized()
		expr, err := cronexpr.Parse(cfg.CronSchedule)
		if err != nil {
			logger.Warn(rensenerr.Scheduler, "host %s: invalid cron %q, skipping host: %v",
				h.Hostname, cfg.CronSchedule, err)
			continue
		}
		s.schedules = append(s.schedules, hostSchedule{host: h, expr: expr, lastChecked: start})
	}
	return s, nil
}

// Run blocks, ticking every 30 seconds and fanning out a backup for every
// host whose schedule fires on this minute, until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.tick(ctx, time.Now())
		}
	}
}

// tick checks every host's schedule against now and spawns the due ones
// concurrently. Errors from individual hosts are logged, not returned:
// one host's failure must never stop the others from running.
func (s *Scheduler) tick(ctx context.Context, now time.Time) {
	due := make([]hostSchedule, 0, len(s.schedules))
	for i := range s.schedules {
		hs := &s.schedules[i]
		if s.shouldRun(hs, now) {
			due = append(due, *hs)
		}
		hs.lastChecked = now
	}
	if len(due) == 0 {
		return
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, hs := range due {
		hs := hs
		if !s.tryAcquire(hs.host.Hostname) {
			s.logger.Warn(rensenerr.Scheduler, "host %s: previous run still in progress, skipping tick", hs.host.Hostname)
			continue
		}
		g.Go(func() error {
			defer s.release(hs.host.Hostname)
			if err := s.run(gctx, hs.host, s.global.BackupsRoot); err != nil {
				s.logger.Error(rensenerr.Scheduler, "host %s: backup failed: %v", hs.host.Hostname, err)
			}
			return nil
		})
	}
	_ = g.Wait()
}

// shouldRun reports whether hs's cron expression has an occurrence in
// (hs.lastChecked, now]. A sliding window catches occurrences a slow or
// delayed tick would otherwise step over, unlike comparing now's
// truncated minute against the next computed occurrence.
func (s *Scheduler) shouldRun(hs *hostSchedule, now time.Time) bool {
	next := hs.expr.Next(hs.lastChecked)
	return !next.IsZero() && !next.After(now)
}

func (s *Scheduler) tryAcquire(hostname string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.busy[hostname] {
		return false
	}
	s.busy[hostname] = true
	return true
}

func (s *Scheduler) release(hostname string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.busy, hostname)
}

// NewBuilderRunner adapts internal/backup into a Runner, loading and
// saving each host's record around the run so the Scheduler stays
// decoupled from the Record Store's on-disk layout.
func NewBuilderRunner(logger *rensenlog.Logger) Runner {
	return func(ctx context.Context, host config.Host, backupsRoot string) error {
		layout := backup.ComputeLayout(backupsRoot, host, backup.Timestamp(time.Now()))
		rec, err := snapshot.Load(layout.CanonicalRecord)
		if err != nil {
			return err
		}
		builder := backup.NewBuilder(host, backupsRoot, backup.Incremental, rec, logger)
		_, err = builder.Run(ctx)
		return err
	}
}
