// Package backup is the Snapshot Builder: it orchestrates one backup run
// for one host end to end (connect, mirror, record, archive), with a
// layered "build, then persist, then finalize" structure.
package backup

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gingapard/rensen/internal/archive"
	"github.com/gingapard/rensen/internal/config"
	"github.com/gingapard/rensen/internal/pathutil"
	"github.com/gingapard/rensen/internal/rensenerr"
	"github.com/gingapard/rensen/internal/rensenlog"
	"github.com/gingapard/rensen/internal/sftpengine"
	"github.com/gingapard/rensen/internal/snapshot"
)

// Mode selects whether every remote file is re-fetched (Full) or only
// files whose remote mtime has advanced past the recorded one (Incremental).
type Mode int

const (
	Incremental Mode = iota
	Full
)

func (m Mode) String() string {
	if m == Full {
		return "full"
	}
	return "incremental"
}

// Layout is the set of paths one backup run computes up front.
type Layout struct {
	HostRoot        string
	SnapshotRoot    string
	ArchiveRoot     string
	RecordsDir      string
	CanonicalRecord string
	SnapshotRecord  string
}

// ComputeLayout derives every path for one run of host at timestamp ts
// (already formatted "YYYY-MM-DD-HH-MM-SSZ") under backups root.
func ComputeLayout(backupsRoot string, host config.Host, ts string) Layout {
	hostRoot := filepath.Join(backupsRoot, host.Config.Identifier)
	snapshotRoot := filepath.Join(hostRoot, ts)

	stem := pathutil.FileStem(host.Config.Source)
	archiveLeaf := stem
	if archiveLeaf == "" {
		archiveLeaf = host.Config.Identifier
	}

	recordsDir := filepath.Join(hostRoot, ".records")
	return Layout{
		HostRoot:        hostRoot,
		SnapshotRoot:    snapshotRoot,
		ArchiveRoot:     filepath.Join(snapshotRoot, archiveLeaf),
		RecordsDir:      recordsDir,
		CanonicalRecord: filepath.Join(recordsDir, "record.json"),
		SnapshotRecord:  filepath.Join(recordsDir, ts+".json"),
	}
}

// Timestamp formats now the way the design requires: "YYYY-MM-DD-HH-MM-SSZ"
// in local time.
func Timestamp(now time.Time) string {
	return now.Local().Format("2006-01-02-15-04-05Z")
}

// Builder runs one backup for one host.
type Builder struct {
	Host        config.Host
	BackupsRoot string
	Mode        Mode
	Debug       bool
	Logger      *rensenlog.Logger

	engine *sftpengine.Engine
	layout Layout
	record *snapshot.Record
}

// NewBuilder constructs a Builder for host, reusing its current record.
func NewBuilder(host config.Host, backupsRoot string, mode Mode, rec *snapshot.Record, logger *rensenlog.Logger) *Builder {
	if logger == nil {
		logger = rensenlog.Discard()
	}
	return &Builder{Host: host, BackupsRoot: backupsRoot, Mode: mode, Logger: logger, record: rec}
}

// Run executes the full algorithm: connect, mirror, update the record,
// write it durably, and archive the snapshot. On success it returns the
// updated Record; on any failure before the record is written, no record
// is written at all (per the design's failure semantics).
func (b *Builder) Run(ctx context.Context) (*snapshot.Record, error) {
	cfg := b.Host.Config.Normalized()
	ts := Timestamp(time.Now())
	b.layout = ComputeLayout(b.BackupsRoot, b.Host, ts)

	b.logf("connecting to %s@%s:%d", cfg.User, cfg.Identifier, cfg.Port)
	engine, err := sftpengine.ConnectAndAuth(ctx, cfg.Identifier, cfg.Port, cfg.User, cfg.KeyPath)
	if err != nil {
		b.Logger.Error(rensenerr.Connect, "host %s: %v", b.Host.Hostname, err)
		return nil, err
	}
	b.engine = engine
	defer b.engine.Close()

	if err := os.MkdirAll(b.layout.ArchiveRoot, 0o755); err != nil {
		werr := rensenerr.Wrap(rensenerr.FS, "create archive root", err)
		b.Logger.Error(rensenerr.FS, "host %s: %v", b.Host.Hostname, werr)
		return nil, werr
	}

	if err := b.mirror(ctx, cfg.Source, b.layout.ArchiveRoot); err != nil {
		b.Logger.Error(rensenerr.Copy, "host %s: mirror failed: %v", b.Host.Hostname, err)
		return nil, err
	}

	if err := b.updateLiveEntries(); err != nil {
		return nil, err
	}
	b.updateDeletions(cfg)
	b.record.Snapshot.RecomputeTotalSize()
	b.record.Intervals = append(b.record.Intervals, b.layout.SnapshotRoot)

	if err := snapshot.SaveBoth(b.layout.CanonicalRecord, b.layout.SnapshotRecord, b.record); err != nil {
		b.Logger.Error(rensenerr.FS, "host %s: record write failed: %v", b.Host.Hostname, err)
		return nil, err
	}

	archiveFile := b.layout.SnapshotRoot + ".tar.gz"
	if err := archive.Encode(b.layout.SnapshotRoot, archiveFile); err != nil {
		b.Logger.Error(rensenerr.FS, "host %s: archive failed: %v", b.Host.Hostname, err)
		return nil, err
	}

	b.logf("backup of %s complete: %d live entries, %d bytes", b.Host.Hostname,
		len(b.record.Snapshot.Entries), b.record.Snapshot.TotalSizeBytes)
	return b.record, nil
}

// mirror recursively copies the remote subtree rooted at remoteDir to
// localDir, applying the incremental skip rule for regular files.
func (b *Builder) mirror(ctx context.Context, remoteDir, localDir string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	entries, err := b.engine.ReadDir(remoteDir)
	if err != nil {
		b.Logger.Warn(rensenerr.Metadata, "skipping unreadable directory %s: %v", remoteDir, err)
		return nil
	}

	for _, entry := range entries {
		remotePath := filepath.Join(remoteDir, entry.Name)
		localPath := filepath.Join(localDir, entry.Name)

		if entry.Stat.IsDir() {
			if err := os.MkdirAll(localPath, 0o755); err != nil {
				return rensenerr.Wrap(rensenerr.FS, "create local directory "+localPath, err)
			}
			if err := b.mirror(ctx, remotePath, localPath); err != nil {
				return err
			}
			continue
		}

		if b.Mode == Incremental {
			source := b.sourceFor(remotePath)
			if recorded, ok := b.record.Snapshot.Mtime(source); ok {
				remoteMtime := uint64(entry.Stat.ModTime().Unix())
				if remoteMtime <= recorded {
					b.logf("skipping %s (unchanged)", remotePath)
					continue
				}
			}
		}

		b.logf("fetching %s", remotePath)
		if err := b.engine.FetchFile(remotePath, localPath); err != nil {
			b.Logger.Warn(rensenerr.Copy, "skipping %s: %v", remotePath, err)
			continue
		}
	}
	return nil
}

// sourceFor computes the remote source path a local path under the
// archive root corresponds to: the common prefix with archive_root is
// replaced with the host's remote source path, stripping the
// file-stem leaf component archive_root adds on top of snapshot_root.
func (b *Builder) sourceFor(localPath string) string {
	return pathutil.Rebase(localPath, b.layout.ArchiveRoot, b.Host.Config.Source)
}

// updateLiveEntries walks the snapshot root on disk and records every
// file found, with snapshot_root as its archive pointer.
func (b *Builder) updateLiveEntries() error {
	return filepath.WalkDir(b.layout.SnapshotRoot, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return rensenerr.Wrap(rensenerr.FS, "walk snapshot root", err)
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return rensenerr.Wrap(rensenerr.FS, "stat "+path, err)
		}
		source := b.sourceFor(path)
		if b.record.Snapshot.IsDeleted(source) {
			b.record.Snapshot.Undelete(source)
		}
		b.record.Snapshot.AddEntry(source, path, b.layout.SnapshotRoot, uint64(info.ModTime().Unix()), uint64(info.Size()))
		return nil
	})
}

// updateDeletions re-stats every key currently known to the host's
// aggregated record and marks any that no longer resolve remotely.
func (b *Builder) updateDeletions(cfg config.HostConfig) {
	sources := make([]string, 0, len(b.record.Snapshot.Entries))
	for source := range b.record.Snapshot.Entries {
		sources = append(sources, source)
	}
	for _, source := range sources {
		if _, err := b.engine.RemoteStat(source); err != nil {
			b.logf("marking %s deleted (remote missing)", source)
			b.record.Snapshot.MarkDeleted(source)
		}
	}
}

func (b *Builder) logf(format string, args ...any) {
	if b.Debug {
		fmt.Printf(format+"\n", args...)
	}
	b.Logger.Info(format, args...)
}
