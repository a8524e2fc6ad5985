// Package snapshot is the Record Store: the per-host snapshot model and
// its JSON persistence. A Record is the durable, structured document the
// design calls "one per host" — Snapshot Builder and Compiler both read
// and write it through this package so the single-writer invariants in
// the design's data model hold in exactly one place.
package snapshot

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/gingapard/rensen/internal/rensenerr"
)

// FileEntry describes one file as it existed in a particular snapshot.
type FileEntry struct {
	// FilePath is the file's path on the local machine, inside the
	// archive directory.
	FilePath string `json:"file_path"`
	// SnapshotRootPath identifies which archive this entry lives in,
	// without extension.
	SnapshotRootPath string `json:"snapshot_path"`
	// Mtime is last-modified time in whole seconds since epoch.
	Mtime uint64 `json:"mtime"`
	// Size is the file size in bytes.
	Size uint64 `json:"size"`
}

// ModTime returns Mtime as a time.Time, for callers that prefer it.
func (e FileEntry) ModTime() time.Time { return time.Unix(int64(e.Mtime), 0).UTC() }

// DeletedEntry records a file present in a previous snapshot but no
// longer reachable on the remote: its source path and its last-known
// local destination.
type DeletedEntry struct {
	Source      string `json:"source"`
	Destination string `json:"destination"`
}

// Snapshot is the aggregated, current view of a host's backup history: a
// mapping from source path to its latest known entry, plus the set of
// paths known to have been deleted upstream.
type Snapshot struct {
	Entries map[string]FileEntry    `json:"entries"`
	Deleted map[string]DeletedEntry `json:"deleted_entries"`
	// TotalSizeBytes is the persisted sum of every live entry's size, set
	// by RecomputeTotalSize after the live set and deletions settle for a
	// run. It is not kept in sync incrementally by AddEntry/MarkDeleted.
	TotalSizeBytes uint64 `json:"total_size"`
}

// New returns an empty Snapshot.
func New() Snapshot {
	return Snapshot{
		Entries: make(map[string]FileEntry),
		Deleted: make(map[string]DeletedEntry),
	}
}

func (s *Snapshot) ensure() {
	if s.Entries == nil {
		s.Entries = make(map[string]FileEntry)
	}
	if s.Deleted == nil {
		s.Deleted = make(map[string]DeletedEntry)
	}
}

// AddEntry inserts or replaces the entry for source. If source was
// present in Deleted, it is removed from there first — a reappearing
// file is never both live and deleted.
func (s *Snapshot) AddEntry(source, filePath, snapshotRoot string, mtime uint64, size uint64) {
	s.ensure()
	delete(s.Deleted, source)
	s.Entries[source] = FileEntry{
		FilePath:         filePath,
		SnapshotRootPath: snapshotRoot,
		Mtime:            mtime,
		Size:             size,
	}
}

// MarkDeleted removes source from Entries and records it (with its last
// known local path) in Deleted.
func (s *Snapshot) MarkDeleted(source string) {
	s.ensure()
	entry, ok := s.Entries[source]
	dest := ""
	if ok {
		dest = entry.FilePath
	}
	delete(s.Entries, source)
	s.Deleted[source] = DeletedEntry{Source: source, Destination: dest}
}

// IsDeleted reports whether source is currently recorded as deleted.
func (s *Snapshot) IsDeleted(source string) bool {
	s.ensure()
	_, ok := s.Deleted[source]
	return ok
}

// Undelete removes source from Deleted. The caller is responsible for
// re-adding it as a live entry.
func (s *Snapshot) Undelete(source string) {
	s.ensure()
	delete(s.Deleted, source)
}

// Mtime returns the recorded mtime for source, if any.
func (s *Snapshot) Mtime(source string) (uint64, bool) {
	e, ok := s.Entries[source]
	if !ok {
		return 0, false
	}
	return e.Mtime, true
}

// Path returns the recorded local file path for source, if any.
func (s *Snapshot) Path(source string) (string, bool) {
	e, ok := s.Entries[source]
	if !ok {
		return "", false
	}
	return e.FilePath, true
}

// Size returns the recorded size for source, if any.
func (s *Snapshot) Size(source string) (uint64, bool) {
	e, ok := s.Entries[source]
	if !ok {
		return 0, false
	}
	return e.Size, true
}

// TotalSize sums the size of every live entry.
func (s *Snapshot) TotalSize() uint64 {
	var total uint64
	for _, e := range s.Entries {
		total += e.Size
	}
	return total
}

// RecomputeTotalSize sets TotalSizeBytes to the current sum of every live
// entry's size and returns it.
func (s *Snapshot) RecomputeTotalSize() uint64 {
	s.TotalSizeBytes = s.TotalSize()
	return s.TotalSizeBytes
}

// Record is the durable per-host document: the aggregated snapshot view,
// the capture-ordered list of snapshot roots, and a reserved interval
// counter the scheduler does not yet interpret.
type Record struct {
	IntervalN int      `json:"interval_n"`
	Intervals []string `json:"intervals"`
	Snapshot  Snapshot `json:"snapshot"`
}

// NewRecord returns an empty Record.
func NewRecord() *Record {
	return &Record{Snapshot: New()}
}

// Load reads the Record document at path. A missing file yields an empty
// Record, not an error, so a host's first run has something to mutate.
func Load(path string) (*Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return NewRecord(), nil
		}
		return nil, rensenerr.Wrap(rensenerr.FS, "read record "+path, err)
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, rensenerr.Wrap(rensenerr.Deserialize, "parse record "+path, err)
	}
	rec.Snapshot.ensure()
	return &rec, nil
}

// Save writes rec to path via write-to-temp-then-rename, so a reader
// always observes either the previous complete record or the new one,
// never a partial write.
func Save(path string, rec *Record) error {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return rensenerr.Wrap(rensenerr.FS, "create record directory", err)
		}
	}
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return rensenerr.Wrap(rensenerr.Serialize, "marshal record", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".record-*.tmp")
	if err != nil {
		return rensenerr.Wrap(rensenerr.FS, "create temp record file", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return rensenerr.Wrap(rensenerr.FS, "write temp record file", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return rensenerr.Wrap(rensenerr.FS, "sync temp record file", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return rensenerr.Wrap(rensenerr.FS, "close temp record file", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return rensenerr.Wrap(rensenerr.FS, "rename record file", err)
	}
	return nil
}

// SaveBoth writes rec to both the canonical and snapshot-named paths, and
// is used by the Snapshot Builder to keep record.json and <timestamp>.json
// byte-identical after a successful run.
func SaveBoth(canonicalPath, snapshotPath string, rec *Record) error {
	if err := Save(canonicalPath, rec); err != nil {
		return err
	}
	return Save(snapshotPath, rec)
}
