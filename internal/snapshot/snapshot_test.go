package snapshot_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/gingapard/rensen/internal/snapshot"
)

func TestAddEntryUndeletesSource(t *testing.T) {
	s := snapshot.New()
	s.MarkDeleted("/srv/data/a.txt")
	require.True(t, s.IsDeleted("/srv/data/a.txt"))

	s.AddEntry("/srv/data/a.txt", "/backups/edge/T4/a.txt", "/backups/edge/T4", 400, 10)
	require.False(t, s.IsDeleted("/srv/data/a.txt"))

	mtime, ok := s.Mtime("/srv/data/a.txt")
	require.True(t, ok)
	require.Equal(t, uint64(400), mtime)
}

func TestMarkDeletedRecordsLastKnownPath(t *testing.T) {
	s := snapshot.New()
	s.AddEntry("/srv/data/a.txt", "/backups/edge/T1/a.txt", "/backups/edge/T1", 100, 3)
	s.MarkDeleted("/srv/data/a.txt")

	_, stillLive := s.Mtime("/srv/data/a.txt")
	require.False(t, stillLive)

	entry, ok := s.Deleted["/srv/data/a.txt"]
	require.True(t, ok)
	require.Equal(t, "/backups/edge/T1/a.txt", entry.Destination)
}

func TestEntriesAndDeletedAreDisjoint(t *testing.T) {
	s := snapshot.New()
	s.AddEntry("/srv/data/a.txt", "/backups/edge/T1/a.txt", "/backups/edge/T1", 100, 3)
	s.AddEntry("/srv/data/b.txt", "/backups/edge/T1/b.txt", "/backups/edge/T1", 200, 7)
	s.MarkDeleted("/srv/data/a.txt")

	for source := range s.Entries {
		_, inDeleted := s.Deleted[source]
		require.False(t, inDeleted, "source %q present in both entries and deleted", source)
	}
}

func TestTotalSize(t *testing.T) {
	s := snapshot.New()
	s.AddEntry("a", "fa", "root", 100, 3)
	s.AddEntry("b", "fb", "root", 200, 7)
	s.AddEntry("c", "fc", "root", 150, 5)
	require.Equal(t, uint64(15), s.TotalSize())
}

func TestRecomputeTotalSizePersistsOnSnapshot(t *testing.T) {
	s := snapshot.New()
	s.AddEntry("a", "fa", "root", 100, 3)
	s.AddEntry("b", "fb", "root", 200, 7)
	require.Equal(t, uint64(0), s.TotalSizeBytes)

	require.Equal(t, uint64(10), s.RecomputeTotalSize())
	require.Equal(t, uint64(10), s.TotalSizeBytes)

	s.MarkDeleted("a")
	require.Equal(t, uint64(10), s.TotalSizeBytes, "marking deleted does not recompute incrementally")
	require.Equal(t, uint64(7), s.RecomputeTotalSize())
}

func TestSaveThenLoadRoundTrips(t *testing.T) {
	dir := t.TempDir()
	rec := snapshot.NewRecord()
	rec.Snapshot.AddEntry("/srv/data/a.txt", "/backups/edge/T1/a.txt", "/backups/edge/T1", 100, 3)
	rec.Intervals = append(rec.Intervals, "/backups/edge/T1")

	path := filepath.Join(dir, "record.json")
	require.NoError(t, snapshot.Save(path, rec))

	loaded, err := snapshot.Load(path)
	require.NoError(t, err)
	require.Equal(t, rec, loaded)
}

func TestLoadMissingFileYieldsEmptyRecord(t *testing.T) {
	dir := t.TempDir()
	rec, err := snapshot.Load(filepath.Join(dir, "does-not-exist.json"))
	require.NoError(t, err)
	require.Empty(t, rec.Snapshot.Entries)
	require.Empty(t, rec.Snapshot.Deleted)
}

func TestSaveBothProducesByteIdenticalFiles(t *testing.T) {
	dir := t.TempDir()
	rec := snapshot.NewRecord()
	rec.Snapshot.AddEntry("/srv/data/a.txt", "/backups/edge/T1/a.txt", "/backups/edge/T1", 100, 3)

	canonical := filepath.Join(dir, "record.json")
	named := filepath.Join(dir, "2024-06-01-00-00-00Z.json")
	require.NoError(t, snapshot.SaveBoth(canonical, named, rec))

	a, err := os.ReadFile(canonical)
	require.NoError(t, err)
	b, err := os.ReadFile(named)
	require.NoError(t, err)
	require.Equal(t, a, b)
}
