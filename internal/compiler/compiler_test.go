package compiler_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/gingapard/rensen/internal/archive"
	"github.com/gingapard/rensen/internal/compiler"
	"github.com/gingapard/rensen/internal/snapshot"
)

// buildArchivedSnapshot writes a directory tree at root, archives it
// (as the Archive Codec would during a real backup run, leaving only
// root+".tar.gz" on disk).
func buildArchivedSnapshot(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		full := filepath.Join(root, rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
		require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
	}
	require.NoError(t, archive.Encode(root, root+".tar.gz"))
}

func TestCompileReconstructsAcrossArchives(t *testing.T) {
	dir := t.TempDir()
	t1 := filepath.Join(dir, "edge", "T1")
	t2 := filepath.Join(dir, "edge", "T2")

	buildArchivedSnapshot(t, t1, map[string]string{
		"a.txt":   "a-from-t1",
		"b/c.txt": "c-from-t1",
		"b/d.txt": "d-from-t1",
	})
	buildArchivedSnapshot(t, t2, map[string]string{
		"b/c.txt": "c-from-t2",
	})

	rec := snapshot.NewRecord()
	rec.Snapshot.AddEntry("/srv/data/a.txt", filepath.Join(t1, "a.txt"), t1, 100, 9)
	rec.Snapshot.AddEntry("/srv/data/b/c.txt", filepath.Join(t2, "b", "c.txt"), t2, 250, 9)
	rec.Snapshot.AddEntry("/srv/data/b/d.txt", filepath.Join(t1, "b", "d.txt"), t1, 150, 9)

	recordPath := filepath.Join(dir, "edge", ".records", "T2.json")
	require.NoError(t, snapshot.Save(recordPath, rec))

	c, err := compiler.From(recordPath)
	require.NoError(t, err)

	destination := filepath.Join(dir, "out", "T2")
	problems, err := c.Compile(destination)
	require.NoError(t, err)
	require.Empty(t, problems)

	a, err := os.ReadFile(filepath.Join(destination, "a.txt"))
	require.NoError(t, err)
	require.Equal(t, "a-from-t1", string(a))

	cFile, err := os.ReadFile(filepath.Join(destination, "b", "c.txt"))
	require.NoError(t, err)
	require.Equal(t, "c-from-t2", string(cFile))

	dFile, err := os.ReadFile(filepath.Join(destination, "b", "d.txt"))
	require.NoError(t, err)
	require.Equal(t, "d-from-t1", string(dFile))

	for _, p := range c.Cleanup() {
		t.Logf("cleanup warning: %v", p)
	}
	_, err = os.Stat(t1)
	require.True(t, os.IsNotExist(err), "decoded snapshot root should be removed after cleanup")
	require.FileExists(t, t1+".tar.gz")
}

func TestCleanupLeavesPreexistingDirectoryFormAlone(t *testing.T) {
	dir := t.TempDir()
	root := filepath.Join(dir, "edge", "T1")
	buildArchivedSnapshot(t, root, map[string]string{"a.txt": "hello"})

	// Simulate the directory form already being present on disk before
	// Compile ever runs, as if a prior caller left it decoded.
	require.NoError(t, os.MkdirAll(root, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.txt"), []byte("hello"), 0o644))

	rec := snapshot.NewRecord()
	rec.Snapshot.AddEntry("/srv/data/a.txt", filepath.Join(root, "a.txt"), root, 100, 5)
	recordPath := filepath.Join(dir, "edge", ".records", "T1.json")
	require.NoError(t, snapshot.Save(recordPath, rec))

	c, err := compiler.From(recordPath)
	require.NoError(t, err)
	destination := filepath.Join(dir, "out")
	_, err = c.Compile(destination)
	require.NoError(t, err)

	require.Empty(t, c.Cleanup())

	_, err = os.Stat(root)
	require.NoError(t, err, "pre-existing directory form must survive Cleanup since this Compiler never decoded it")
}

func TestCompileTwiceProducesEqualTrees(t *testing.T) {
	dir := t.TempDir()
	root := filepath.Join(dir, "edge", "T1")
	buildArchivedSnapshot(t, root, map[string]string{"a.txt": "hello"})

	rec := snapshot.NewRecord()
	rec.Snapshot.AddEntry("/srv/data/a.txt", filepath.Join(root, "a.txt"), root, 100, 5)
	recordPath := filepath.Join(dir, "edge", ".records", "T1.json")
	require.NoError(t, snapshot.Save(recordPath, rec))

	c1, err := compiler.From(recordPath)
	require.NoError(t, err)
	dest1 := filepath.Join(dir, "out1")
	_, err = c1.Compile(dest1)
	require.NoError(t, err)
	c1.Cleanup()

	c2, err := compiler.From(recordPath)
	require.NoError(t, err)
	dest2 := filepath.Join(dir, "out2")
	_, err = c2.Compile(dest2)
	require.NoError(t, err)
	c2.Cleanup()

	a1, err := os.ReadFile(filepath.Join(dest1, "a.txt"))
	require.NoError(t, err)
	a2, err := os.ReadFile(filepath.Join(dest2, "a.txt"))
	require.NoError(t, err)
	require.Equal(t, a1, a2)
}
