// Package compiler is the Compiler: it turns a Record's aggregated
// snapshot view into one reconstructed directory tree, lazily decoding
// whichever archives that snapshot still touches. Grounded directly on
// original_source/rensen-lib/src/compiler.rs's Compiler::compile and
// Compiler::cleanup.
package compiler

import (
	"os"
	"path/filepath"

	"github.com/gingapard/rensen/internal/archive"
	"github.com/gingapard/rensen/internal/pathutil"
	"github.com/gingapard/rensen/internal/rensenerr"
	"github.com/gingapard/rensen/internal/snapshot"
)

// Compiler reconstructs the files named in a loaded Record.
type Compiler struct {
	record *snapshot.Record
	// seen tracks which snapshot roots ensureDecoded has already resolved
	// this run, so a root shared by many entries is only checked once.
	seen map[string]bool
	// decoded tracks only the roots this Compiler itself decoded from a
	// .tar.gz this run; Cleanup removes exactly these, never a root that
	// already existed on disk before Compile ran.
	decoded map[string]bool
}

// From loads the Record document at recordPath and wraps it in a Compiler.
func From(recordPath string) (*Compiler, error) {
	rec, err := snapshot.Load(recordPath)
	if err != nil {
		return nil, err
	}
	return &Compiler{record: rec, seen: make(map[string]bool), decoded: make(map[string]bool)}, nil
}

// Compile reconstructs every live entry in the Record under destination,
// which must be a full directory path (not a file). Archives that are
// not already decoded on disk are decoded on first use. Entries whose
// archive cannot be decoded, or whose file cannot be copied, are skipped
// with the error recorded in the returned slice rather than aborting the
// whole run.
func (c *Compiler) Compile(destination string) ([]error, error) {
	if err := os.MkdirAll(destination, 0o755); err != nil {
		return nil, rensenerr.Wrap(rensenerr.FS, "create compile destination", err)
	}

	var problems []error
	for source, entry := range c.record.Snapshot.Entries {
		if err := c.ensureDecoded(entry.SnapshotRootPath); err != nil {
			problems = append(problems, rensenerr.Wrap(rensenerr.FS, "decode archive for "+source, err))
			continue
		}

		fileDestination := pathutil.Rebase(entry.FilePath, entry.SnapshotRootPath, destination)
		if err := forceCopy(entry.FilePath, fileDestination); err != nil {
			problems = append(problems, rensenerr.Wrap(rensenerr.Copy, "copy "+entry.FilePath, err))
		}
	}
	return problems, nil
}

// ensureDecoded decodes snapshotRoot+".tar.gz" into snapshotRoot if
// snapshotRoot does not already exist on disk. A root that was already
// present on disk is left alone entirely — it is not ours to remove.
func (c *Compiler) ensureDecoded(snapshotRoot string) error {
	if c.seen[snapshotRoot] {
		return nil
	}
	c.seen[snapshotRoot] = true
	if _, err := os.Stat(snapshotRoot); err == nil {
		return nil
	}
	if err := archive.Decode(snapshotRoot+".tar.gz", snapshotRoot); err != nil {
		return err
	}
	c.decoded[snapshotRoot] = true
	return nil
}

// Cleanup removes every snapshot root this Compiler itself decoded during
// Compile, leaving the original .tar.gz archives and any pre-existing
// directory form untouched.
func (c *Compiler) Cleanup() []error {
	var problems []error
	for root := range c.decoded {
		if err := os.RemoveAll(pathutil.StripDoubleExtension(root)); err != nil {
			problems = append(problems, rensenerr.Wrap(rensenerr.FS, "cleanup "+root, err))
		}
	}
	return problems
}

func forceCopy(src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	return os.WriteFile(dst, data, 0o644)
}
