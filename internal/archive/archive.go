// Package archive is the Archive Codec: it turns a directory subtree into
// a single gzip-compressed tar container and back. This mirrors the
// teacher's stream/compress.go pattern (a narrow compress/decompress pair
// with one settings struct) adapted from zstd buffer compression to
// tar+gzip directory archival, and the Rust original's make_tar_gz /
// demake_tar_gz in original_source/lib/src/utils.rs.
package archive

import (
	"archive/tar"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/klauspost/compress/gzip"

	"github.com/gingapard/rensen/internal/rensenerr"
)

// Encode walks sourceDir depth-first (directories before their contents)
// and writes a gzip-compressed tar stream to targetFile, with entry names
// relative to sourceDir. On success sourceDir is removed (best-effort);
// on any failure targetFile does not exist.
func Encode(sourceDir, targetFile string) error {
	if err := os.MkdirAll(filepath.Dir(targetFile), 0o755); err != nil {
		return rensenerr.Wrap(rensenerr.FS, "create archive parent directory", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(targetFile), ".archive-*.tmp")
	if err != nil {
		return rensenerr.Wrap(rensenerr.FS, "create temp archive file", err)
	}
	tmpName := tmp.Name()
	succeeded := false
	defer func() {
		tmp.Close()
		if !succeeded {
			os.Remove(tmpName)
		}
	}()

	gz, err := gzip.NewWriterLevel(tmp, gzip.DefaultCompression)
	if err != nil {
		return rensenerr.Wrap(rensenerr.FS, "create gzip writer", err)
	}
	tw := tar.NewWriter(gz)

	if err := addDirToTar(tw, sourceDir, sourceDir); err != nil {
		return err
	}
	if err := tw.Close(); err != nil {
		return rensenerr.Wrap(rensenerr.FS, "close tar writer", err)
	}
	if err := gz.Close(); err != nil {
		return rensenerr.Wrap(rensenerr.FS, "close gzip writer", err)
	}
	if err := tmp.Sync(); err != nil {
		return rensenerr.Wrap(rensenerr.FS, "sync archive file", err)
	}
	if err := tmp.Close(); err != nil {
		return rensenerr.Wrap(rensenerr.FS, "close archive file", err)
	}
	if err := os.Rename(tmpName, targetFile); err != nil {
		return rensenerr.Wrap(rensenerr.FS, "rename archive file", err)
	}
	succeeded = true

	_ = os.RemoveAll(sourceDir)
	return nil
}

func addDirToTar(tw *tar.Writer, root, dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return rensenerr.Wrap(rensenerr.FS, "read directory "+dir, err)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	for _, entry := range entries {
		path := filepath.Join(dir, entry.Name())
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return rensenerr.Wrap(rensenerr.FS, "compute relative path for "+path, err)
		}
		rel = filepath.ToSlash(rel)

		info, err := entry.Info()
		if err != nil {
			return rensenerr.Wrap(rensenerr.FS, "stat "+path, err)
		}

		if entry.IsDir() {
			hdr, err := tar.FileInfoHeader(info, "")
			if err != nil {
				return rensenerr.Wrap(rensenerr.FS, "build tar header for "+path, err)
			}
			hdr.Name = rel + "/"
			if err := tw.WriteHeader(hdr); err != nil {
				return rensenerr.Wrap(rensenerr.FS, "write tar header for "+path, err)
			}
			if err := addDirToTar(tw, root, path); err != nil {
				return err
			}
			continue
		}

		hdr, err := tar.FileInfoHeader(info, "")
		if err != nil {
			return rensenerr.Wrap(rensenerr.FS, "build tar header for "+path, err)
		}
		hdr.Name = rel

		f, err := os.Open(path)
		if err != nil {
			return rensenerr.Wrap(rensenerr.FS, "open "+path, err)
		}
		err = func() error {
			defer f.Close()
			if err := tw.WriteHeader(hdr); err != nil {
				return rensenerr.Wrap(rensenerr.FS, "write tar header for "+path, err)
			}
			if _, err := io.Copy(tw, f); err != nil {
				return rensenerr.Wrap(rensenerr.FS, "write tar data for "+path, err)
			}
			return nil
		}()
		if err != nil {
			return err
		}
	}
	return nil
}

// Decode creates targetDir if missing, then unpacks the gzipped tar at
// sourceFile into it, preserving relative paths. Any entry whose name
// contains ".." is rejected as a malformed-archive defense.
func Decode(sourceFile, targetDir string) error {
	if err := os.MkdirAll(targetDir, 0o755); err != nil {
		return rensenerr.Wrap(rensenerr.FS, "create target directory", err)
	}

	f, err := os.Open(sourceFile)
	if err != nil {
		return rensenerr.Wrap(rensenerr.FS, "open archive "+sourceFile, err)
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return rensenerr.Wrap(rensenerr.FS, "open gzip stream", err)
	}
	defer gz.Close()

	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return rensenerr.Wrap(rensenerr.FS, "read tar entry", err)
		}

		name := filepath.ToSlash(hdr.Name)
		if strings.Contains(name, "..") {
			return rensenerr.New(rensenerr.FS, "archive entry %q escapes target directory", hdr.Name)
		}

		dest := filepath.Join(targetDir, filepath.FromSlash(name))
		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(dest, 0o755); err != nil {
				return rensenerr.Wrap(rensenerr.FS, "create directory "+dest, err)
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
				return rensenerr.Wrap(rensenerr.FS, "create directory "+filepath.Dir(dest), err)
			}
			out, err := os.OpenFile(dest, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
			if err != nil {
				return rensenerr.Wrap(rensenerr.FS, "create file "+dest, err)
			}
			_, copyErr := io.Copy(out, tr)
			closeErr := out.Close()
			if copyErr != nil {
				return rensenerr.Wrap(rensenerr.FS, "write file "+dest, copyErr)
			}
			if closeErr != nil {
				return rensenerr.Wrap(rensenerr.FS, "close file "+dest, closeErr)
			}
		default:
			// symlinks, devices, etc: not produced by Encode, skipped.
		}
	}
	return nil
}
