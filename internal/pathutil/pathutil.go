// Package pathutil implements the single path-prefix rebase helper that
// the design calls out as shared by both the Snapshot Builder (local path
// -> source path) and the Compiler (archive path -> compile-target path):
// "implement once as a helper taking (path, old_prefix, new_prefix) and
// document that old_prefix must be a proper ancestor."
package pathutil

import (
	"path/filepath"
	"strings"
)

// Rebase replaces the oldPrefix ancestor of path with newPrefix. oldPrefix
// must be a proper ancestor of path (or equal to it); callers that violate
// this get path returned unchanged, since there is nothing sane to rebase.
func Rebase(path, oldPrefix, newPrefix string) string {
	path = filepath.Clean(path)
	oldPrefix = filepath.Clean(oldPrefix)
	newPrefix = filepath.Clean(newPrefix)

	rel, err := filepath.Rel(oldPrefix, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return path
	}
	if rel == "." {
		return newPrefix
	}
	return filepath.Join(newPrefix, rel)
}

// FileStem returns the final path component with its last extension
// stripped, mirroring Rust's Path::file_stem. An empty string is returned
// for "." and "/".
func FileStem(path string) string {
	base := filepath.Base(filepath.Clean(path))
	if base == "." || base == string(filepath.Separator) {
		return ""
	}
	ext := filepath.Ext(base)
	return strings.TrimSuffix(base, ext)
}

// StripDoubleExtension removes the final two dot-extensions from path,
// e.g. "/a/b/2024.tar.gz" -> "/a/b/2024". Mirrors the Rust original's
// strip_double_extension used to turn an archive file name back into its
// snapshot root identifier.
func StripDoubleExtension(path string) string {
	path = strings.TrimSuffix(path, filepath.Ext(path))
	path = strings.TrimSuffix(path, filepath.Ext(path))
	return path
}
