// Package ingest decodes ICONCLASS data files into a store dataset.
//
// A data source holds a notations file, a keys file and any number of
// correlate files named txt_<lang> and kw_<lang>. Sources are read from a
// local directory or from an S3 prefix.
package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
)

// FileInfo identifies one file of a source.
type FileInfo struct {
	// Name is the slash separated path relative to the source root.
	Name string `json:"name"`
	Size int64  `json:"size"`
	// Version changes whenever the content does: a modification time for
	// directories, an ETag for S3.
	Version string `json:"version"`
}

// Source lists and opens data files.
type Source interface {
	List(ctx context.Context) ([]FileInfo, error)
	Open(ctx context.Context, name string) (io.ReadCloser, error)
	String() string
}

// Fingerprint returns a stable digest of a file listing. Two listings with
// the same names, sizes and versions have the same fingerprint.
func Fingerprint(files []FileInfo) string {
	sorted := slices.Clone(files)
	slices.SortFunc(sorted, func(a, b FileInfo) int { return strings.Compare(a.Name, b.Name) })

	h := sha256.New()
	for _, f := range sorted {
		fmt.Fprintf(h, "%s\x00%d\x00%s\n", f.Name, f.Size, f.Version)
	}
	return hex.EncodeToString(h.Sum(nil))
}

// DirSource reads data files from a local directory tree.
type DirSource struct {
	root string
}

// NewDirSource creates a source rooted at dir.
func NewDirSource(dir string) (*DirSource, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to stat data directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("data source %q is not a directory", dir)
	}
	return &DirSource{root: dir}, nil
}

// List returns every regular file below the root, skipping hidden entries.
func (d *DirSource) List(ctx context.Context) ([]FileInfo, error) {
	var files []FileInfo
	err := filepath.WalkDir(d.root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if path != d.root && strings.HasPrefix(entry.Name(), ".") {
			if entry.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if !entry.Type().IsRegular() {
			return nil
		}

		info, err := entry.Info()
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(d.root, path)
		if err != nil {
			return err
		}
		files = append(files, FileInfo{
			Name:    filepath.ToSlash(rel),
			Size:    info.Size(),
			Version: strconv.FormatInt(info.ModTime().UnixNano(), 10),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", d.root, err)
	}
	return files, nil
}

// Open opens a file returned by List.
func (d *DirSource) Open(_ context.Context, name string) (io.ReadCloser, error) {
	if !fs.ValidPath(name) {
		return nil, fmt.Errorf("invalid file name %q", name)
	}
	return os.Open(filepath.Join(d.root, filepath.FromSlash(name)))
}

func (d *DirSource) String() string {
	return d.root
}
