// Package importer turns archives and directories into project file maps
// and keeps a project in sync with a watched directory.
package importer

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/klauspost/compress/zip"
	"github.com/klauspost/compress/zstd"

	"github.com/starford/jstcode/internal/apperr"
	"github.com/starford/jstcode/internal/project"
)

// Limits caps what an import may bring in.
type Limits struct {
	MaxFileBytes  int64
	MaxTotalBytes int64
	MaxFiles      int
}

// DefaultLimits are used for zero fields.
var DefaultLimits = Limits{
	MaxFileBytes:  1 << 20,
	MaxTotalBytes: 20 << 20,
	MaxFiles:      2000,
}

func (l Limits) withDefaults() Limits {
	if l.MaxFileBytes <= 0 {
		l.MaxFileBytes = DefaultLimits.MaxFileBytes
	}
	if l.MaxTotalBytes <= 0 {
		l.MaxTotalBytes = DefaultLimits.MaxTotalBytes
	}
	if l.MaxFiles <= 0 {
		l.MaxFiles = DefaultLimits.MaxFiles
	}
	return l
}

// collector accumulates accepted files and enforces the totals.
type collector struct {
	lim   Limits
	files map[string]string
	total int64
}

func newCollector(lim Limits) *collector {
	return &collector{lim: lim.withDefaults(), files: map[string]string{}}
}

// accepts reports whether a file of the given path and size should be
// read at all.
func (c *collector) accepts(p string, size int64) bool {
	return project.IsCodeFile(p) && size <= c.lim.MaxFileBytes
}

func (c *collector) add(p string, data []byte) error {
	if !isText(data) {
		return nil
	}
	c.total += int64(len(data))
	if c.total > c.lim.MaxTotalBytes {
		return fmt.Errorf("importer: more than %d bytes: %w", c.lim.MaxTotalBytes, apperr.ErrTooLarge)
	}
	if len(c.files) >= c.lim.MaxFiles {
		return fmt.Errorf("importer: more than %d files: %w", c.lim.MaxFiles, apperr.ErrTooLarge)
	}
	c.files[project.CleanPath(p)] = string(data)
	return nil
}

func isText(data []byte) bool {
	return utf8.Valid(data) && bytes.IndexByte(data, 0) < 0
}

// FromZip reads the code files of a zip archive. Entries that are not code
// or exceed the per-file cap are skipped; exceeding the totals fails the
// whole import. A single top-level folder shared by every file is removed.
func FromZip(r io.ReaderAt, size int64, lim Limits) (map[string]string, error) {
	zr, err := zip.NewReader(r, size)
	if err != nil {
		return nil, fmt.Errorf("importer: open zip: %w: %v", apperr.ErrInvalidArchive, err)
	}
	zr.RegisterDecompressor(zstd.ZipMethodWinZip, zstd.ZipDecompressor())

	c := newCollector(lim)
	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}
		name := sanitize(f.Name)
		if name == "" || !c.accepts(name, int64(f.UncompressedSize64)) {
			continue
		}
		data, err := readEntry(f, c.lim.MaxFileBytes)
		if err != nil {
			return nil, err
		}
		if data == nil {
			continue
		}
		if err := c.add(name, data); err != nil {
			return nil, err
		}
	}
	return StripCommonRoot(c.files), nil
}

func readEntry(f *zip.File, max int64) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("importer: open %s: %w: %v", f.Name, apperr.ErrInvalidArchive, err)
	}
	defer rc.Close()
	data, err := io.ReadAll(io.LimitReader(rc, max+1))
	if err != nil {
		return nil, fmt.Errorf("importer: read %s: %w: %v", f.Name, apperr.ErrInvalidArchive, err)
	}
	if int64(len(data)) > max {
		return nil, nil
	}
	return data, nil
}

// sanitize normalizes an archive entry name and drops anything that would
// climb out of the project root.
func sanitize(name string) string {
	s := filepath.ToSlash(name)
	if len(s) > 1 && s[1] == ':' {
		s = s[2:]
	}
	for _, part := range strings.Split(s, "/") {
		if part == ".." {
			return ""
		}
	}
	return project.CleanPath(s)
}

// FromDir reads the code files under root.
func FromDir(root string, lim Limits) (map[string]string, error) {
	c := newCollector(lim)
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if d.IsDir() {
			if rel != "." && skipDir(d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		if !info.Mode().IsRegular() || !c.accepts(rel, info.Size()) {
			return nil
		}
		data, err := os.ReadFile(p)
		if err != nil {
			return err
		}
		return c.add(rel, data)
	})
	if err != nil {
		if errors.Is(err, apperr.ErrTooLarge) {
			return nil, err
		}
		return nil, fmt.Errorf("importer: walk %s: %w", root, err)
	}
	return c.files, nil
}

func skipDir(name string) bool {
	switch name {
	case "node_modules", ".git", ".next", "dist", "build":
		return true
	}
	return false
}

// StripCommonRoot removes a single top-level folder that contains every
// file, as produced by zipping a project folder.
func StripCommonRoot(files map[string]string) map[string]string {
	prefix := ""
	for p := range files {
		top, _, ok := strings.Cut(p, "/")
		if !ok {
			return files
		}
		if prefix == "" {
			prefix = top
		} else if top != prefix {
			return files
		}
	}
	if prefix == "" {
		return files
	}
	out := make(map[string]string, len(files))
	for p, text := range files {
		out[strings.TrimPrefix(p, prefix+"/")] = text
	}
	return out
}
