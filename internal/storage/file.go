package storage

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"streamwatch/internal/model"
)

// File implements Store with one newline-delimited text file per source:
// {dir}/last_{source}.txt, one identifier per line.
type File struct {
	dir string
	mu  sync.Mutex
}

// NewFile returns a File store rooted at dir, creating dir if needed.
func NewFile(dir string) (*File, error) {
	if dir == "" {
		return nil, errors.New("data directory is required")
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}
	return &File{dir: dir}, nil
}

// Close implements Store. File holds no open handles.
func (f *File) Close() error {
	return nil
}

// Path returns the state file of source.
func (f *File) Path(source string) string {
	return filepath.Join(f.dir, "last_"+source+".txt")
}

// Bootstrap creates an empty state file for every source that has none.
func (f *File) Bootstrap(sources ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, src := range sources {
		fh, err := os.OpenFile(f.Path(src), os.O_CREATE|os.O_WRONLY, 0o600)
		if err != nil {
			return fmt.Errorf("create state file for %s: %w", src, err)
		}
		if err := fh.Close(); err != nil {
			return fmt.Errorf("close state file for %s: %w", src, err)
		}
	}
	return nil
}

// Load reads the identifiers saved for source.
func (f *File) Load(_ context.Context, source string) (model.IDSet, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	ids, err := ReadIDFile(f.Path(source))
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", source, err)
	}
	return ids, nil
}

// Save atomically replaces the state file of source with ids.
func (f *File) Save(_ context.Context, source string, ids model.IDSet) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := writeIDFile(f.Path(source), ids); err != nil {
		return fmt.Errorf("save %s: %w", source, err)
	}
	return nil
}

// ReadIDFile reads a newline-delimited identifier file. Surrounding
// whitespace and blank lines are ignored; a missing file yields an empty set.
func ReadIDFile(path string) (model.IDSet, error) {
	fh, err := os.Open(path) //nolint:gosec // path is built from configuration
	if errors.Is(err, fs.ErrNotExist) {
		return model.NewIDSet(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer func() { _ = fh.Close() }()

	return parseIDs(fh)
}

func parseIDs(r io.Reader) (model.IDSet, error) {
	ids := model.NewIDSet()
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		ids.Add(line)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("scan identifiers: %w", err)
	}
	return ids, nil
}

// writeIDFile writes to a temporary file in the same directory and renames
// it over path, so a crash leaves either the old or the new content.
func writeIDFile(path string, ids model.IDSet) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	w := bufio.NewWriter(tmp)
	for _, id := range ids.Sorted() {
		if _, err := w.WriteString(id + "\n"); err != nil {
			_ = tmp.Close()
			return fmt.Errorf("write temp file: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("flush temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("replace state file: %w", err)
	}
	return nil
}
