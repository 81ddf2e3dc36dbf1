// Package bronze stores raw departure batches as append-only Parquet files.
package bronze

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/parquet-go/parquet-go"

	"punktlich/internal/departures"
)

const (
	filePrefix = "bronze_"
	fileExt    = ".parquet"
	nameLayout = "20060102_150405"
)

type Writer struct {
	dir string
	now func() time.Time
}

func NewWriter(dir string) *Writer {
	return &Writer{dir: dir, now: time.Now}
}

// Write stores one batch as bronze_YYYYMMDD_HHMMSS.parquet and returns its path.
// An empty batch writes nothing and returns "".
func (w *Writer) Write(rows []departures.Bronze) (string, error) {
	if len(rows) == 0 {
		return "", nil
	}
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return "", fmt.Errorf("create bronze dir: %w", err)
	}
	path, err := w.nextPath()
	if err != nil {
		return "", err
	}
	tmp := path + ".tmp"
	if err := parquet.WriteFile(tmp, rows); err != nil {
		_ = os.Remove(tmp)
		return "", fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return "", fmt.Errorf("publish %s: %w", filepath.Base(path), err)
	}
	return path, nil
}

// nextPath names the file after the current UTC second; a second batch within
// the same second gets a numeric suffix so names stay ordered.
func (w *Writer) nextPath() (string, error) {
	base := filePrefix + w.now().UTC().Format(nameLayout)
	path := filepath.Join(w.dir, base+fileExt)
	for i := 1; ; i++ {
		_, err := os.Stat(path)
		if errors.Is(err, os.ErrNotExist) {
			return path, nil
		}
		if err != nil {
			return "", err
		}
		path = filepath.Join(w.dir, fmt.Sprintf("%s_%02d%s", base, i, fileExt))
	}
}

// List returns the bronze files in dir sorted by name, i.e. by write time.
// A missing directory yields no files.
func List(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("list bronze dir: %w", err)
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() || !IsBronzeFile(e.Name()) {
			continue
		}
		files = append(files, filepath.Join(dir, e.Name()))
	}
	sort.Strings(files)
	return files, nil
}

// IsBronzeFile reports whether name is a finished bronze file.
func IsBronzeFile(name string) bool {
	name = filepath.Base(name)
	return strings.HasPrefix(name, filePrefix) && strings.HasSuffix(name, fileExt)
}

func Read(path string) ([]departures.Bronze, error) {
	rows, err := parquet.ReadFile[departures.Bronze](path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", filepath.Base(path), err)
	}
	return rows, nil
}

type DirStats struct {
	Files  int
	Rows   int64
	Bytes  int64
	Oldest time.Time // write time of the first file, from its name
	Newest time.Time
}

// FileTime returns the UTC write time encoded in a bronze file name.
func FileTime(name string) (time.Time, bool) {
	name = filepath.Base(name)
	if !IsBronzeFile(name) {
		return time.Time{}, false
	}
	stamp := strings.TrimPrefix(name, filePrefix)
	if len(stamp) < len(nameLayout) {
		return time.Time{}, false
	}
	t, err := time.Parse(nameLayout, stamp[:len(nameLayout)])
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// Stats summarises the bronze directory without loading rows.
func Stats(dir string) (DirStats, error) {
	files, err := List(dir)
	if err != nil {
		return DirStats{}, err
	}
	var s DirStats
	for _, path := range files {
		f, err := os.Open(path)
		if err != nil {
			return DirStats{}, err
		}
		info, err := f.Stat()
		if err != nil {
			f.Close()
			return DirStats{}, err
		}
		pf, err := parquet.OpenFile(f, info.Size())
		if err != nil {
			f.Close()
			return DirStats{}, fmt.Errorf("open %s: %w", filepath.Base(path), err)
		}
		s.Files++
		s.Rows += pf.NumRows()
		s.Bytes += info.Size()
		f.Close()
		if t, ok := FileTime(path); ok {
			if s.Oldest.IsZero() || t.Before(s.Oldest) {
				s.Oldest = t
			}
			if t.After(s.Newest) {
				s.Newest = t
			}
		}
	}
	return s, nil
}
