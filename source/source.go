// Package source provides task sources for the pool: an in-memory slice, the
// files of a directory and a chunked reader over a large text file.
package source

import (
	"context"
	"fmt"
	"io/fs"
	"iter"
	"os"
	"path/filepath"
	"slices"
)

// SliceSource yields the elements of a slice in order. It can be iterated any
// number of times.
type SliceSource[T any] struct {
	items []T
}

// Slice wraps items. The slice is not copied.
func Slice[T any](items []T) *SliceSource[T] {
	return &SliceSource[T]{items: items}
}

func (s *SliceSource[T]) Len() int { return len(s.items) }

func (s *SliceSource[T]) Tasks(ctx context.Context) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		for _, item := range s.items {
			if ctx.Err() != nil {
				return
			}
			if !yield(item, nil) {
				return
			}
		}
	}
}

// DirSource lists the regular files directly inside a directory, following
// symlinks. Names are sorted; subdirectories and broken links are ignored.
type DirSource struct {
	dir   string
	names []string
}

// Dir reads the listing of dir once. The tasks are bare file names; use Path
// to join them back to the directory.
func Dir(dir string) (*DirSource, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", dir, err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		mode := e.Type()
		if mode&fs.ModeSymlink != 0 {
			info, err := os.Stat(filepath.Join(dir, e.Name()))
			if err != nil {
				continue
			}
			mode = info.Mode()
		}
		if mode.IsRegular() {
			names = append(names, e.Name())
		}
	}
	slices.Sort(names)

	return &DirSource{dir: dir, names: names}, nil
}

// Path returns the full path of a file name produced by the source.
func (d *DirSource) Path(name string) string {
	return filepath.Join(d.dir, name)
}

func (d *DirSource) Len() int { return len(d.names) }

func (d *DirSource) Tasks(ctx context.Context) iter.Seq2[string, error] {
	return Slice(d.names).Tasks(ctx)
}
