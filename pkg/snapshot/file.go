package snapshot

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/greatvovan/bacon-number/pkg/graph"
)

// File keeps the snapshot in a local file. Writes go to a temporary file in
// the same directory which is then renamed over the old one, so readers
// never observe a partial snapshot.
type File struct {
	Path string
}

var _ Store = (*File)(nil)

func NewFile(path string) *File {
	return &File{Path: path}
}

func (f *File) Load(ctx context.Context) (*graph.Store, error) {
	fh, err := os.Open(f.Path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open snapshot: %w", err)
	}
	defer fh.Close()

	return graph.Decode(bufio.NewReader(fh))
}

func (f *File) Save(ctx context.Context, g *graph.Store) (err error) {
	dir := filepath.Dir(f.Path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create snapshot dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(f.Path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create snapshot file: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	w := bufio.NewWriter(tmp)
	if err = graph.Encode(w, g); err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}
	if err = w.Flush(); err != nil {
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	if err = tmp.Sync(); err != nil {
		return fmt.Errorf("failed to sync snapshot: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("failed to close snapshot: %w", err)
	}
	if err = os.Rename(tmp.Name(), f.Path); err != nil {
		return fmt.Errorf("failed to replace snapshot: %w", err)
	}
	return nil
}

func (f *File) Exists(ctx context.Context) (bool, error) {
	_, err := os.Stat(f.Path)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to stat snapshot: %w", err)
	}
	return true, nil
}
