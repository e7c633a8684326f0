package blob

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// localStore serves objects from a directory tree. It exists for development
// and tests; object keys are slash-separated paths relative to the root.
type localStore struct {
	root string
}

func newLocalStore(root string) (*localStore, error) {
	info, err := os.Stat(root)
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, root)
	}

	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrList, root, err)
	}

	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", ErrList, root)
	}

	return &localStore{root: root}, nil
}

func (s *localStore) List(_ context.Context, prefix string) ([]Descriptor, error) {
	var out []Descriptor

	err := filepath.WalkDir(s.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}

		rel, err := filepath.Rel(s.root, path)
		if err != nil {
			return err
		}

		key := filepath.ToSlash(rel)
		if !strings.HasPrefix(key, prefix) {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return err
		}

		out = append(out, Descriptor{Name: key, Size: info.Size()})

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrList, err)
	}

	return out, nil
}

func (s *localStore) Open(_ context.Context, name string) (io.ReadCloser, error) {
	f, err := os.Open(filepath.Join(s.root, filepath.FromSlash(name)))
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}

	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrDownload, name, err)
	}

	return f, nil
}
