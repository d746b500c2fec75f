/*
Package file stores user uploads. The Store interface has a local disk
implementation and an S3 implementation; the HTTP layer picks one via
configuration and never cares which is behind it.
*/
package file

import (
	"context"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/thothlabs/thoth/pkg/errors"
)

/*
Store persists uploaded files keyed by owner and name. Names are flat:
a slash in an upload name is rejected, not interpreted.
*/
type Store interface {
	Save(ctx context.Context, owner, name string, body io.Reader, limit int64) (int64, error)
	Open(ctx context.Context, owner, name string) (io.ReadCloser, error)
	Remove(ctx context.Context, owner, name string) error
}

/*
DiskStore keeps uploads under baseDir, one subdirectory per owner.
Writes go through a temp file and a rename so a crashed upload never
leaves a half-written file visible.
*/
type DiskStore struct {
	mu      sync.Mutex
	baseDir string
}

func NewDiskStore(baseDir string) (*DiskStore, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, errors.ErrPersistence.WithMessagef("failed to create base directory: %v", err)
	}

	return &DiskStore{baseDir: baseDir}, nil
}

/*
Save streams body to disk. When limit is positive and the body exceeds
it, the upload is rejected and nothing is kept.
*/
func (d *DiskStore) Save(ctx context.Context, owner, name string, body io.Reader, limit int64) (int64, error) {
	path, err := d.path(owner, name)
	if err != nil {
		return 0, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return 0, errors.ErrPersistence.WithMessagef("failed to create owner directory: %v", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".upload-*")
	if err != nil {
		return 0, errors.ErrPersistence.WithMessagef("failed to create temp file: %v", err)
	}
	defer os.Remove(tmp.Name())

	reader := body
	if limit > 0 {
		// Read one byte past the limit so an exactly-at-limit body passes.
		reader = io.LimitReader(body, limit+1)
	}

	written, err := io.Copy(tmp, reader)
	if err != nil {
		tmp.Close()
		return 0, errors.ErrPersistence.WithMessagef("failed to write upload: %v", err)
	}
	if limit > 0 && written > limit {
		tmp.Close()
		return 0, errors.ErrTooLarge.WithMessagef("upload exceeds the %d byte limit", limit)
	}

	if err := tmp.Close(); err != nil {
		return 0, errors.ErrPersistence.WithMessagef("failed to close temp file: %v", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return 0, errors.ErrPersistence.WithMessagef("failed to finalize upload: %v", err)
	}

	return written, nil
}

func (d *DiskStore) Open(ctx context.Context, owner, name string) (io.ReadCloser, error) {
	path, err := d.path(owner, name)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.ErrNotFound.WithMessagef("file %s not found", name)
		}
		return nil, errors.ErrPersistence.WithMessagef("failed to open file: %v", err)
	}

	return f, nil
}

func (d *DiskStore) Remove(ctx context.Context, owner, name string) error {
	path, err := d.path(owner, name)
	if err != nil {
		return err
	}

	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			return errors.ErrNotFound.WithMessagef("file %s not found", name)
		}
		return errors.ErrPersistence.WithMessagef("failed to remove file: %v", err)
	}

	return nil
}

func (d *DiskStore) path(owner, name string) (string, error) {
	if err := validateComponent(owner); err != nil {
		return "", err
	}
	if err := validateComponent(name); err != nil {
		return "", err
	}
	return filepath.Join(d.baseDir, owner, name), nil
}

// validateComponent rejects anything that could escape the store
// directory or hide from a plain listing.
func validateComponent(s string) error {
	switch {
	case s == "" || s == "." || s == "..":
		return errors.ErrInvalidRequest.WithMessagef("invalid name %q", s)
	case strings.ContainsAny(s, "/\\"):
		return errors.ErrInvalidRequest.WithMessagef("invalid name %q", s)
	case !fs.ValidPath(s):
		return errors.ErrInvalidRequest.WithMessagef("invalid name %q", s)
	}
	return nil
}
