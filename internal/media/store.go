// Package media stores uploaded sources and generated audio and handles
// their periodic cleanup. Objects are addressed by opaque IDs that carry
// an extension (e.g. "3f2a….wav") so content types can be derived on
// serving.
package media

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned when no object exists under the requested ID.
var ErrNotFound = errors.New("media not found")

// Store is the persistence surface for media objects.
type Store interface {
	// Put stores data under id, overwriting any previous object.
	Put(ctx context.Context, id string, data []byte) error

	// Get returns the object's content.
	Get(ctx context.Context, id string) ([]byte, error)

	// Exists reports whether an object is stored under id without
	// fetching its content.
	Exists(ctx context.Context, id string) (bool, error)

	// Delete removes the object. Deleting a missing object is not an error.
	Delete(ctx context.Context, id string) error

	// DeleteOlderThan removes objects last modified before cutoff and
	// returns how many were removed.
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int, error)
}

// NewID returns a fresh object ID with the given extension.
func NewID(ext string) string {
	return uuid.NewString() + ext
}

// ContentType maps an object ID's extension to a MIME type for serving.
func ContentType(id string) string {
	switch strings.ToLower(filepath.Ext(id)) {
	case ".wav":
		return "audio/wav"
	case ".csv":
		return "text/csv"
	case ".txt":
		return "text/plain"
	case ".json":
		return "application/json"
	default:
		return "application/octet-stream"
	}
}

// FSStore keeps media objects as flat files in a single directory.
type FSStore struct {
	dir string
}

// NewFSStore creates the backing directory if needed.
func NewFSStore(dir string) (*FSStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("media directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create media directory: %w", err)
	}
	return &FSStore{dir: dir}, nil
}

// Dir returns the backing directory.
func (s *FSStore) Dir() string {
	return s.dir
}

func (s *FSStore) path(id string) (string, error) {
	// Object IDs are generated, never user input, but keep path traversal
	// impossible anyway.
	if id == "" || id != filepath.Base(id) {
		return "", fmt.Errorf("invalid media id: %q", id)
	}
	return filepath.Join(s.dir, id), nil
}

func (s *FSStore) Put(ctx context.Context, id string, data []byte) error {
	p, err := s.path(id)
	if err != nil {
		return err
	}
	if err := os.WriteFile(p, data, 0o644); err != nil {
		return fmt.Errorf("store media %s: %w", id, err)
	}
	return nil
}

func (s *FSStore) Get(ctx context.Context, id string) ([]byte, error) {
	p, err := s.path(id)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(p)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("read media %s: %w", id, err)
	}
	return data, nil
}

func (s *FSStore) Exists(ctx context.Context, id string) (bool, error) {
	p, err := s.path(id)
	if err != nil {
		return false, err
	}
	_, err = os.Stat(p)
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("stat media %s: %w", id, err)
	}
	return true, nil
}

func (s *FSStore) Delete(ctx context.Context, id string) error {
	p, err := s.path(id)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("delete media %s: %w", id, err)
	}
	return nil
}

func (s *FSStore) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return 0, fmt.Errorf("scan media directory: %w", err)
	}

	removed := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if ctx.Err() != nil {
			return removed, ctx.Err()
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			if err := os.Remove(filepath.Join(s.dir, entry.Name())); err == nil {
				removed++
			}
		}
	}
	return removed, nil
}
