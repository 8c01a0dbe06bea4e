package manifest

import (
	"context"
	"path/filepath"

	"github.com/matzehuels/trussview/pkg/errors"
)

// Store persists manifests.
type Store interface {
	Save(ctx context.Context, m *Manifest) error
	// Load returns the manifest of a run; NOT_FOUND if unknown.
	Load(ctx context.Context, runID string) (*Manifest, error)
	// Latest returns the most recent manifest; NOT_FOUND if none.
	Latest(ctx context.Context) (*Manifest, error)
	Close(ctx context.Context) error
}

// FileStore keeps the manifest of the latest run in an output directory.
type FileStore struct {
	dir string
}

// NewFileStore returns a store rooted at the output directory dir.
func NewFileStore(dir string) *FileStore { return &FileStore{dir: dir} }

// Path returns the manifest path.
func (s *FileStore) Path() string { return filepath.Join(s.dir, Filename) }

func (s *FileStore) Save(ctx context.Context, m *Manifest) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return m.WriteFile(s.Path())
}

func (s *FileStore) Load(ctx context.Context, runID string) (*Manifest, error) {
	m, err := s.Latest(ctx)
	if err != nil {
		return nil, err
	}
	if m.RunID != runID {
		return nil, errors.New(errors.ErrCodeNotFound, "run %s not found in %s", runID, s.dir)
	}
	return m, nil
}

func (s *FileStore) Latest(ctx context.Context) (*Manifest, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m, err := ReadFile(s.Path())
	if errors.Is(err, errors.ErrCodeFileNotFound) {
		return nil, errors.Wrap(errors.ErrCodeNotFound, err, "no manifest in %s", s.dir)
	}
	return m, err
}

func (s *FileStore) Close(context.Context) error { return nil }

var _ Store = (*FileStore)(nil)
