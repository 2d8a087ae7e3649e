package images

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/JonMunkholm/catalogue/internal/fsutil"
)

// FSStore writes images into a local directory.
type FSStore struct {
	dir       string
	urlPrefix string
}

// NewFS returns a store rooted at dir. Stored paths are urlPrefix + filename.
// The directory is created on first write if missing.
func NewFS(dir, urlPrefix string) *FSStore {
	return &FSStore{dir: dir, urlPrefix: urlPrefix}
}

// Dir returns the image directory.
func (s *FSStore) Dir() string { return s.dir }

// Driver implements Store.
func (s *FSStore) Driver() string { return DriverFS }

// Put implements Store. The file is replaced atomically.
func (s *FSStore) Put(ctx context.Context, filename string, r io.Reader, _ string) (Stored, error) {
	if err := ctx.Err(); err != nil {
		return Stored{}, err
	}
	if filepath.Base(filename) != filename {
		return Stored{}, fmt.Errorf("invalid image name %q", filename)
	}

	if _, err := os.Stat(s.dir); os.IsNotExist(err) {
		slog.Info("creating image directory", "dir", s.dir)
		if err := os.MkdirAll(s.dir, 0o755); err != nil {
			return Stored{}, fmt.Errorf("create image directory: %w", err)
		}
	}

	path := filepath.Join(s.dir, filename)
	if err := fsutil.WriteReader(path, r, 0o644); err != nil {
		return Stored{}, fmt.Errorf("write image %s: %w", filename, err)
	}
	return Stored{Filename: filename, Path: joinURL(s.urlPrefix, filename)}, nil
}
