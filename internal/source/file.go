package source

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/kiluadev/website/internal/security"
)

const maxContentSize = 10 * 1024 * 1024 // 10MB

// FileSource reads content from a directory on disk. Reads go through an
// os.Root so a content path can never leave the directory.
type FileSource struct {
	dir  string
	root *os.Root
}

// NewFileSource opens dir as a content root.
func NewFileSource(dir string) (*FileSource, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, &ValidationError{Source: "dir", Field: "dir", Reason: err.Error()}
	}
	root, err := os.OpenRoot(abs)
	if err != nil {
		return nil, &ValidationError{Source: "dir", Field: "dir", Reason: err.Error()}
	}
	return &FileSource{dir: abs, root: root}, nil
}

// Name returns the source identifier
func (s *FileSource) Name() string {
	return "dir"
}

// Dir returns the absolute content root.
func (s *FileSource) Dir() string {
	return s.dir
}

// Fetch reads the file at contentPath.
func (s *FileSource) Fetch(ctx context.Context, contentPath string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := security.ValidateContentPath(contentPath); err != nil {
		return "", &ValidationError{Source: s.Name(), Field: "path", Reason: err.Error()}
	}

	f, err := s.root.Open(filepath.FromSlash(contentPath))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", &NotFoundError{Source: s.Name(), Path: contentPath}
		}
		return "", &SourceError{Source: s.Name(), Operation: "open", Path: contentPath, Err: err}
	}
	defer f.Close()

	body, err := io.ReadAll(io.LimitReader(f, maxContentSize))
	if err != nil {
		return "", &SourceError{Source: s.Name(), Operation: "read", Path: contentPath, Err: err}
	}
	return string(body), nil
}

// Close releases the directory handle.
func (s *FileSource) Close() error {
	return s.root.Close()
}

func resolvePath(p, base string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(base, p)
}
