package source

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	apperrors "github.com/Aman-CERP/userindex/internal/errors"
)

// FileSource reads the document from a local JSON file.
type FileSource struct {
	path string
}

var _ Source = (*FileSource)(nil)

// NewFileSource creates a source reading path on every Fetch.
func NewFileSource(path string) *FileSource {
	return &FileSource{path: path}
}

// Path returns the file being read.
func (s *FileSource) Path() string {
	return s.path
}

// Location implements Source.
func (s *FileSource) Location() string {
	return "file://" + s.path
}

// Fetch implements Source. A missing or unreadable file is not retried.
func (s *FileSource) Fetch(ctx context.Context) (Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f, err := os.Open(s.path)
	if err != nil {
		switch {
		case errors.Is(err, fs.ErrNotExist):
			return nil, apperrors.New(apperrors.ErrCodeFileNotFound,
				fmt.Sprintf("source file %s does not exist", s.path), err)
		case errors.Is(err, fs.ErrPermission):
			return nil, apperrors.New(apperrors.ErrCodeFilePermission,
				fmt.Sprintf("cannot read source file %s", s.path), err)
		default:
			return nil, apperrors.SourceUnavailable(fmt.Sprintf("failed to open %s", s.path), err)
		}
	}
	defer func() { _ = f.Close() }()

	return decode(f, s.Location())
}
