package corpus

import (
	"context"
	"errors"
	"io/fs"
	"os"

	"github.com/yourusername/poll-blend/internal/models"
)

// FileSource reads a CSV corpus from disk.
type FileSource struct {
	path   string
	format Format
}

// NewFileSource creates a file source.
func NewFileSource(path string, format Format) *FileSource {
	return &FileSource{path: path, format: format}
}

// Name returns the name of the source
func (s *FileSource) Name() string {
	return "file:" + s.path
}

// Load parses and validates the file.
func (s *FileSource) Load(ctx context.Context) ([]models.Observation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, newSourceError(s.Name(), ErrCodeNotFound, "corpus file does not exist", err)
		}
		return nil, newSourceError(s.Name(), ErrCodeNotFound, "failed to open corpus file", err)
	}
	defer f.Close()

	obs, err := Parse(f, s.format)
	if err != nil {
		return nil, newSourceError(s.Name(), ErrCodeInvalidData, "failed to parse corpus", err)
	}
	if err := Validate(obs); err != nil {
		return nil, newSourceError(s.Name(), ErrCodeInvalidData, "corpus failed validation", err)
	}
	return obs, nil
}
