package filesystem

import (
	"context"
	"fmt"
	"os"
)

type FileSource struct {
	Path string
}

func NewFileSource(path string) *FileSource {
	return &FileSource{Path: path}
}

func (s *FileSource) Name() string {
	return "file:" + s.Path
}

// Load reads the whole file. A missing file is reported with an error
// matching os.ErrNotExist.
func (s *FileSource) Load(ctx context.Context) (string, error) {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		return "", fmt.Errorf("failed to read policy file %s: %w", s.Path, err)
	}
	return string(data), nil
}
