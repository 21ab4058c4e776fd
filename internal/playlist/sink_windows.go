//go:build windows

package playlist

import (
	"fmt"
	"os"
	"path/filepath"
)

// FileSink writes the document to a fixed path
type FileSink struct {
	Path string
}

// NewFileSink returns a sink writing to path
func NewFileSink(path string) *FileSink {
	return &FileSink{Path: path}
}

// Write replaces the file at Path with doc using a temp file and rename
func (s *FileSink) Write(doc *Document) error {
	tmpFile, err := os.CreateTemp(filepath.Dir(s.Path), ".catcast-m3u-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp playlist file: %w", err)
	}
	tmpPath := tmpFile.Name()
	defer os.Remove(tmpPath)

	if _, err := doc.WriteTo(tmpFile); err != nil {
		tmpFile.Close()
		return fmt.Errorf("write playlist data: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("close temp playlist file: %w", err)
	}
	if err := os.Rename(tmpPath, s.Path); err != nil {
		return fmt.Errorf("replace playlist file: %w", err)
	}
	return nil
}
