//go:build !windows

package playlist

import (
	"fmt"

	"github.com/google/renameio/v2"
)

// FileSink writes the document to a fixed path
type FileSink struct {
	Path string
}

// NewFileSink returns a sink writing to path
func NewFileSink(path string) *FileSink {
	return &FileSink{Path: path}
}

// Write replaces the file at Path with doc in one atomic step
func (s *FileSink) Write(doc *Document) error {
	pendingFile, err := renameio.NewPendingFile(s.Path, renameio.WithPermissions(0o644))
	if err != nil {
		return fmt.Errorf("create pending playlist file: %w", err)
	}
	// no-op once committed
	defer pendingFile.Cleanup()

	if _, err := doc.WriteTo(pendingFile); err != nil {
		return fmt.Errorf("write playlist data: %w", err)
	}

	if err := pendingFile.CloseAtomicallyReplace(); err != nil {
		return fmt.Errorf("atomically replace playlist file: %w", err)
	}
	return nil
}
