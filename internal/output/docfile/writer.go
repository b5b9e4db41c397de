// Package docfile writes output documents to the local filesystem.
package docfile

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"riskgraph/internal/logger"
)

// Writer replaces a file with each document it receives. The file is
// written to a temporary sibling first and renamed into place.
type Writer struct {
	path string
	mu   sync.Mutex
}

// NewWriter creates a document writer for path.
func NewWriter(path string) (*Writer, error) {
	if path == "" {
		return nil, fmt.Errorf("output file path is empty")
	}
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create output directory: %w", err)
		}
	}
	logger.Infof("Document file writer initialized: %s", path)
	return &Writer{path: path}, nil
}

// WriteDocument stores data, replacing any previous document.
func (w *Writer) WriteDocument(_ context.Context, data []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	tmp, err := os.CreateTemp(filepath.Dir(w.path), "."+filepath.Base(w.path)+".*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write document: %w", err)
	}
	if len(data) > 0 && data[len(data)-1] != '\n' {
		if _, err := tmp.Write([]byte{'\n'}); err != nil {
			tmp.Close()
			return fmt.Errorf("failed to write document: %w", err)
		}
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), w.path); err != nil {
		return fmt.Errorf("failed to replace output file: %w", err)
	}
	return nil
}

// Close is a no-op; every write is complete on return.
func (w *Writer) Close() error {
	return nil
}
