// Package jsonl appends records to a JSON lines file.
package jsonl

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"riskgraph/internal/logger"
)

// Writer appends batches of T to a file, one JSON object per line. A batch
// is flushed as a whole; a failed batch leaves earlier lines intact.
type Writer[T any] struct {
	name string
	path string

	mu   sync.Mutex
	file *os.File
	buf  *bufio.Writer
}

// NewWriter opens path for appending. name labels the records in logs and
// errors.
func NewWriter[T any](path, name string) (*Writer[T], error) {
	if path == "" {
		return nil, fmt.Errorf("%s output path is empty", name)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create %s output directory: %w", name, err)
		}
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s output file: %w", name, err)
	}

	logger.Infof("JSONL %s writer initialized: %s", name, path)
	return &Writer[T]{name: name, path: path, file: f, buf: bufio.NewWriter(f)}, nil
}

// Write appends records. Nothing is written once ctx is done.
func (w *Writer[T]) Write(ctx context.Context, records []T) error {
	if len(records) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	lines := make([][]byte, 0, len(records))
	for _, r := range records {
		line, err := json.Marshal(r)
		if err != nil {
			return fmt.Errorf("failed to encode %s: %w", w.name, err)
		}
		lines = append(lines, line)
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.file == nil {
		return fmt.Errorf("%s writer for %s is closed", w.name, w.path)
	}
	for _, line := range lines {
		w.buf.Write(line)
		w.buf.WriteByte('\n')
	}
	if err := w.buf.Flush(); err != nil {
		return fmt.Errorf("failed to write %s: %w", w.name, err)
	}
	return nil
}

// Close closes the file. Closing twice is a no-op.
func (w *Writer[T]) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.file == nil {
		return nil
	}
	err := w.buf.Flush()
	if cerr := w.file.Close(); err == nil {
		err = cerr
	}
	w.file = nil
	return err
}
