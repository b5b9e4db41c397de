// Package file reads a single serialized document from disk or stdin.
package file

import (
	"context"
	"fmt"
	"io"
	"os"
)

// Source yields the content of one file, then io.EOF.
type Source struct {
	path string
	r    io.Reader
	done bool
}

// NewSource creates a source for path. "-" reads standard input.
func NewSource(path string) (*Source, error) {
	if path == "" {
		return nil, fmt.Errorf("input file path is empty")
	}
	if path == "-" {
		return &Source{path: path, r: os.Stdin}, nil
	}
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("failed to stat input file: %w", err)
	}
	return &Source{path: path}, nil
}

// NewReaderSource wraps an already open reader.
func NewReaderSource(r io.Reader) *Source {
	return &Source{path: "-", r: r}
}

// Pop returns the whole document on the first call and io.EOF afterwards.
func (s *Source) Pop(ctx context.Context) ([]byte, error) {
	if s.done {
		return nil, io.EOF
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.done = true
	if s.r != nil {
		data, err := io.ReadAll(s.r)
		if err != nil {
			return nil, fmt.Errorf("failed to read input: %w", err)
		}
		return data, nil
	}
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read input file: %w", err)
	}
	return data, nil
}

// Close is a no-op; the file is read in one call.
func (s *Source) Close() error {
	return nil
}
