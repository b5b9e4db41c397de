package pipeline

import "context"

// DocumentWriter stores a serialized output document.
type DocumentWriter interface {
	WriteDocument(ctx context.Context, data []byte) error
	Close() error
}
