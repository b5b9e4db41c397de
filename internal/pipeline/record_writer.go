package pipeline

import "context"

// RecordWriter writes batches of findings or alerts.
type RecordWriter[T any] interface {
	Write(ctx context.Context, records []T) error
	Close() error
}
