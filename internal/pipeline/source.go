package pipeline

import "context"

// Source yields serialized input documents. Pop returns (nil, nil) when
// nothing arrived before its timeout and io.EOF once it is exhausted.
type Source interface {
	Pop(ctx context.Context) ([]byte, error)
	Close() error
}
