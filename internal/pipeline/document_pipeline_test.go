package pipeline

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"riskgraph/internal/graph/registry"
	"riskgraph/pkg/models"
)

type sliceSource struct {
	docs   [][]byte
	closed bool
}

func (s *sliceSource) Pop(ctx context.Context) ([]byte, error) {
	if len(s.docs) == 0 {
		return nil, io.EOF
	}
	doc := s.docs[0]
	s.docs = s.docs[1:]
	return doc, nil
}

func (s *sliceSource) Close() error {
	s.closed = true
	return nil
}

type memorySink struct {
	mu        sync.Mutex
	documents [][]byte
	indexed   int
	failOnce  bool
	closed    int
}

type recordSink[T any] struct {
	mu      sync.Mutex
	records []T
	closed  int
}

func (s *recordSink[T]) Write(_ context.Context, records []T) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, records...)
	return nil
}

func (s *recordSink[T]) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed++
	return nil
}

func (m *memorySink) WriteDocument(_ context.Context, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failOnce {
		m.failOnce = false
		return assert.AnError
	}
	m.documents = append(m.documents, data)
	return nil
}

func (m *memorySink) WriteRegistry(_ context.Context, reg *registry.Registry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.indexed += reg.Nodes.Len()
	return nil
}

func (m *memorySink) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed++
	return nil
}

func TestDocumentPipelineDrainsSource(t *testing.T) {
	p, _ := newProcessor(t, true)
	src := &sliceSource{docs: [][]byte{[]byte(anr), []byte(`not json`), []byte(anr)}}
	sink := &memorySink{failOnce: true}
	findings := &recordSink[*models.RiskFinding]{}
	alerts := &recordSink[*models.RiskAlert]{}

	pipe := NewDocumentPipeline(src, p, Sinks{
		Documents:  sink,
		Findings:   findings,
		Alerts:     alerts,
		OwnerIndex: sink,
	}, Options{Workers: 2, RetryInterval: time.Millisecond})

	var seen int
	pipe.OnResult(func(*Result) { seen++ })

	require.NoError(t, pipe.Run(context.Background()))
	require.NoError(t, pipe.Close())

	assert.Equal(t, Stats{Received: 3, Processed: 2, Failed: 1}, pipe.Stats())
	assert.Equal(t, 2, seen)
	assert.Len(t, sink.documents, 2)
	require.Len(t, findings.records, 2)
	require.Len(t, alerts.records, 2)
	assert.Equal(t, DocumentID([]byte(anr)), findings.records[0].DocumentID)
	assert.Equal(t, DocumentID([]byte(anr)), alerts.records[1].DocumentID)
	assert.Equal(t, 6, sink.indexed)
	assert.Equal(t, 2, sink.closed)
	assert.Equal(t, 1, findings.closed)
	assert.Equal(t, 1, alerts.closed)
	assert.True(t, src.closed)
}

func TestDocumentPipelineStopsOnCancel(t *testing.T) {
	p, _ := newProcessor(t, false)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	pipe := NewDocumentPipeline(blockingSource{}, p, Sinks{}, Options{})
	assert.ErrorIs(t, pipe.Run(ctx), context.Canceled)
	assert.NoError(t, pipe.Close())
}

type blockingSource struct{}

func (blockingSource) Pop(ctx context.Context) ([]byte, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func (blockingSource) Close() error { return nil }

// flakySource fails its first read, then yields its documents.
type flakySource struct {
	sliceSource
	failed bool
}

func (s *flakySource) Pop(ctx context.Context) ([]byte, error) {
	if !s.failed {
		s.failed = true
		return nil, assert.AnError
	}
	return s.sliceSource.Pop(ctx)
}

func TestDocumentPipelineRetriesFailedRead(t *testing.T) {
	p, _ := newProcessor(t, false)
	src := &flakySource{sliceSource: sliceSource{docs: [][]byte{[]byte(anr)}}}
	sink := &memorySink{}

	pipe := NewDocumentPipeline(src, p, Sinks{Documents: sink}, Options{})
	require.NoError(t, pipe.Run(context.Background()))

	assert.Equal(t, Stats{Received: 1, Processed: 1, ReadErrors: 1}, pipe.Stats())
	assert.Len(t, sink.documents, 1)
}
