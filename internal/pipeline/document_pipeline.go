package pipeline

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"riskgraph/internal/logger"
	"riskgraph/pkg/models"
)

// Sinks groups the optional outputs of a pipeline. Nil members are skipped.
type Sinks struct {
	Documents  DocumentWriter
	Findings   RecordWriter[*models.RiskFinding]
	Alerts     RecordWriter[*models.RiskAlert]
	OwnerIndex OwnerIndexWriter
}

// Options controls the read/process/write loops.
type Options struct {
	Workers       int
	BatchSize     int
	FlushInterval time.Duration
	// RetryInterval is the wait between failed sink writes.
	RetryInterval time.Duration
}

// DocumentPipeline reads documents from a source, processes each one and
// hands the results to the sinks.
type DocumentPipeline struct {
	source    Source
	processor *Processor
	sinks     Sinks
	opts      Options

	mu     sync.Mutex
	stats  Stats
	onDone func(*Result)
}

// Stats counts documents seen by a pipeline run.
type Stats struct {
	Received  int
	Processed int
	Failed    int
	// ReadErrors counts failed source reads, including retried ones.
	ReadErrors int
}

// NewDocumentPipeline creates a pipeline.
func NewDocumentPipeline(source Source, processor *Processor, sinks Sinks, opts Options) *DocumentPipeline {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 1000
	}
	if opts.FlushInterval <= 0 {
		opts.FlushInterval = 2 * time.Second
	}
	if opts.RetryInterval <= 0 {
		opts.RetryInterval = time.Second
	}
	return &DocumentPipeline{source: source, processor: processor, sinks: sinks, opts: opts}
}

// OnResult registers a callback run by the writer after each document.
func (p *DocumentPipeline) OnResult(fn func(*Result)) {
	p.onDone = fn
}

// Stats returns the counters of the last run.
func (p *DocumentPipeline) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stats
}

// Run processes documents until the source is exhausted or ctx is done.
// Results already produced are written before Run returns.
func (p *DocumentPipeline) Run(ctx context.Context) error {
	logger.Infof("Document pipeline started (workers=%d)", p.opts.Workers)

	msgCh := make(chan []byte, p.opts.Workers*4)
	workCh := make(chan *Result, p.opts.Workers*4)

	var readWG sync.WaitGroup
	readWG.Add(1)
	go func() {
		defer readWG.Done()
		p.readLoop(ctx, msgCh)
		close(msgCh)
	}()

	var workWG sync.WaitGroup
	for i := 0; i < p.opts.Workers; i++ {
		workWG.Add(1)
		go func() {
			defer workWG.Done()
			p.workerLoop(ctx, msgCh, workCh)
		}()
	}

	writeDone := make(chan struct{})
	go func() {
		defer close(writeDone)
		p.writeLoop(ctx, workCh)
	}()

	workWG.Wait()
	close(workCh)
	<-writeDone
	readWG.Wait()

	stats := p.Stats()
	logger.Infof("Document pipeline finished: received=%d processed=%d failed=%d read_errors=%d",
		stats.Received, stats.Processed, stats.Failed, stats.ReadErrors)
	return ctx.Err()
}

// Close releases the sinks and the source.
func (p *DocumentPipeline) Close() error {
	closers := []struct {
		name string
		c    io.Closer
	}{
		{"alert writer", p.sinks.Alerts},
		{"finding writer", p.sinks.Findings},
		{"owner index", p.sinks.OwnerIndex},
		{"document writer", p.sinks.Documents},
	}
	for _, cl := range closers {
		if cl.c == nil {
			continue
		}
		if err := cl.c.Close(); err != nil {
			logger.Errorf("Failed to close %s: %v", cl.name, err)
		}
	}
	if p.source != nil {
		return p.source.Close()
	}
	return nil
}

func (p *DocumentPipeline) readLoop(ctx context.Context, out chan<- []byte) {
	for {
		payload, err := p.source.Pop(ctx)
		if errors.Is(err, io.EOF) {
			return
		}
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			p.count(func(s *Stats) { s.ReadErrors++ })
			logger.Errorf("Failed to read document: %v", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(500 * time.Millisecond):
			}
			continue
		}
		if payload == nil {
			if ctx.Err() != nil {
				return
			}
			continue
		}
		p.count(func(s *Stats) { s.Received++ })
		select {
		case out <- payload:
		case <-ctx.Done():
			return
		}
	}
}

func (p *DocumentPipeline) workerLoop(ctx context.Context, in <-chan []byte, out chan<- *Result) {
	for payload := range in {
		res, err := p.processor.Process(ctx, payload)
		if err != nil {
			p.count(func(s *Stats) { s.Failed++ })
			logger.Errorf("Failed to process document: %v", err)
			continue
		}
		p.count(func(s *Stats) { s.Processed++ })
		out <- res
	}
}

// writeLoop writes results until in is closed. Writes run on a context
// that survives cancellation of ctx, so results already produced get one
// attempt during shutdown; ctx only stops the retries.
func (p *DocumentPipeline) writeLoop(ctx context.Context, in <-chan *Result) {
	ticker := time.NewTicker(p.opts.FlushInterval)
	defer ticker.Stop()

	wctx := context.WithoutCancel(ctx)
	var batchFindings []*models.RiskFinding
	var batchAlerts []*models.RiskAlert

	flush := func() {
		if p.sinks.Findings != nil && len(batchFindings) > 0 {
			if p.retry(ctx, "findings", func() error { return p.sinks.Findings.Write(wctx, batchFindings) }) {
				batchFindings = nil
			}
		}
		if p.sinks.Alerts != nil && len(batchAlerts) > 0 {
			if p.retry(ctx, "alerts", func() error { return p.sinks.Alerts.Write(wctx, batchAlerts) }) {
				batchAlerts = nil
			}
		}
	}

	for {
		select {
		case <-ticker.C:
			flush()
		case res, ok := <-in:
			if !ok {
				flush()
				return
			}
			p.writeDocument(ctx, wctx, res)
			batchFindings = append(batchFindings, res.Findings...)
			batchAlerts = append(batchAlerts, res.Alerts...)
			if len(batchFindings)+len(batchAlerts) >= p.opts.BatchSize {
				flush()
			}
			if p.onDone != nil {
				p.onDone(res)
			}
		}
	}
}

func (p *DocumentPipeline) writeDocument(ctx, wctx context.Context, res *Result) {
	if p.sinks.Documents != nil {
		p.retry(ctx, "document", func() error { return p.sinks.Documents.WriteDocument(wctx, res.Output) })
	}
	if p.sinks.OwnerIndex != nil {
		p.retry(ctx, "owner index", func() error { return p.sinks.OwnerIndex.WriteRegistry(wctx, res.Document.Registry) })
	}
}

// retry calls write until it succeeds or ctx is done, and reports whether
// it succeeded.
func (p *DocumentPipeline) retry(ctx context.Context, what string, write func() error) bool {
	for {
		err := write()
		if err == nil {
			return true
		}
		logger.Errorf("Failed to write %s: %v", what, err)
		select {
		case <-ctx.Done():
			return false
		case <-time.After(p.opts.RetryInterval):
		}
	}
}

func (p *DocumentPipeline) count(fn func(*Stats)) {
	p.mu.Lock()
	fn(&p.stats)
	p.mu.Unlock()
}
