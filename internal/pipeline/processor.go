package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"riskgraph/internal/alerts"
	"riskgraph/internal/codec"
	"riskgraph/internal/graph/assemble"
	"riskgraph/internal/graph/ingest"
	"riskgraph/internal/graph/propagate"
	"riskgraph/internal/graph/registry"
	"riskgraph/internal/logger"
	"riskgraph/internal/metrics"
	"riskgraph/internal/rules"
	"riskgraph/pkg/models"
)

// documentNamespace scopes the name-based ids of input documents.
var documentNamespace = uuid.MustParse("5d1c0a3e-2f7b-4c55-9a40-7f3e2d9b6c11")

// DocumentID derives a stable id from the serialized input.
func DocumentID(data []byte) string {
	return uuid.NewSHA1(documentNamespace, data).String()
}

// Config controls how one document is processed.
type Config struct {
	Ingest   ingest.Options
	Assemble assemble.Options
	// Indent pretty-prints the output document when non-empty.
	Indent string
	// Language selects the localized names used in findings and alerts.
	Language int
}

// Result is everything produced from one input document.
type Result struct {
	Document    *ingest.Document
	Propagation propagate.Result
	Envelope    *assemble.Envelope
	Output      []byte
	Findings    []*models.RiskFinding
	Alerts      []*models.RiskAlert
}

// Processor runs ingest, propagate, rules, alerts and reassembly over a
// serialized document.
type Processor struct {
	cfg       Config
	engine    rules.Engine
	scorer    *alerts.Scorer
	assembler *assemble.Assembler
	metrics   *metrics.Metrics
	tracer    trace.Tracer
}

// NewProcessor creates a processor. engine, scorer and m may be nil.
func NewProcessor(cfg Config, engine rules.Engine, scorer *alerts.Scorer, m *metrics.Metrics) *Processor {
	return &Processor{
		cfg:       cfg,
		engine:    engine,
		scorer:    scorer,
		assembler: assemble.NewAssembler(cfg.Assemble),
		metrics:   m,
		tracer:    otel.Tracer("riskgraph/pipeline"),
	}
}

// Process handles one document. A codec or strict-mode ingestion error
// aborts with no partial output.
func (p *Processor) Process(ctx context.Context, data []byte) (*Result, error) {
	ctx, span := p.tracer.Start(ctx, "Process", trace.WithAttributes(
		attribute.Int("input_bytes", len(data)),
	))
	defer span.End()

	res, err := p.process(ctx, data)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		p.metrics.Document("failed")
		return nil, err
	}
	span.SetAttributes(
		attribute.Int("nodes", res.Document.Report.Nodes),
		attribute.Int("findings", len(res.Findings)),
		attribute.Int("alerts", len(res.Alerts)),
	)
	p.metrics.Document("ok")
	return res, nil
}

func (p *Processor) process(ctx context.Context, data []byte) (*Result, error) {
	doc, err := p.ingest(ctx, data)
	if err != nil {
		return nil, err
	}
	return p.finish(ctx, doc)
}

// Finish runs the stages after ingestion on an already loaded document,
// typically one changed through the mutation API.
func (p *Processor) Finish(ctx context.Context, doc *ingest.Document) (*Result, error) {
	ctx, span := p.tracer.Start(ctx, "Finish")
	defer span.End()

	res, err := p.finish(ctx, doc)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return res, nil
}

func (p *Processor) finish(ctx context.Context, doc *ingest.Document) (*Result, error) {
	res := &Result{Document: doc}

	p.stage(ctx, "propagate", func(span trace.Span) {
		res.Propagation = propagate.Run(doc.Registry)
		span.SetAttributes(
			attribute.Int("visited", res.Propagation.Visited),
			attribute.Int("risks_updated", res.Propagation.RisksUpdated),
			attribute.Int("orphans", len(res.Propagation.Orphans)),
		)
	})
	p.metrics.RisksUpdated(res.Propagation.RisksUpdated)
	p.metrics.Orphans(len(res.Propagation.Orphans))

	var events []*rules.RiskEvent
	if p.engine != nil || p.scorer != nil {
		events = rules.Events(doc.Registry, p.cfg.Language)
	}
	if p.engine != nil {
		p.stage(ctx, "rules", func(span trace.Span) {
			res.Findings = rules.Evaluate(p.engine, events)
			span.SetAttributes(attribute.Int("events", len(events)))
		})
		for _, f := range res.Findings {
			f.DocumentID = doc.ID
			p.metrics.Finding(f.Severity)
		}
	}
	if p.scorer != nil {
		p.stage(ctx, "alerts", func(trace.Span) {
			res.Alerts = p.scorer.Score(events, res.Findings, doc.Threshold())
		})
		for _, a := range res.Alerts {
			a.DocumentID = doc.ID
			p.metrics.Alert(a.Level)
		}
	}

	p.stage(ctx, "assemble", func(trace.Span) {
		res.Envelope = p.assembler.Assemble(doc)
	})

	var encErr error
	p.stage(ctx, "encode", func(span trace.Span) {
		if p.cfg.Indent != "" {
			res.Output, encErr = codec.EncodeIndent(res.Envelope, p.cfg.Indent)
		} else {
			res.Output, encErr = codec.Encode(res.Envelope)
		}
		if encErr != nil {
			span.RecordError(encErr)
			span.SetStatus(codes.Error, encErr.Error())
		}
	})
	if encErr != nil {
		return nil, fmt.Errorf("failed to encode document: %w", encErr)
	}
	return res, nil
}

// Load decodes and ingests data without running the later stages.
func (p *Processor) Load(ctx context.Context, data []byte) (*ingest.Document, error) {
	return p.ingest(ctx, data)
}

func (p *Processor) ingest(ctx context.Context, data []byte) (*ingest.Document, error) {
	_, span := p.tracer.Start(ctx, "ingest")
	defer span.End()
	defer p.metrics.ObserveStage("ingest", time.Now())

	root, err := codec.DecodeObject(data)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to decode document: %w", err)
	}

	loader := ingest.NewLoader(p.cfg.Ingest)
	loader.Registry().OnConflict(func(c registry.Conflict) {
		logger.Warnf("Conflicting %s %s seen on instance %d, keeping first sighting", c.Kind, c.ID, c.Owner)
		p.metrics.Conflict(string(c.Kind))
	})

	doc, err := loader.Load(root)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to ingest document: %w", err)
	}
	doc.ID = DocumentID(data)

	p.metrics.NodesIngested(doc.Report.Nodes)
	p.metrics.SubtreesDropped(len(doc.Report.Dropped))
	for _, pool := range doc.Registry.Pools() {
		p.metrics.Entities(string(pool.Kind()), pool.Len())
	}
	p.metrics.Entities(string(models.KindNode), doc.Registry.Nodes.Len())

	span.SetAttributes(
		attribute.String("document_id", doc.ID),
		attribute.Int("nodes", doc.Report.Nodes),
		attribute.Int("dropped", len(doc.Report.Dropped)),
		attribute.Int("conflicts", len(doc.Registry.Conflicts())),
	)
	logger.Debugf("Ingested %d instances (%d dropped, %d pending recommendations collapsed)",
		doc.Report.Nodes, len(doc.Report.Dropped), doc.Report.PendingCollapsed)
	return doc, nil
}

func (p *Processor) stage(ctx context.Context, name string, fn func(trace.Span)) {
	_, span := p.tracer.Start(ctx, name)
	defer span.End()
	defer p.metrics.ObserveStage(name, time.Now())
	fn(span)
}
