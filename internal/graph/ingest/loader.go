// Package ingest flattens a decoded MONARC export into a registry: every
// nested entity is registered once and tagged with the nodes that carry it.
package ingest

import (
	"errors"
	"fmt"

	"riskgraph/internal/codec"
	"riskgraph/internal/graph/recommend"
	"riskgraph/internal/graph/registry"
	"riskgraph/internal/logger"
	"riskgraph/pkg/models"
)

// PassThroughSections are top-level sections carried to the output unchanged.
var PassThroughSections = []string{
	"anrMetadatasOnInstances",
	"measuresMeasures",
	"operationalRiskScales",
	"scales",
	"scalesComments",
	"soaScaleComment",
	"soacategories",
	"soas",
}

// Default method thresholds.
const (
	DefaultSeuil1 = 4
	DefaultSeuil2 = 8
)

// Options controls ingestion.
type Options struct {
	// Strict aborts the whole load on the first malformed instance instead
	// of skipping its subtree.
	Strict bool
}

// Report summarizes one load.
type Report struct {
	Nodes            int
	Dropped          []*NodeError
	PendingCollapsed int
}

// Document is a loaded export: the registry plus what is carried through.
type Document struct {
	// ID identifies the serialized input; empty when loaded from a tree.
	ID         string
	Registry   *registry.Registry
	Roots      []*models.Node
	Method     codec.Object
	Thresholds map[string]int
	Sections   map[string]interface{}
	Report     Report
}

// Threshold returns the method thresholds used for risk levels.
func (d *Document) Threshold() models.Threshold {
	return models.Threshold{Low: d.Thresholds["seuil1"], High: d.Thresholds["seuil2"]}
}

// Loader ingests one document.
type Loader struct {
	opts    Options
	reg     *registry.Registry
	merger  *recommend.Merger
	visited map[int]struct{}
	report  Report
}

// NewLoader returns a loader.
func NewLoader(opts Options) *Loader {
	reg := registry.New()
	return &Loader{
		opts:    opts,
		reg:     reg,
		merger:  recommend.NewMerger(reg),
		visited: make(map[int]struct{}),
	}
}

// Registry returns the registry being filled.
func (l *Loader) Registry() *registry.Registry { return l.reg }

// LoadBytes decodes and ingests a serialized document.
func LoadBytes(data []byte, opts Options) (*Document, error) {
	root, err := codec.DecodeObject(data)
	if err != nil {
		return nil, err
	}
	return NewLoader(opts).Load(root)
}

// Load ingests a decoded document. Referentials and document-level
// measures are read before any instance so that node-level measures
// resolve against them.
func (l *Loader) Load(root codec.Object) (*Document, error) {
	doc := &Document{
		Registry:   l.reg,
		Thresholds: map[string]int{"seuil1": DefaultSeuil1, "seuil2": DefaultSeuil2},
		Sections:   make(map[string]interface{}),
	}

	if err := l.loadReferentials(root); err != nil {
		return nil, err
	}
	if err := l.loadCatalogMeasures(root); err != nil {
		return nil, err
	}
	if err := l.loadMethod(root, doc); err != nil {
		return nil, err
	}
	for _, name := range PassThroughSections {
		if v, ok := root[name]; ok {
			doc.Sections[name] = v
		}
	}

	if instances, ok := codec.Container(root, "instances"); ok {
		for _, key := range codec.SortedKeys(instances) {
			node, err := l.loadNode(key, instances[key])
			if err != nil {
				if l.opts.Strict {
					return nil, err
				}
				continue
			}
			doc.Roots = append(doc.Roots, node)
		}
	}

	l.report.PendingCollapsed = l.merger.Finalize()
	doc.Report = l.report
	return doc, nil
}

func (l *Loader) loadReferentials(root codec.Object) error {
	refs, ok := codec.Container(root, "referentials")
	if !ok {
		return nil
	}
	for _, key := range codec.SortedKeys(refs) {
		obj, err := entryObject("referentials."+key, refs[key])
		if err != nil {
			return fmt.Errorf("failed to load referentials: %w", err)
		}
		ref, err := parseReferential("referentials."+key, obj)
		if err != nil {
			return fmt.Errorf("failed to load referentials: %w", err)
		}
		l.reg.Referentials.Register(ref.id, ref.fp, func() *models.Referential { return ref.value })
	}
	return nil
}

func (l *Loader) loadCatalogMeasures(root codec.Object) error {
	measures, ok := codec.Container(root, "measures")
	if !ok {
		return nil
	}
	for _, key := range codec.SortedKeys(measures) {
		m, err := parseCatalogMeasure(key, measures[key])
		if err != nil {
			return fmt.Errorf("failed to load measures: %w", err)
		}
		l.reg.CatalogMeasures.Register(m.id, m.fp, func() *models.CatalogMeasure { return m.value })
	}
	return nil
}

func (l *Loader) loadMethod(root codec.Object, doc *Document) error {
	method, ok := codec.Container(root, "method")
	if !ok {
		return nil
	}
	doc.Method = method
	if thresholds, ok := codec.Container(method, "thresholds"); ok {
		for _, key := range codec.SortedKeys(thresholds) {
			if v, ok := codec.Int(thresholds, key); ok {
				doc.Thresholds[key] = v
			}
		}
	}
	threats, ok := codec.Container(method, "threats")
	if !ok {
		return nil
	}
	for _, key := range codec.SortedKeys(threats) {
		th, err := parseMethodThreat(key, threats[key])
		if err != nil {
			return fmt.Errorf("failed to load method: %w", err)
		}
		l.reg.MethodThreats.Register(th.id, th.fp, func() *models.MethodThreat { return th.value })
	}
	return nil
}

// loadNode parses, validates and commits one instance entry, then recurses
// into its children. A malformed entry leaves the registry untouched.
func (l *Loader) loadNode(key string, raw interface{}) (*models.Node, error) {
	b, err := l.parseNode(key, raw)
	if err != nil {
		var nodeErr *NodeError
		if !errors.As(err, &nodeErr) {
			nodeErr = &NodeError{Key: key, Err: err}
		}
		l.report.Dropped = append(l.report.Dropped, nodeErr)
		logger.Warnf("Skipping malformed instance subtree: %v", nodeErr)
		return nil, nodeErr
	}
	l.commit(b)

	for _, childKey := range b.childKeys {
		child, err := l.loadNode(childKey, b.children[childKey])
		if err != nil {
			if l.opts.Strict {
				return nil, err
			}
			continue
		}
		b.node.Children = append(b.node.Children, child)
	}
	return b.node, nil
}

type nodeBatch struct {
	node      *models.Node
	risks     []staged[*models.Risk]
	vuls      []staged[*models.Vulnerability]
	threats   []staged[*models.Threat]
	links     []staged[*models.Link]
	measures  []nodeMeasure
	recSets   []staged[*models.RecommendationSet]
	recs      []pendingSighting
	recos     []resolvedSighting
	object    nodeObject
	childKeys []string
	children  codec.Object
}

type pendingSighting struct {
	rec *models.Recommendation
	fp  string
}

type resolvedSighting struct {
	riskID       int
	rec          *models.Recommendation
	commentAfter string
}

func (l *Loader) parseNode(key string, raw interface{}) (*nodeBatch, error) {
	entry, ok := codec.AsObject(raw)
	if !ok {
		return nil, &NodeError{Key: key, Err: ErrNotObject}
	}
	attrs, ok := codec.Container(entry, "instance")
	if !ok {
		return nil, &NodeError{Key: key, Field: "instance", Err: ErrMissingField}
	}
	node, err := parseNodeAttributes(key, attrs)
	if err != nil {
		return nil, wrapNodeError(key, 0, err)
	}
	if _, seen := l.visited[node.ID]; seen {
		return nil, &NodeError{Key: key, NodeID: node.ID, Err: ErrDuplicateNode}
	}

	b := &nodeBatch{node: node}
	fail := func(err error) (*nodeBatch, error) { return nil, wrapNodeError(key, node.ID, err) }

	if node.Consequences, err = parseConsequences(entry); err != nil {
		return fail(err)
	}
	if b.risks, err = parseEach(entry, "risks", parseRisk); err != nil {
		return fail(err)
	}
	if b.vuls, err = parseEach(entry, "vuls", parseVulnerability); err != nil {
		return fail(err)
	}
	if b.threats, err = parseEach(entry, "threats", parseThreat); err != nil {
		return fail(err)
	}
	if b.links, err = parseEach(entry, "amvs", parseLink); err != nil {
		return fail(err)
	}
	if b.measures, err = parseEach(entry, "measures", parseMeasure); err != nil {
		return fail(err)
	}
	if b.recSets, err = parseEach(entry, "recSets", parseRecommendationSet); err != nil {
		return fail(err)
	}
	if b.object, err = parseObjectBlock(entry); err != nil {
		return fail(err)
	}

	if recs, ok := codec.Container(entry, "recs"); ok {
		for _, k := range codec.SortedKeys(recs) {
			rec, obj, err := parseRecommendation("recs."+k, recs[k])
			if err != nil {
				return fail(err)
			}
			b.recs = append(b.recs, pendingSighting{rec: rec, fp: codec.Fingerprint(obj)})
		}
	}
	if recos, ok := codec.Container(entry, "recos"); ok {
		for _, riskKey := range codec.SortedKeys(recos) {
			riskID, ok := codec.ToInt(riskKey)
			if !ok {
				return fail(&fieldError{field: "recos." + riskKey, err: fmt.Errorf("risk id is not an integer")})
			}
			perRisk, ok := codec.Container(recos, riskKey)
			if !ok {
				continue
			}
			for _, k := range codec.SortedKeys(perRisk) {
				rec, obj, err := parseRecommendation("recos."+riskKey+"."+k, perRisk[k])
				if err != nil {
					return fail(err)
				}
				b.recos = append(b.recos, resolvedSighting{
					riskID:       riskID,
					rec:          rec,
					commentAfter: codec.String(obj, "commentAfter"),
				})
			}
		}
	}

	if children, ok := codec.Container(entry, "children"); ok {
		b.children = children
		b.childKeys = codec.SortedKeys(children)
	}
	return b, nil
}

func wrapNodeError(key string, id int, err error) error {
	var fe *fieldError
	if errors.As(err, &fe) {
		return &NodeError{Key: key, NodeID: id, Field: fe.field, Err: fe.err}
	}
	return &NodeError{Key: key, NodeID: id, Err: err}
}

func parseEach[T any](entry codec.Object, section string, parse func(string, interface{}) (T, error)) ([]T, error) {
	container, ok := codec.Container(entry, section)
	if !ok {
		return nil, nil
	}
	out := make([]T, 0, len(container))
	for _, key := range codec.SortedKeys(container) {
		v, err := parse(key, container[key])
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// attach registers s under owner and records the reference on the node the
// first time the node owns it.
func attach[T any](pool *registry.Pool[T], node *models.Node, s staged[T]) T {
	already := pool.HasOwner(s.id, node.ID)
	v, _ := pool.GetOrCreate(s.id, node.ID, s.fp, func() T { return s.value })
	if !already {
		node.Attach(pool.Kind(), s.id)
	}
	return v
}

// catalogReferential finds the registered referential of a catalog measure
// and makes node one of its owners.
func (l *Loader) catalogReferential(node *models.Node, measureID string) (*models.Referential, bool) {
	cm, ok := l.reg.CatalogMeasures.Get(measureID)
	if !ok || cm.Referential == "" {
		return nil, false
	}
	ref, ok := l.reg.Referentials.Get(cm.Referential)
	if !ok {
		return nil, false
	}
	if !l.reg.Referentials.HasOwner(cm.Referential, node.ID) {
		l.reg.Referentials.AddOwner(cm.Referential, node.ID)
		node.Attach(models.KindReferential, cm.Referential)
	}
	return ref, true
}

func (l *Loader) commit(b *nodeBatch) {
	node := b.node
	l.visited[node.ID] = struct{}{}
	l.reg.Nodes.Register(registry.NodeKey(node.ID), "", func() *models.Node { return node })
	l.report.Nodes++

	for _, s := range b.risks {
		attach(l.reg.Risks, node, s)
	}
	for _, s := range b.vuls {
		attach(l.reg.Vulnerabilities, node, s)
	}
	for _, s := range b.threats {
		attach(l.reg.Threats, node, s)
	}
	for _, s := range b.links {
		attach(l.reg.Links, node, s)
	}
	for _, nm := range b.measures {
		if nm.referential != nil {
			ref := attach(l.reg.Referentials, node, *nm.referential)
			nm.measure.value.Referential = ref
		} else if ref, ok := l.catalogReferential(node, nm.measure.id); ok {
			nm.measure.value.Referential = ref
		}
		attach(l.reg.Measures, node, nm.measure)
	}
	for _, s := range b.recSets {
		attach(l.reg.RecommendationSets, node, s)
	}
	if b.object.object != nil {
		attach(l.reg.Objects, node, *b.object.object)
	}
	if b.object.asset != nil {
		attach(l.reg.Assets, node, *b.object.asset)
	}
	for _, s := range b.object.themes {
		attach(l.reg.Themes, node, s)
	}

	for _, p := range b.recs {
		l.merger.ObservePending(node.ID, p.rec, p.fp)
	}
	for _, r := range b.recos {
		l.merger.ObserveResolved(node.ID, r.riskID, r.rec, r.commentAfter)
	}
}
