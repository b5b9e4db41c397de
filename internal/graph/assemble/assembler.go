// Package assemble rebuilds the nested export document from a registry:
// the node tree is restored from parent ids and every node gets the
// entities it owns inlined again.
package assemble

import (
	"strconv"
	"time"

	"riskgraph/internal/graph/ingest"
	"riskgraph/internal/graph/registry"
	"riskgraph/internal/logger"
	"riskgraph/pkg/models"
)

const (
	// DefaultVersion is the schema version written in the envelope.
	DefaultVersion = "2.12.3"
	// DatetimeLayout is the export_datetime format.
	DatetimeLayout = "2006-01-02 15:04:05"
)

// Options controls the envelope.
type Options struct {
	Version  string
	WithEval bool
	Now      func() time.Time
}

// Assembler converts a loaded document back into its serialized shape.
type Assembler struct {
	version  string
	withEval bool
	now      func() time.Time
}

// NewAssembler creates an assembler.
func NewAssembler(opts Options) *Assembler {
	if opts.Version == "" {
		opts.Version = DefaultVersion
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Assembler{version: opts.Version, withEval: opts.WithEval, now: opts.Now}
}

// Assemble builds the output envelope. It reads only registry state, so
// owner-set changes made after ingestion are reflected.
func (a *Assembler) Assemble(doc *ingest.Document) *Envelope {
	reg := doc.Registry
	env := &Envelope{
		Type:           typeANR,
		MonarcVersion:  a.version,
		ExportDatetime: a.now().Format(DatetimeLayout),
		WithEval:       a.withEval,
		Instances:      make(map[string]*InstanceDoc),
		Referentials:   make(map[string]*models.Referential),
		Measures:       make(map[string]*models.CatalogMeasure),
	}

	for _, ref := range reg.Referentials.All() {
		env.Referentials[ref.UUID] = ref
	}
	for _, m := range reg.CatalogMeasures.All() {
		env.Measures[m.UUID] = m
	}
	env.Method = a.method(doc)
	a.passThrough(env, doc.Sections)

	children := make(map[int][]*models.Node)
	var roots []*models.Node
	for _, n := range reg.NodesByID() {
		if n.IsRoot() {
			roots = append(roots, n)
			continue
		}
		children[n.Parent] = append(children[n.Parent], n)
	}

	placed := make(map[int]struct{})
	for _, root := range roots {
		env.Instances[strconv.Itoa(root.ID)] = a.instance(reg, root, children, placed)
	}

	if skipped := reg.Nodes.Len() - len(placed); skipped > 0 {
		logger.Warnf("Reassembly left out %d instances not reachable from a root", skipped)
	}
	return env
}

// instance builds the document for n after its children, so every child is
// complete when attached.
func (a *Assembler) instance(reg *registry.Registry, n *models.Node, children map[int][]*models.Node, placed map[int]struct{}) *InstanceDoc {
	placed[n.ID] = struct{}{}

	childDocs := make(map[string]*InstanceDoc)
	var childNodes []*models.Node
	for _, child := range children[n.ID] {
		if _, ok := placed[child.ID]; ok {
			continue
		}
		childDocs[strconv.Itoa(child.ID)] = a.instance(reg, child, children, placed)
		childNodes = append(childNodes, child)
	}
	n.Children = childNodes
	a.refreshRefs(reg, n)

	out := &InstanceDoc{
		Type:          typeInstance,
		MonarcVersion: a.version,
		WithEval:      a.withEval,
		Instance:      n.Attributes(),
		Object:        a.object(reg, n),
		Consequences:  make(map[string]*models.Consequence),
		Risks:         make(map[string]*models.Risk),
		Vuls:          make(map[string]*models.Vulnerability),
		Threats:       make(map[string]*models.Threat),
		Amvs:          make(map[string]*models.Link),
		Measures:      make(map[string]*models.Measure),
		RecSets:       make(map[string]*models.RecommendationSet),
		Recs:          make(map[string]*models.Recommendation),
		Recos:         make(map[string]map[string]*models.Recommendation),
		Children:      childDocs,
	}

	for _, c := range n.Consequences {
		out.Consequences[strconv.Itoa(c.ID)] = c
	}
	risks := reg.Risks.OwnedBy(n.ID)
	for _, r := range risks {
		out.Risks[strconv.Itoa(r.ID)] = r
	}
	for _, v := range reg.Vulnerabilities.OwnedBy(n.ID) {
		out.Vuls[v.UUID] = v
	}
	for _, t := range reg.Threats.OwnedBy(n.ID) {
		out.Threats[t.UUID] = t
	}
	for _, l := range reg.Links.OwnedBy(n.ID) {
		out.Amvs[l.UUID] = l
	}
	for _, m := range reg.Measures.OwnedBy(n.ID) {
		out.Measures[m.UUID] = m
	}
	for _, s := range reg.RecommendationSets.OwnedBy(n.ID) {
		out.RecSets[s.UUID] = s
	}

	resolved := reg.ResolvedRecommendations.OwnedBy(n.ID)
	filed := make(map[string]struct{})
	for _, r := range risks {
		var perRisk map[string]*models.Recommendation
		for _, rec := range resolved {
			if !rec.RelatedTo(r.ID) {
				continue
			}
			if perRisk == nil {
				perRisk = make(map[string]*models.Recommendation)
			}
			perRisk[rec.UUID] = rec
			filed[rec.UUID] = struct{}{}
		}
		if perRisk != nil {
			out.Recos[strconv.Itoa(r.ID)] = perRisk
		}
	}
	for _, rec := range reg.Recommendations.OwnedBy(n.ID) {
		if _, ok := filed[rec.UUID]; ok {
			continue
		}
		out.Recs[rec.UUID] = rec
	}
	return out
}

// refreshRefs re-derives the node's attached references from owner sets.
func (a *Assembler) refreshRefs(reg *registry.Registry, n *models.Node) {
	refs := make(map[models.Kind][]string)
	for _, pool := range reg.Pools() {
		for _, id := range pool.IDs() {
			if pool.HasOwner(id, n.ID) {
				refs[pool.Kind()] = append(refs[pool.Kind()], id)
			}
		}
	}
	n.Refs = refs
}

func (a *Assembler) object(reg *registry.Registry, n *models.Node) *ObjectDoc {
	objects := reg.Objects.OwnedBy(n.ID)
	if len(objects) == 0 {
		return nil
	}
	obj := objects[0]
	out := &ObjectDoc{
		Type:          typeObject,
		MonarcVersion: a.version,
		Object:        obj,
		Categories:    make(map[string]*models.Category),
	}
	for _, c := range obj.Categories {
		out.Categories[strconv.Itoa(c.ID)] = c
	}

	asset, ok := reg.Assets.Get(obj.AssetCode)
	if !ok || !reg.Assets.HasOwner(obj.AssetCode, n.ID) {
		return out
	}
	assetDoc := &AssetDoc{
		Type:          typeAsset,
		MonarcVersion: a.version,
		Asset:         asset,
		Amvs:          make(map[string]*models.Link),
		Threats:       make(map[string]*models.Threat),
		Vuls:          make(map[string]*models.Vulnerability),
		Themes:        make(map[string]*models.Theme),
	}
	for _, l := range reg.Links.OwnedBy(n.ID) {
		assetDoc.Amvs[l.UUID] = l
	}
	for _, t := range reg.Threats.OwnedBy(n.ID) {
		assetDoc.Threats[t.UUID] = t
	}
	for _, v := range reg.Vulnerabilities.OwnedBy(n.ID) {
		assetDoc.Vuls[v.UUID] = v
	}
	for _, t := range reg.Themes.OwnedBy(n.ID) {
		assetDoc.Themes[strconv.Itoa(t.ID)] = t
	}
	out.Asset = assetDoc
	return out
}

func (a *Assembler) method(doc *ingest.Document) map[string]interface{} {
	if doc.Method == nil {
		return nil
	}
	out := make(map[string]interface{}, len(doc.Method))
	for k, v := range doc.Method {
		out[k] = v
	}
	if doc.Registry.MethodThreats.Len() > 0 {
		threats := make(map[string]*models.MethodThreat)
		for _, t := range doc.Registry.MethodThreats.All() {
			threats[t.UUID] = t
		}
		out["threats"] = threats
	}
	return out
}

func (a *Assembler) passThrough(env *Envelope, sections map[string]interface{}) {
	for name, v := range sections {
		switch name {
		case "anrMetadatasOnInstances":
			env.AnrMetadatasOnInstances = v
		case "measuresMeasures":
			env.MeasuresMeasures = v
		case "operationalRiskScales":
			env.OperationalRiskScales = v
		case "scales":
			env.Scales = v
		case "scalesComments":
			env.ScalesComments = v
		case "soaScaleComment":
			env.SoaScaleComment = v
		case "soacategories":
			env.Soacategories = v
		case "soas":
			env.Soas = v
		}
	}
}

// Standalone builds an object document for a new library object that is
// not yet placed under any node.
func (a *Assembler) Standalone(obj *models.Object, asset *models.Asset) *ObjectDoc {
	out := &ObjectDoc{
		Type:          typeObject,
		MonarcVersion: a.version,
		Object:        obj,
		Categories:    make(map[string]*models.Category),
	}
	for _, c := range obj.Categories {
		out.Categories[strconv.Itoa(c.ID)] = c
	}
	if asset != nil {
		out.Asset = &AssetDoc{
			Type:          typeAsset,
			MonarcVersion: a.version,
			Asset:         asset,
			Amvs:          make(map[string]*models.Link),
			Threats:       make(map[string]*models.Threat),
			Vuls:          make(map[string]*models.Vulnerability),
			Themes:        make(map[string]*models.Theme),
		}
	}
	return out
}
