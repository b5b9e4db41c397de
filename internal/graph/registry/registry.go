// Package registry holds the canonical entity pools of a loaded document.
// Every entity is stored once per (kind, id) and carries the set of node ids
// that reference it.
package registry

import (
	"sort"
	"strconv"

	"riskgraph/pkg/models"
)

// Registry is the flat, deduplicated store built during ingestion.
type Registry struct {
	Nodes                   *Pool[*models.Node]
	Assets                  *Pool[*models.Asset]
	Objects                 *Pool[*models.Object]
	Themes                  *Pool[*models.Theme]
	Threats                 *Pool[*models.Threat]
	MethodThreats           *Pool[*models.MethodThreat]
	Vulnerabilities         *Pool[*models.Vulnerability]
	Links                   *Pool[*models.Link]
	Measures                *Pool[*models.Measure]
	CatalogMeasures         *Pool[*models.CatalogMeasure]
	Referentials            *Pool[*models.Referential]
	RecommendationSets      *Pool[*models.RecommendationSet]
	Recommendations         *Pool[*models.Recommendation]
	ResolvedRecommendations *Pool[*models.Recommendation]
	Risks                   *Pool[*models.Risk]

	conflicts []Conflict
	hooks     []func(Conflict)
}

// New returns an empty registry.
func New() *Registry {
	r := &Registry{}
	on := r.recordConflict
	r.Nodes = newPool[*models.Node](models.KindNode, on)
	r.Assets = newPool[*models.Asset](models.KindAsset, on)
	r.Objects = newPool[*models.Object](models.KindObject, on)
	r.Themes = newPool[*models.Theme](models.KindTheme, on)
	r.Threats = newPool[*models.Threat](models.KindThreat, on)
	r.MethodThreats = newPool[*models.MethodThreat](models.KindMethodThreat, on)
	r.Vulnerabilities = newPool[*models.Vulnerability](models.KindVulnerability, on)
	r.Links = newPool[*models.Link](models.KindLink, on)
	r.Measures = newPool[*models.Measure](models.KindMeasure, on)
	r.CatalogMeasures = newPool[*models.CatalogMeasure](models.KindCatalogMeasure, on)
	r.Referentials = newPool[*models.Referential](models.KindReferential, on)
	r.RecommendationSets = newPool[*models.RecommendationSet](models.KindRecommendationSet, on)
	r.Recommendations = newPool[*models.Recommendation](models.KindRecommendation, on)
	r.ResolvedRecommendations = newPool[*models.Recommendation](models.KindResolvedRecommendation, on)
	r.Risks = newPool[*models.Risk](models.KindRisk, on)
	return r
}

// OnConflict registers a callback run for every content conflict.
func (r *Registry) OnConflict(fn func(Conflict)) {
	r.hooks = append(r.hooks, fn)
}

func (r *Registry) recordConflict(c Conflict) {
	r.conflicts = append(r.conflicts, c)
	for _, fn := range r.hooks {
		fn(c)
	}
}

// Conflicts returns the conflicts seen so far.
func (r *Registry) Conflicts() []Conflict {
	out := make([]Conflict, len(r.conflicts))
	copy(out, r.conflicts)
	return out
}

// Pools returns every node-owned pool, for kind-independent walks.
func (r *Registry) Pools() []OwnerSet {
	return []OwnerSet{
		r.Assets,
		r.Objects,
		r.Themes,
		r.Threats,
		r.Vulnerabilities,
		r.Links,
		r.Measures,
		r.Referentials,
		r.RecommendationSets,
		r.Recommendations,
		r.ResolvedRecommendations,
		r.Risks,
	}
}

// Pool returns the owner view of the pool holding kind.
func (r *Registry) Pool(kind models.Kind) (OwnerSet, bool) {
	if kind == models.KindNode {
		return r.Nodes, true
	}
	for _, p := range r.Pools() {
		if p.Kind() == kind {
			return p, true
		}
	}
	return nil, false
}

// OwnersOf returns the owner node ids of (kind, id).
func (r *Registry) OwnersOf(kind models.Kind, id string) []int {
	p, ok := r.Pool(kind)
	if !ok {
		return nil
	}
	return p.Owners(id)
}

// Node returns the node with the given id.
func (r *Registry) Node(id int) (*models.Node, bool) {
	return r.Nodes.Get(NodeKey(id))
}

// NodesByID returns every node sorted by id.
func (r *Registry) NodesByID() []*models.Node {
	nodes := r.Nodes.All()
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].ID < nodes[j].ID })
	return nodes
}

// Risk returns the risk with the given id.
func (r *Registry) Risk(id int) (*models.Risk, bool) {
	return r.Risks.Get(RiskKey(id))
}

// NodeKey is the pool key of a node id.
func NodeKey(id int) string { return strconv.Itoa(id) }

// RiskKey is the pool key of a risk id.
func RiskKey(id int) string { return strconv.Itoa(id) }

// ThemeKey is the pool key of a theme id.
func ThemeKey(id int) string { return strconv.Itoa(id) }
