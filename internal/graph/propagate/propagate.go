// Package propagate derives node impact levels and risk caches top-down
// over the instance tree.
package propagate

import (
	"sort"

	"riskgraph/internal/graph/registry"
	"riskgraph/internal/logger"
	"riskgraph/pkg/models"
)

// Result summarizes one propagation pass.
type Result struct {
	Visited      int
	RisksUpdated int
	Orphans      []int
}

// Run walks every tree from its roots (parent 0) in pre-order. Each node's
// levels are final before any of its children is visited. Nodes that are
// not reachable from a root are reported as orphans and left untouched.
func Run(reg *registry.Registry) Result {
	children := make(map[int][]*models.Node)
	var roots []*models.Node
	for _, n := range reg.NodesByID() {
		if n.IsRoot() {
			roots = append(roots, n)
			continue
		}
		children[n.Parent] = append(children[n.Parent], n)
	}

	var res Result
	visited := make(map[int]struct{})
	var walk func(n, parent *models.Node)
	walk = func(n, parent *models.Node) {
		if _, ok := visited[n.ID]; ok {
			return
		}
		visited[n.ID] = struct{}{}
		res.Visited++
		res.RisksUpdated += computeNode(reg, n, parent)
		for _, child := range children[n.ID] {
			walk(child, n)
		}
	}
	for _, root := range roots {
		walk(root, nil)
	}

	for _, n := range reg.NodesByID() {
		if _, ok := visited[n.ID]; !ok {
			res.Orphans = append(res.Orphans, n.ID)
		}
	}
	sort.Ints(res.Orphans)
	if len(res.Orphans) > 0 {
		logger.Warnf("Propagation skipped %d orphan instances: %v", len(res.Orphans), res.Orphans)
	}
	return res
}

// computeNode sets the node's C/I/D and inheritance flags, then refreshes
// the caches of every risk the node owns. It returns the number of risks
// updated.
func computeNode(reg *registry.Registry, n, parent *models.Node) int {
	c, i, d := MaxConsequences(n.Consequences)
	n.CH, n.IH, n.DH = c == -1, i == -1, d == -1
	if parent != nil {
		if n.CH {
			c = parent.C.Int()
		}
		if n.IH {
			i = parent.I.Int()
		}
		if n.DH {
			d = parent.D.Int()
		}
	}
	n.C, n.I, n.D = models.LevelOf(c), models.LevelOf(i), models.LevelOf(d)

	maxImpact := max(c, i, d)
	risks := reg.Risks.OwnedBy(n.ID)
	for _, r := range risks {
		r.CacheMaxRisk, r.CacheTargetedRisk = RiskCaches(maxImpact, r)
	}
	return len(risks)
}

// MaxConsequences returns the maximum c, i and d over the consequences,
// -1 for a dimension with no consequence.
func MaxConsequences(consequences []*models.Consequence) (int, int, int) {
	c, i, d := -1, -1, -1
	for _, cons := range consequences {
		c = max(c, cons.C)
		i = max(i, cons.I)
		d = max(d, cons.D)
	}
	return c, i, d
}

// RiskCaches computes the max and targeted risk for a risk on a node whose
// maximum impact is maxImpact. Both are clamped at -1 from below.
func RiskCaches(maxImpact int, r *models.Risk) (int, int) {
	maxRisk := max(maxImpact*r.VulnerabilityRate*r.ThreatRate, -1)
	if r.Accepted() {
		return maxRisk, maxRisk
	}
	reduced := max(r.VulnerabilityRate-r.ReductionAmount, 0)
	targeted := max(min(maxImpact*reduced*r.ThreatRate, maxRisk), -1)
	return maxRisk, targeted
}
