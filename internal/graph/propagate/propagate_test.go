package propagate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"riskgraph/internal/graph/registry"
	"riskgraph/pkg/models"
)

func addNode(reg *registry.Registry, id, parent int, consequences ...*models.Consequence) *models.Node {
	n := models.NewNode(id)
	n.Parent = parent
	n.Consequences = consequences
	reg.Nodes.Register(registry.NodeKey(id), "", func() *models.Node { return n })
	return n
}

func addRisk(reg *registry.Registry, owner int, r *models.Risk) *models.Risk {
	v, _ := reg.Risks.GetOrCreate(registry.RiskKey(r.ID), owner, "", func() *models.Risk { return r })
	return v
}

func TestRootWithoutConsequencesChildInherits(t *testing.T) {
	reg := registry.New()
	root := addNode(reg, 1, 0)
	child := addNode(reg, 2, 1, &models.Consequence{ID: 1, C: 5, I: -1, D: -1})
	risk := addRisk(reg, 2, &models.Risk{ID: 7, VulnerabilityRate: 3, ThreatRate: 1, KindOfMeasure: 1, ReductionAmount: 1})

	res := Run(reg)

	assert.Equal(t, 2, res.Visited)
	assert.Empty(t, res.Orphans)
	assert.Equal(t, models.LevelOf(-1), root.C)
	assert.Equal(t, models.LevelOf(-1), root.I)
	assert.Equal(t, models.LevelOf(-1), root.D)
	assert.True(t, root.CH)

	assert.Equal(t, 5, child.C.Int())
	assert.False(t, child.CH)
	assert.Equal(t, -1, child.I.Int())
	assert.True(t, child.IH)
	assert.Equal(t, -1, child.D.Int())
	assert.True(t, child.DH)

	assert.Equal(t, 15, risk.CacheMaxRisk)
	assert.Equal(t, 10, risk.CacheTargetedRisk)
}

func TestInheritanceFollowsParentValues(t *testing.T) {
	reg := registry.New()
	addNode(reg, 1, 0, &models.Consequence{ID: 1, C: 2, I: 4, D: 1}, &models.Consequence{ID: 2, C: 3, I: -1, D: 0})
	mid := addNode(reg, 2, 1, &models.Consequence{ID: 3, C: -1, I: 1, D: -1})
	leaf := addNode(reg, 3, 2)

	Run(reg)

	assert.Equal(t, []int{3, 1, 1}, []int{mid.C.Int(), mid.I.Int(), mid.D.Int()})
	assert.Equal(t, []bool{true, false, true}, []bool{mid.CH, mid.IH, mid.DH})
	assert.Equal(t, []int{3, 1, 1}, []int{leaf.C.Int(), leaf.I.Int(), leaf.D.Int()})
	assert.Equal(t, []bool{true, true, true}, []bool{leaf.CH, leaf.IH, leaf.DH})
}

func TestRiskCachesFormula(t *testing.T) {
	accept := &models.Risk{VulnerabilityRate: 3, ThreatRate: 1, KindOfMeasure: models.KindOfMeasureAccept, ReductionAmount: 2}
	maxRisk, targeted := RiskCaches(4, accept)
	assert.Equal(t, 12, maxRisk)
	assert.Equal(t, 12, targeted)

	reduce := &models.Risk{VulnerabilityRate: 3, ThreatRate: 1, KindOfMeasure: 1, ReductionAmount: 2}
	maxRisk, targeted = RiskCaches(4, reduce)
	assert.Equal(t, 12, maxRisk)
	assert.Equal(t, 4, targeted)

	overReduced := &models.Risk{VulnerabilityRate: 2, ThreatRate: 3, ReductionAmount: 5}
	maxRisk, targeted = RiskCaches(4, overReduced)
	assert.Equal(t, 24, maxRisk)
	assert.Equal(t, 0, targeted)

	unevaluated := &models.Risk{VulnerabilityRate: -1, ThreatRate: -1}
	maxRisk, targeted = RiskCaches(-1, unevaluated)
	assert.Equal(t, -1, maxRisk)
	assert.Equal(t, -1, targeted)
}

func TestSharedRiskLastWriterWins(t *testing.T) {
	reg := registry.New()
	addNode(reg, 1, 0, &models.Consequence{ID: 1, C: 1, I: 1, D: 1})
	addNode(reg, 2, 1, &models.Consequence{ID: 2, C: 4, I: 0, D: 0})
	shared := addRisk(reg, 1, &models.Risk{ID: 9, VulnerabilityRate: 2, ThreatRate: 2, KindOfMeasure: models.KindOfMeasureAccept})
	reg.Risks.AddOwner(registry.RiskKey(9), 2)

	res := Run(reg)

	assert.Equal(t, 2, res.RisksUpdated)
	assert.Equal(t, 16, shared.CacheMaxRisk)
}

func TestOrphansAreReportedAndSkipped(t *testing.T) {
	reg := registry.New()
	addNode(reg, 1, 0)
	orphan := addNode(reg, 5, 42, &models.Consequence{ID: 1, C: 3, I: 3, D: 3})

	res := Run(reg)

	require.Equal(t, []int{5}, res.Orphans)
	assert.Equal(t, 1, res.Visited)
	assert.False(t, orphan.C.Set)
}

func TestRunIsIdempotent(t *testing.T) {
	reg := registry.New()
	addNode(reg, 1, 0, &models.Consequence{ID: 1, C: 2, I: 3, D: 1})
	risk := addRisk(reg, 1, &models.Risk{ID: 1, VulnerabilityRate: 2, ThreatRate: 2, ReductionAmount: 1})

	Run(reg)
	first := *risk
	Run(reg)
	assert.Equal(t, first, *risk)
}
