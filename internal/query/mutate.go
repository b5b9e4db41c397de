package query

import (
	"fmt"

	"github.com/google/uuid"

	"riskgraph/internal/graph/recommend"
	"riskgraph/internal/graph/registry"
	"riskgraph/pkg/models"
)

// Mutator changes a registry between ingestion and reassembly.
type Mutator struct {
	reg    *registry.Registry
	merger *recommend.Merger
}

// NewMutator returns a mutator over reg.
func NewMutator(reg *registry.Registry) *Mutator {
	return &Mutator{reg: reg, merger: recommend.NewMerger(reg)}
}

// AttachToNode adds node as owner of (kind, id).
func (m *Mutator) AttachToNode(kind models.Kind, id string, nodeID int) error {
	node, ok := m.reg.Node(nodeID)
	if !ok {
		return fmt.Errorf("unknown node %d", nodeID)
	}
	var attached bool
	switch kind {
	case models.KindThreat:
		attached = m.reg.Threats.AddOwner(id, nodeID)
	case models.KindVulnerability:
		attached = m.reg.Vulnerabilities.AddOwner(id, nodeID)
	case models.KindLink:
		attached = m.reg.Links.AddOwner(id, nodeID)
	case models.KindRisk:
		attached = m.reg.Risks.AddOwner(id, nodeID)
	case models.KindMeasure:
		attached = m.reg.Measures.AddOwner(id, nodeID)
	case models.KindRecommendationSet:
		attached = m.reg.RecommendationSets.AddOwner(id, nodeID)
	case models.KindRecommendation:
		attached = m.reg.Recommendations.AddOwner(id, nodeID)
	default:
		return fmt.Errorf("kind %q cannot be attached", kind)
	}
	if !attached {
		return fmt.Errorf("unknown %s %q", kind, id)
	}
	node.Attach(kind, id)
	return nil
}

// ResolveRecommendations files each recommendation id against riskID,
// creating resolved records from pending ones when needed. The risk's
// owners become owners of the resolved records.
func (m *Mutator) ResolveRecommendations(riskID int, ids []string, commentAfter string) error {
	risk, ok := m.reg.Risk(riskID)
	if !ok {
		return fmt.Errorf("unknown risk %d", riskID)
	}
	owners := m.reg.Risks.Owners(registry.RiskKey(risk.ID))
	if len(owners) == 0 {
		return fmt.Errorf("risk %d has no owner", riskID)
	}
	for _, id := range ids {
		for _, owner := range owners {
			if _, ok := m.merger.Resolve(owner, riskID, id, commentAfter); !ok {
				return fmt.Errorf("unknown recommendation %q", id)
			}
		}
	}
	return nil
}

// RemovePending drops pending recommendations matching fn.
func (m *Mutator) RemovePending(fn func(*models.Recommendation) bool) int {
	return m.reg.Recommendations.DeleteFunc(fn)
}

// SetRiskRates updates a risk's threat and vulnerability rates.
func (m *Mutator) SetRiskRates(riskID, threatRate, vulnerabilityRate int) error {
	risk, ok := m.reg.Risk(riskID)
	if !ok {
		return fmt.Errorf("unknown risk %d", riskID)
	}
	risk.SetThreatRate(threatRate)
	risk.SetVulnerabilityRate(vulnerabilityRate)
	return nil
}

// NewAssetSpec describes a library object and asset to create.
type NewAssetSpec struct {
	Code   string
	Labels models.Labels
	Type   int
	Mode   int
	Scope  int
}

// NewObject builds an object and its asset with fresh uuids.
func NewObject(spec NewAssetSpec) (*models.Object, *models.Asset, error) {
	if spec.Code == "" {
		return nil, nil, fmt.Errorf("asset code is required")
	}
	asset := &models.Asset{
		UUID:   uuid.NewString(),
		Labels: spec.Labels,
		Status: 1,
		Mode:   spec.Mode,
		Type:   spec.Type,
		Code:   spec.Code,
	}
	obj := &models.Object{
		UUID:      uuid.NewString(),
		Mode:      spec.Mode,
		Scope:     spec.Scope,
		Name1:     spec.Labels.Label1,
		Name2:     spec.Labels.Label2,
		Name3:     spec.Labels.Label3,
		Name4:     spec.Labels.Label4,
		Labels:    spec.Labels,
		AssetCode: spec.Code,
	}
	return obj, asset, nil
}
