// Package recommend keeps pending and resolved recommendations mutually
// exclusive per id while a document is ingested.
package recommend

import (
	"riskgraph/internal/graph/registry"
	"riskgraph/pkg/models"
)

// Merger folds recommendation sightings into the registry.
type Merger struct {
	reg *registry.Registry
}

// NewMerger returns a merger writing into reg.
func NewMerger(reg *registry.Registry) *Merger {
	return &Merger{reg: reg}
}

// ObservePending records a pending recommendation seen under owner. When a
// resolved record with the same id already exists nothing is created; the
// owner is still attached to the resolved record.
func (m *Merger) ObservePending(owner int, rec *models.Recommendation, fingerprint string) (*models.Recommendation, bool) {
	if resolved, ok := m.reg.ResolvedRecommendations.Get(rec.UUID); ok {
		m.reg.ResolvedRecommendations.AddOwner(rec.UUID, owner)
		return resolved, false
	}
	return m.reg.Recommendations.GetOrCreate(rec.UUID, owner, fingerprint, func() *models.Recommendation {
		return rec
	})
}

// ObserveResolved records that rec is filed against riskID under owner.
// Base fields come from the first sighting of the id, pending or resolved;
// commentAfter from the first resolved sighting.
func (m *Merger) ObserveResolved(owner, riskID int, rec *models.Recommendation, commentAfter string) *models.Recommendation {
	resolved, _ := m.reg.ResolvedRecommendations.GetOrCreate(rec.UUID, owner, "", func() *models.Recommendation {
		if pending, ok := m.reg.Recommendations.Get(rec.UUID); ok {
			return pending.Clone()
		}
		return rec.Clone()
	})
	resolved.Resolve(riskID, commentAfter)
	return resolved
}

// Resolve files the recommendation id against riskID for owner, building the
// resolved record from the pending one when needed. It returns false when
// neither a pending nor a resolved record exists.
func (m *Merger) Resolve(owner, riskID int, id, commentAfter string) (*models.Recommendation, bool) {
	if resolved, ok := m.reg.ResolvedRecommendations.Get(id); ok {
		m.reg.ResolvedRecommendations.AddOwner(id, owner)
		resolved.Resolve(riskID, commentAfter)
		return resolved, true
	}
	pending, ok := m.reg.Recommendations.Get(id)
	if !ok {
		return nil, false
	}
	resolved := m.ObserveResolved(owner, riskID, pending, commentAfter)
	m.dropPending(id)
	return resolved, true
}

// Finalize removes every pending record whose id also exists as a resolved
// record, moving its owners over. It returns the number of pending records
// removed.
func (m *Merger) Finalize() int {
	removed := 0
	for _, id := range m.reg.Recommendations.IDs() {
		if m.reg.ResolvedRecommendations.Has(id) {
			m.dropPending(id)
			removed++
		}
	}
	return removed
}

func (m *Merger) dropPending(id string) {
	for _, owner := range m.reg.Recommendations.Owners(id) {
		m.reg.ResolvedRecommendations.AddOwner(id, owner)
	}
	m.reg.Recommendations.Delete(id)
}
