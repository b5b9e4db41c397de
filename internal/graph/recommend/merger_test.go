package recommend

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"riskgraph/internal/graph/registry"
	"riskgraph/pkg/models"
)

func rec(id, code string) *models.Recommendation {
	return &models.Recommendation{UUID: id, Code: code, Importance: 2}
}

func assertExclusive(t *testing.T, reg *registry.Registry) {
	t.Helper()
	for _, id := range reg.Recommendations.IDs() {
		assert.False(t, reg.ResolvedRecommendations.Has(id), "id %s is both pending and resolved", id)
	}
}

func TestPendingThenResolved(t *testing.T) {
	reg := registry.New()
	m := NewMerger(reg)

	m.ObservePending(1, rec("r1", "pending-code"), "")
	m.ObserveResolved(2, 10, rec("r1", "resolved-code"), "after")
	m.Finalize()

	assertExclusive(t, reg)
	resolved, ok := reg.ResolvedRecommendations.Get("r1")
	require.True(t, ok)
	assert.Equal(t, "pending-code", resolved.Code)
	assert.Equal(t, models.Resolved, resolved.State)
	assert.Equal(t, "after", resolved.Resolution.CommentAfter)
	assert.Equal(t, []int{10}, resolved.RelatedRisks())
	assert.Equal(t, []int{1, 2}, reg.ResolvedRecommendations.Owners("r1"))
}

func TestResolvedThenPending(t *testing.T) {
	reg := registry.New()
	m := NewMerger(reg)

	m.ObserveResolved(2, 10, rec("r1", "resolved-code"), "first")
	got, created := m.ObservePending(1, rec("r1", "pending-code"), "")
	m.ObserveResolved(3, 11, rec("r1", "other"), "second")
	m.Finalize()

	assert.False(t, created)
	assert.Equal(t, models.Resolved, got.State)
	assertExclusive(t, reg)
	assert.Equal(t, 0, reg.Recommendations.Len())

	resolved, _ := reg.ResolvedRecommendations.Get("r1")
	assert.Equal(t, "resolved-code", resolved.Code)
	assert.Equal(t, "first", resolved.Resolution.CommentAfter)
	assert.Equal(t, []int{10, 11}, resolved.RelatedRisks())
}

func TestPendingOnlyStaysPending(t *testing.T) {
	reg := registry.New()
	m := NewMerger(reg)

	m.ObservePending(1, rec("r1", "a"), "")
	m.ObservePending(2, rec("r1", "a"), "")

	assert.Equal(t, 0, m.Finalize())
	p, ok := reg.Recommendations.Get("r1")
	require.True(t, ok)
	assert.Equal(t, models.Pending, p.State)
	assert.Equal(t, []int{1, 2}, reg.Recommendations.Owners("r1"))
}

func TestResolveFromPending(t *testing.T) {
	reg := registry.New()
	m := NewMerger(reg)
	m.ObservePending(1, rec("r1", "a"), "")

	resolved, ok := m.Resolve(1, 42, "r1", "done")
	require.True(t, ok)
	assert.True(t, resolved.RelatedTo(42))
	assert.False(t, reg.Recommendations.Has("r1"))
	assertExclusive(t, reg)

	_, ok = m.Resolve(1, 42, "missing", "")
	assert.False(t, ok)
}
