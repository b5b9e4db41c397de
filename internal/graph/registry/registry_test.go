package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"riskgraph/pkg/models"
)

func TestGetOrCreateDeduplicatesAndCollectsOwners(t *testing.T) {
	reg := New()
	builds := 0
	build := func() *models.Threat {
		builds++
		return &models.Threat{UUID: "t1", Code: "M1"}
	}

	var first *models.Threat
	for owner := 1; owner <= 5; owner++ {
		th, created := reg.Threats.GetOrCreate("t1", owner, "fp", build)
		if owner == 1 {
			first = th
			assert.True(t, created)
		} else {
			assert.False(t, created)
			assert.Same(t, first, th)
		}
	}

	assert.Equal(t, 1, builds)
	assert.Equal(t, 1, reg.Threats.Len())
	assert.Equal(t, []int{1, 2, 3, 4, 5}, reg.OwnersOf(models.KindThreat, "t1"))
	assert.Empty(t, reg.Conflicts())
}

func TestFirstSightingWinsAndConflictIsRecorded(t *testing.T) {
	reg := New()
	var hooked []Conflict
	reg.OnConflict(func(c Conflict) { hooked = append(hooked, c) })

	reg.Vulnerabilities.GetOrCreate("v1", 1, "a", func() *models.Vulnerability {
		return &models.Vulnerability{UUID: "v1", Code: "first"}
	})
	v, _ := reg.Vulnerabilities.GetOrCreate("v1", 2, "b", func() *models.Vulnerability {
		return &models.Vulnerability{UUID: "v1", Code: "second"}
	})

	assert.Equal(t, "first", v.Code)
	require.Len(t, reg.Conflicts(), 1)
	assert.Equal(t, models.KindVulnerability, reg.Conflicts()[0].Kind)
	assert.Equal(t, "v1", reg.Conflicts()[0].ID)
	assert.Equal(t, 2, reg.Conflicts()[0].Owner)
	assert.Len(t, hooked, 1)
	assert.Equal(t, []int{1, 2}, reg.Vulnerabilities.Owners("v1"))
}

func TestOwnedByKeepsFirstSightingOrder(t *testing.T) {
	reg := New()
	for _, id := range []string{"b", "a", "c"} {
		id := id
		reg.Links.GetOrCreate(id, 7, "", func() *models.Link { return &models.Link{UUID: id} })
	}
	reg.Links.GetOrCreate("d", 8, "", func() *models.Link { return &models.Link{UUID: "d"} })

	var got []string
	for _, l := range reg.Links.OwnedBy(7) {
		got = append(got, l.UUID)
	}
	assert.Equal(t, []string{"b", "a", "c"}, got)
	assert.Equal(t, []string{"b", "a", "c", "d"}, reg.Links.IDs())
}

func TestDeleteAndOwnerRemoval(t *testing.T) {
	reg := New()
	reg.Recommendations.GetOrCreate("r1", 1, "", func() *models.Recommendation { return &models.Recommendation{UUID: "r1"} })
	reg.Recommendations.GetOrCreate("r2", 1, "", func() *models.Recommendation { return &models.Recommendation{UUID: "r2"} })
	reg.Recommendations.AddOwner("r2", 3)

	reg.Recommendations.RemoveOwner("r2", 1)
	assert.Equal(t, []int{3}, reg.Recommendations.Owners("r2"))
	assert.False(t, reg.Recommendations.AddOwner("missing", 1))

	assert.True(t, reg.Recommendations.Delete("r1"))
	assert.False(t, reg.Recommendations.Has("r1"))
	assert.Equal(t, 1, reg.Recommendations.Len())

	n := reg.Recommendations.DeleteFunc(func(r *models.Recommendation) bool { return r.UUID == "r2" })
	assert.Equal(t, 1, n)
	assert.Equal(t, 0, reg.Recommendations.Len())
}

func TestPoolLookupByKind(t *testing.T) {
	reg := New()
	for _, kind := range []models.Kind{
		models.KindNode, models.KindAsset, models.KindRisk, models.KindRecommendation,
		models.KindResolvedRecommendation, models.KindReferential,
	} {
		p, ok := reg.Pool(kind)
		require.True(t, ok, kind)
		assert.Equal(t, kind, p.Kind())
	}
	_, ok := reg.Pool(models.Kind("nope"))
	assert.False(t, ok)
}
