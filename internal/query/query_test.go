package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"riskgraph/internal/graph/ingest"
	"riskgraph/pkg/models"
)

const doc = `{
  "referentials": {"ref1": {"uuid": "ref1", "label2": "ISO 27002"}},
  "instances": {
    "1": {
      "instance": {"id": 1, "name2": "Information system", "label2": "IS", "parent": 0},
      "consequences": {"4": {"id": 4, "c": 2, "i": 1, "d": 0}},
      "threats": {
        "t1": {"uuid": "t1", "code": "M1", "label2": "Fire", "description2": "Fire in the room"},
        "t2": {"uuid": "t2", "code": "M2", "label2": "Flood"}
      },
      "vuls": {"v1": {"uuid": "v1", "code": "V1", "label2": "No extinguisher"}},
      "amvs": {
        "l1": {"uuid": "l1", "threat": "t1", "vulnerability": "v1", "asset": "a1", "measures": ["m1", "m1"]},
        "l2": {"uuid": "l2", "threat": "t2", "vulnerability": "v1", "asset": "a1"}
      },
      "risks": {
        "10": {"id": 10, "amv": "l1", "threat": "t1", "vulnerability": "v1", "threatRate": 2, "vulnerabilityRate": 3},
        "11": {"id": 11, "amv": "l2", "threat": "t2", "vulnerability": "v1"}
      },
      "measures": {"m1": {"uuid": "m1", "code": "7.5", "referential": {"uuid": "ref1", "label2": "ISO 27002"}}},
      "recSets": {"s1": {"uuid": "s1", "label2": "Default"}},
      "recs": {
        "r1": {"uuid": "r1", "recommandationSet": "s1", "code": "R1"},
        "r2": {"uuid": "r2", "recommandationSet": "s1", "code": "R2"}
      },
      "object": {
        "object": {"uuid": "o1", "name2": "Server"},
        "asset": {"asset": {"uuid": "a1", "code": "SRV", "label2": "Server"}}
      },
      "children": {
        "2": {
          "instance": {"id": 2, "name2": "  web SERVER ", "parent": 1},
          "consequences": {"9": {"id": 9, "c": 3, "i": -1, "d": -1}}
        }
      }
    }
  }
}`

func load(t *testing.T) *ingest.Document {
	t.Helper()
	d, err := ingest.LoadBytes([]byte(doc), ingest.Options{})
	require.NoError(t, err)
	return d
}

func TestNodeSearches(t *testing.T) {
	q := New(load(t).Registry)

	nodes := q.NodesByName("Web Server", 2)
	require.Len(t, nodes, 1)
	assert.Equal(t, 2, nodes[0].ID)
	assert.Len(t, q.NodesByName("web server", AnyLanguage), 1)
	assert.Empty(t, q.NodesByName("web server", 1))
	assert.Len(t, q.NodesByLabel("is", 2), 1)
	assert.Equal(t, 9, q.MaxConsequenceID())
}

func TestBlankTermsMatchNothing(t *testing.T) {
	q := New(load(t).Registry)

	assert.Empty(t, q.NodesByName("", 1))
	assert.Empty(t, q.NodesByName("   ", AnyLanguage))
	assert.Empty(t, q.NodesByLabel("", AnyLanguage))
	assert.Empty(t, q.ThreatsByLabel(" ", 1))
	assert.Empty(t, q.ThreatsByCode(""))
	assert.Empty(t, q.VulnerabilitiesByDescription("", AnyLanguage))
	assert.Empty(t, q.AssetsByLabel("", 3))
}

func TestThreatAndVulnerabilitySearches(t *testing.T) {
	q := New(load(t).Registry)

	assert.Len(t, q.ThreatsByCode("m1"), 1)
	assert.Len(t, q.ThreatsByLabel("flood", 2), 1)
	assert.Len(t, q.ThreatsByDescription("fire in the room", AnyLanguage), 1)
	_, ok := q.ThreatByUUID("t2")
	assert.True(t, ok)

	assert.Len(t, q.VulnerabilitiesByCode("V1"), 1)
	assert.Len(t, q.VulnerabilitiesByLabel("no extinguisher", 2), 1)
	assert.Empty(t, q.VulnerabilitiesByDescription("x", 2))

	threats := q.ThreatsForVulnerability("v1")
	require.Len(t, threats, 2)
	assert.Equal(t, "t1", threats[0].UUID)
	assert.Equal(t, "t2", threats[1].UUID)
}

func TestRiskAndLinkSearches(t *testing.T) {
	q := New(load(t).Registry)

	r, ok := q.RiskByID(10)
	require.True(t, ok)
	assert.Equal(t, "l1", r.AMV)
	assert.Len(t, q.RisksByNode(1), 2)
	assert.Empty(t, q.RisksByNode(2))
	assert.Len(t, q.RisksByLink("l2"), 1)
	assert.Len(t, q.RisksByThreat("t1"), 1)
	assert.Len(t, q.RisksByVulnerability("v1"), 2)

	l, ok := q.LinkByUUID("l1")
	require.True(t, ok)
	assert.Equal(t, []string{"m1"}, l.Measures)
	assert.Len(t, q.LinksByAsset("a1"), 2)
	assert.Len(t, q.LinksByThreat("t2"), 1)
}

func TestCatalogSearches(t *testing.T) {
	q := New(load(t).Registry)

	assert.Len(t, q.MeasuresByCode("7.5"), 1)
	assert.Len(t, q.MeasuresByReferentialLabel("iso 27002", 2), 1)
	_, ok := q.MeasureByUUID("m1")
	assert.True(t, ok)
	assert.Len(t, q.ReferentialsByLabel("ISO 27002", AnyLanguage), 1)
	assert.Len(t, q.RecommendationSetsByLabel("default", 2), 1)
	assert.Len(t, q.PendingBySetLabel("Default", 2), 2)
	assert.Len(t, q.AssetsByLabel("server", 2), 1)
}

func TestMutations(t *testing.T) {
	d := load(t)
	m := NewMutator(d.Registry)

	require.NoError(t, m.AttachToNode(models.KindThreat, "t2", 2))
	assert.Equal(t, []int{1, 2}, d.Registry.Threats.Owners("t2"))
	assert.Error(t, m.AttachToNode(models.KindThreat, "missing", 2))
	assert.Error(t, m.AttachToNode(models.KindThreat, "t2", 99))
	assert.Error(t, m.AttachToNode(models.KindNode, "1", 2))

	require.NoError(t, m.ResolveRecommendations(10, []string{"r1"}, "planned"))
	assert.False(t, d.Registry.Recommendations.Has("r1"))
	reco, ok := d.Registry.ResolvedRecommendations.Get("r1")
	require.True(t, ok)
	assert.True(t, reco.RelatedTo(10))
	assert.Error(t, m.ResolveRecommendations(10, []string{"nope"}, ""))
	assert.Error(t, m.ResolveRecommendations(404, []string{"r2"}, ""))

	removed := m.RemovePending(func(r *models.Recommendation) bool { return r.Code == "R2" })
	assert.Equal(t, 1, removed)
	assert.Equal(t, 0, d.Registry.Recommendations.Len())

	require.NoError(t, m.SetRiskRates(11, -1, -1))
	r, _ := d.Registry.Risk(11)
	assert.Equal(t, -1, r.MH)
	require.NoError(t, m.SetRiskRates(11, 2, -1))
	assert.Equal(t, 0, r.MH)
}

func TestNewObject(t *testing.T) {
	obj, asset, err := NewObject(NewAssetSpec{Code: "VOIT", Labels: models.Labels{Label2: "Car"}, Type: 1})
	require.NoError(t, err)
	assert.NotEmpty(t, obj.UUID)
	assert.NotEqual(t, obj.UUID, asset.UUID)
	assert.Equal(t, "VOIT", obj.AssetCode)
	assert.Equal(t, "Car", obj.Name2)

	_, _, err = NewObject(NewAssetSpec{})
	assert.Error(t, err)
}
