package assemble

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"riskgraph/internal/codec"
	"riskgraph/internal/graph/ingest"
	"riskgraph/internal/graph/propagate"
	"riskgraph/pkg/models"
)

const fixture = `{
  "scales": {"1": {"min": 0, "max": 4}},
  "soas": [],
  "method": {"steps": {"initAnrContext": 1}, "thresholds": {"seuil1": 4, "seuil2": 8}},
  "instances": {
    "1": {
      "instance": {"id": 1, "name2": "Root", "parent": 0},
      "children": {
        "2": {
          "instance": {"id": 2, "name2": "Server", "parent": 1},
          "consequences": {"1": {"id": 1, "c": 5, "i": -1, "d": -1}},
          "threats": {"t1": {"uuid": "t1", "code": "M1"}},
          "vuls": {"v1": {"uuid": "v1", "code": "V1"}},
          "amvs": {"l1": {"uuid": "l1", "threat": "t1", "vulnerability": "v1", "asset": "a1"}},
          "risks": {"7": {"id": 7, "amv": "l1", "threat": "t1", "vulnerability": "v1",
                          "vulnerabilityRate": 3, "threatRate": 1, "kindOfMeasure": 1, "reductionAmount": 1}},
          "recs": {"r1": {"uuid": "r1", "code": "R1"}, "r2": {"uuid": "r2", "code": "R2"}},
          "recos": {"7": {"r2": {"uuid": "r2", "code": "R2", "commentAfter": "ok"}}},
          "object": {
            "object": {"uuid": "o1", "name2": "Server"},
            "categories": {"3": {"id": 3, "label2": "Hardware"}},
            "asset": {"asset": {"uuid": "a1", "code": "SRV"}, "themes": {"5": {"id": 5, "label2": "Physical"}}}
          }
        }
      }
    }
  }
}`

func fixedClock() time.Time { return time.Date(2024, 3, 9, 14, 5, 0, 0, time.UTC) }

func build(t *testing.T) (*ingest.Document, *Envelope) {
	t.Helper()
	doc, err := ingest.LoadBytes([]byte(fixture), ingest.Options{})
	require.NoError(t, err)
	propagate.Run(doc.Registry)
	return doc, NewAssembler(Options{WithEval: true, Now: fixedClock}).Assemble(doc)
}

func TestEnvelope(t *testing.T) {
	_, env := build(t)

	assert.Equal(t, "anr", env.Type)
	assert.Equal(t, DefaultVersion, env.MonarcVersion)
	assert.Equal(t, "2024-03-09 14:05:00", env.ExportDatetime)
	assert.True(t, env.WithEval)
	assert.NotNil(t, env.Scales)
	assert.NotNil(t, env.Soas)
	assert.Nil(t, env.Soacategories)
	assert.Contains(t, env.Method, "steps")
}

func TestTreeAndInlinedEntities(t *testing.T) {
	doc, env := build(t)

	require.Len(t, env.Instances, 1)
	root := env.Instances["1"]
	require.NotNil(t, root)
	assert.Equal(t, -1, root.Instance.C.Int())
	assert.Nil(t, root.Object)
	assert.Empty(t, root.Risks)

	child := root.Children["2"]
	require.NotNil(t, child)
	assert.Equal(t, 5, child.Instance.C.Int())
	assert.Equal(t, 1, child.Instance.IH)
	assert.Equal(t, 0, child.Instance.CH)
	require.Contains(t, child.Risks, "7")
	assert.Equal(t, 15, child.Risks["7"].CacheMaxRisk)
	assert.Equal(t, 10, child.Risks["7"].CacheTargetedRisk)
	assert.Contains(t, child.Threats, "t1")
	assert.Contains(t, child.Vuls, "v1")
	assert.Contains(t, child.Amvs, "l1")

	require.NotNil(t, child.Object)
	assert.Equal(t, "o1", child.Object.Object.UUID)
	assert.Contains(t, child.Object.Categories, "3")
	require.NotNil(t, child.Object.Asset)
	assert.Equal(t, "SRV", child.Object.Asset.Asset.Code)
	assert.Contains(t, child.Object.Asset.Themes, "5")
	assert.Contains(t, child.Object.Asset.Threats, "t1")

	node, _ := doc.Registry.Node(1)
	require.Len(t, node.Children, 1)
	assert.Equal(t, 2, node.Children[0].ID)
}

func TestRecommendationsStayExclusive(t *testing.T) {
	_, env := build(t)
	child := env.Instances["1"].Children["2"]

	assert.Contains(t, child.Recs, "r1")
	assert.NotContains(t, child.Recs, "r2")
	require.Contains(t, child.Recos, "7")
	reco := child.Recos["7"]["r2"]
	require.NotNil(t, reco)
	assert.Equal(t, models.Resolved, reco.State)

	out, err := codec.Encode(child.Recos)
	require.NoError(t, err)
	assert.Contains(t, string(out), `"commentAfter":"ok"`)

	out, err = codec.Encode(child.Recs)
	require.NoError(t, err)
	assert.NotContains(t, string(out), "commentAfter")
}

func TestLateOwnerIsPickedUp(t *testing.T) {
	doc, err := ingest.LoadBytes([]byte(fixture), ingest.Options{})
	require.NoError(t, err)
	doc.Registry.Threats.AddOwner("t1", 1)

	env := NewAssembler(Options{Now: fixedClock}).Assemble(doc)
	assert.Contains(t, env.Instances["1"].Threats, "t1")

	node, _ := doc.Registry.Node(1)
	assert.Equal(t, []string{"t1"}, node.Refs[models.KindThreat])
}

func TestOrphansAreLeftOut(t *testing.T) {
	doc, err := ingest.LoadBytes([]byte(`{"instances": {
	  "1": {"instance": {"id": 1, "parent": 0}},
	  "5": {"instance": {"id": 5, "parent": 77}}
	}}`), ingest.Options{})
	require.NoError(t, err)

	env := NewAssembler(Options{Now: fixedClock}).Assemble(doc)
	assert.Len(t, env.Instances, 1)
	assert.Contains(t, env.Instances, "1")
}

func TestStandalone(t *testing.T) {
	obj := &models.Object{UUID: "o9", AssetCode: "VOIT"}
	asset := &models.Asset{UUID: "a9", Code: "VOIT"}

	doc := NewAssembler(Options{}).Standalone(obj, asset)
	assert.Equal(t, "object", doc.Type)
	require.NotNil(t, doc.Asset)
	assert.Equal(t, "asset", doc.Asset.Type)
	assert.Equal(t, DefaultVersion, doc.Asset.MonarcVersion)
}
