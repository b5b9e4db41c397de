package rules

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"riskgraph/internal/graph/registry"
	"riskgraph/pkg/models"
)

const fireRule = `title: Fire threat on server
id: fire-on-server
status: experimental
logsource:
  product: monarc
  category: risk
detection:
  selection:
    ThreatCode: M1
    AssetCode: SRV
  condition: selection
level: high
tags:
  - monarc.theme.physical_damage
  - iso27002.7.5
`

const windowsRule = `title: Process creation
logsource:
  product: windows
  service: sysmon
detection:
  selection:
    EventID: 1
  condition: selection
`

const countRule = `title: Many risks
logsource:
  product: monarc
detection:
  selection:
    Treatment: accepted
  condition: selection | count() > 5
`

func writeRule(t *testing.T, dir, name, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
}

func sampleRegistry() *registry.Registry {
	reg := registry.New()
	node := models.NewNode(1)
	node.Names[1] = "Web server"
	reg.Nodes.Register(registry.NodeKey(1), "", func() *models.Node { return node })
	reg.Assets.GetOrCreate("SRV", 1, "", func() *models.Asset { return &models.Asset{Code: "SRV"} })
	reg.Threats.GetOrCreate("t1", 1, "", func() *models.Threat { return &models.Threat{UUID: "t1", Code: "M1"} })
	reg.Threats.GetOrCreate("t2", 1, "", func() *models.Threat { return &models.Threat{UUID: "t2", Code: "M2"} })
	reg.Risks.GetOrCreate("10", 1, "", func() *models.Risk {
		return &models.Risk{ID: 10, Threat: "t1", CacheMaxRisk: 12, CacheTargetedRisk: 6}
	})
	reg.Risks.GetOrCreate("11", 1, "", func() *models.Risk {
		return &models.Risk{ID: 11, Threat: "t2"}
	})
	return reg
}

func TestSigmaEngineMatchesRiskEvents(t *testing.T) {
	dir := t.TempDir()
	writeRule(t, dir, "fire.yml", fireRule)
	writeRule(t, dir, "windows.yaml", windowsRule)
	writeRule(t, dir, "count.yml", countRule)
	writeRule(t, dir, "broken.yml", "title: [unterminated")
	writeRule(t, dir, "notes.txt", "ignored")

	engine, stats, err := NewSigmaEngine(dir)
	require.NoError(t, err)
	assert.Equal(t, 4, stats.TotalFiles)
	assert.Equal(t, 1, stats.Loaded)
	assert.Equal(t, 1, stats.SkippedDatasource)
	assert.Equal(t, 1, stats.SkippedComplex)
	assert.Equal(t, 1, stats.SkippedInvalid)
	assert.Equal(t, 1, engine.Len())

	findings := Evaluate(engine, Events(sampleRegistry(), 2))
	require.Len(t, findings, 1)

	f := findings[0]
	assert.Equal(t, "fire-on-server", f.ID)
	assert.Equal(t, "high", f.Severity)
	assert.Equal(t, "physical-damage", f.Theme)
	assert.Equal(t, "7.5", f.Control)
	assert.Equal(t, 10, f.RiskID)
	assert.Equal(t, 1, f.NodeID)
	assert.Equal(t, "Web server", f.NodeName)
	assert.Equal(t, "M1", f.ThreatCode)
	assert.Equal(t, "SRV", f.AssetCode)
	assert.Equal(t, 12, f.CacheMaxRisk)
}

func TestNewSigmaEngineRejectsNonYAMLFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rule.json")
	require.NoError(t, os.WriteFile(path, []byte("{}"), 0o644))

	_, _, err := NewSigmaEngine(path)
	assert.Error(t, err)

	_, _, err = NewSigmaEngine(filepath.Join(dir, "missing"))
	assert.Error(t, err)
}

func TestEventFields(t *testing.T) {
	events := Events(sampleRegistry(), 0)
	require.Len(t, events, 2)

	fields := events[0].Fields()
	assert.Equal(t, 10, fields["RiskID"])
	assert.Equal(t, "M1", fields["ThreatCode"])
	assert.Equal(t, "SRV", fields["AssetCode"])
	assert.Equal(t, "untreated", fields["Treatment"])
	assert.NotContains(t, fields, "VulnerabilityCode")
}

func TestNoopEngine(t *testing.T) {
	assert.Empty(t, Evaluate(&NoopEngine{}, Events(sampleRegistry(), 2)))
	assert.Nil(t, Evaluate(nil, Events(sampleRegistry(), 2)))
}

func TestParseRiskTags(t *testing.T) {
	theme, control := parseRiskTags([]string{"attack.t1059", "ISO27002.12.3.1", "monarc.theme.legal_risk"})
	assert.Equal(t, "legal-risk", theme)
	assert.Equal(t, "12.3.1", control)
}
