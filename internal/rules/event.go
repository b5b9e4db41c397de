package rules

import (
	"riskgraph/internal/graph/registry"
	"riskgraph/pkg/models"
)

var treatments = map[int]string{
	0: "untreated",
	1: "reduction",
	2: "denied",
	3: "accepted",
	4: "shared",
	5: "not_treated",
}

// RiskEvent is one (node, risk) pair flattened for rule evaluation.
type RiskEvent struct {
	Node          *models.Node
	Risk          *models.Risk
	Asset         *models.Asset
	Threat        *models.Threat
	Vulnerability *models.Vulnerability
	Language      int
}

// Events returns one event per risk owned by each node, in node id order.
// lang selects which label variant is exposed to rules.
func Events(reg *registry.Registry, lang int) []*RiskEvent {
	if lang < 1 || lang > 4 {
		lang = 2
	}
	var out []*RiskEvent
	for _, n := range reg.NodesByID() {
		var asset *models.Asset
		if assets := reg.Assets.OwnedBy(n.ID); len(assets) > 0 {
			asset = assets[0]
		}
		for _, r := range reg.Risks.OwnedBy(n.ID) {
			ev := &RiskEvent{Node: n, Risk: r, Asset: asset, Language: lang}
			ev.Threat, _ = reg.Threats.Get(r.Threat)
			ev.Vulnerability, _ = reg.Vulnerabilities.Get(r.Vulnerability)
			out = append(out, ev)
		}
	}
	return out
}

// Fields flattens the event into the map rules match against.
func (e *RiskEvent) Fields() map[string]interface{} {
	r := e.Risk
	buf := map[string]interface{}{
		"NodeID":            e.Node.ID,
		"NodeName":          e.Node.Name(e.Language),
		"NodeLabel":         e.Node.Label(e.Language),
		"RiskID":            r.ID,
		"Specific":          r.Specific,
		"ThreatRate":        r.ThreatRate,
		"VulnerabilityRate": r.VulnerabilityRate,
		"KindOfMeasure":     r.KindOfMeasure,
		"Treatment":         treatments[r.KindOfMeasure],
		"ReductionAmount":   r.ReductionAmount,
		"CacheMaxRisk":      r.CacheMaxRisk,
		"CacheTargetedRisk": r.CacheTargetedRisk,
		"C":                 e.Node.C.Int(),
		"I":                 e.Node.I.Int(),
		"D":                 e.Node.D.Int(),
		"ThreatUUID":        r.Threat,
		"VulnerabilityUUID": r.Vulnerability,
		"AmvUUID":           r.AMV,
	}
	if r.Comment != "" {
		buf["Comment"] = r.Comment
	}
	if e.Asset != nil {
		buf["AssetCode"] = e.Asset.Code
		buf["AssetLabel"] = e.Asset.Labels.Get(e.Language)
		buf["AssetType"] = e.Asset.Type
	}
	if e.Threat != nil {
		buf["ThreatCode"] = e.Threat.Code
		buf["ThreatLabel"] = e.Threat.Labels.Get(e.Language)
		buf["ThreatTheme"] = e.Threat.Theme
	}
	if e.Vulnerability != nil {
		buf["VulnerabilityCode"] = e.Vulnerability.Code
		buf["VulnerabilityLabel"] = e.Vulnerability.Labels.Get(e.Language)
	}
	return buf
}

// Finding builds the finding record for a matched tag.
func (e *RiskEvent) Finding(tag models.RuleTag) *models.RiskFinding {
	f := &models.RiskFinding{
		RuleTag:           tag,
		NodeID:            e.Node.ID,
		NodeName:          e.Node.Name(e.Language),
		RiskID:            e.Risk.ID,
		Threat:            e.Risk.Threat,
		Vulnerability:     e.Risk.Vulnerability,
		CacheMaxRisk:      e.Risk.CacheMaxRisk,
		CacheTargetedRisk: e.Risk.CacheTargetedRisk,
	}
	if e.Asset != nil {
		f.AssetCode = e.Asset.Code
	}
	if e.Threat != nil {
		f.ThreatCode = e.Threat.Code
	}
	if e.Vulnerability != nil {
		f.VulnCode = e.Vulnerability.Code
	}
	return f
}

// Evaluate runs engine over every risk event and returns the findings.
func Evaluate(engine Engine, events []*RiskEvent) []*models.RiskFinding {
	if engine == nil {
		return nil
	}
	var out []*models.RiskFinding
	for _, ev := range events {
		for _, tag := range engine.Apply(ev) {
			out = append(out, ev.Finding(tag))
		}
	}
	return out
}
