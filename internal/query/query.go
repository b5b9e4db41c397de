// Package query answers lookups over a loaded registry. All searches are
// linear scans in first-sighting order; label searches trim and ignore case.
package query

import (
	"strings"

	"riskgraph/internal/graph/registry"
	"riskgraph/pkg/models"
)

// AnyLanguage matches a label in any of the four languages.
const AnyLanguage = 0

// Querier wraps a registry with lookup helpers.
type Querier struct {
	reg *registry.Registry
}

// New returns a querier over reg.
func New(reg *registry.Registry) *Querier {
	return &Querier{reg: reg}
}

// equalFold compares trimmed strings case-insensitively. A blank term
// matches nothing.
func equalFold(a, b string) bool {
	b = strings.TrimSpace(b)
	return b != "" && strings.EqualFold(strings.TrimSpace(a), b)
}

func matchNodeText(values [4]string, lang int, s string) bool {
	if lang >= 1 && lang <= 4 {
		return equalFold(values[lang-1], s)
	}
	for _, v := range values {
		if equalFold(v, s) {
			return true
		}
	}
	return false
}

// NodesByName returns nodes whose name in lang matches.
func (q *Querier) NodesByName(name string, lang int) []*models.Node {
	return q.reg.Nodes.Filter(func(n *models.Node) bool { return matchNodeText(n.Names, lang, name) })
}

// NodesByLabel returns nodes whose label in lang matches.
func (q *Querier) NodesByLabel(label string, lang int) []*models.Node {
	return q.reg.Nodes.Filter(func(n *models.Node) bool { return matchNodeText(n.Labels, lang, label) })
}

// RiskByID returns the risk with the given id.
func (q *Querier) RiskByID(id int) (*models.Risk, bool) {
	return q.reg.Risk(id)
}

// RisksByNode returns the risks owned by a node.
func (q *Querier) RisksByNode(nodeID int) []*models.Risk {
	return q.reg.Risks.OwnedBy(nodeID)
}

// RisksByLink returns the risks built on a link uuid.
func (q *Querier) RisksByLink(amv string) []*models.Risk {
	return q.reg.Risks.Filter(func(r *models.Risk) bool { return r.AMV == amv })
}

// RisksByThreat returns the risks referencing a threat uuid.
func (q *Querier) RisksByThreat(threat string) []*models.Risk {
	return q.reg.Risks.Filter(func(r *models.Risk) bool { return r.Threat == threat })
}

// RisksByVulnerability returns the risks referencing a vulnerability uuid.
func (q *Querier) RisksByVulnerability(vul string) []*models.Risk {
	return q.reg.Risks.Filter(func(r *models.Risk) bool { return r.Vulnerability == vul })
}

// ThreatByUUID returns a threat.
func (q *Querier) ThreatByUUID(id string) (*models.Threat, bool) {
	return q.reg.Threats.Get(id)
}

// ThreatsByCode returns threats with the given code.
func (q *Querier) ThreatsByCode(code string) []*models.Threat {
	return q.reg.Threats.Filter(func(t *models.Threat) bool { return equalFold(t.Code, code) })
}

// ThreatsByLabel returns threats whose label in lang matches.
func (q *Querier) ThreatsByLabel(label string, lang int) []*models.Threat {
	return q.reg.Threats.Filter(func(t *models.Threat) bool { return models.MatchLabel(t.Labels, lang, label) })
}

// ThreatsByDescription returns threats whose description in lang matches.
func (q *Querier) ThreatsByDescription(desc string, lang int) []*models.Threat {
	return q.reg.Threats.Filter(func(t *models.Threat) bool { return matchDescription(t.Descriptions, lang, desc) })
}

// VulnerabilityByUUID returns a vulnerability.
func (q *Querier) VulnerabilityByUUID(id string) (*models.Vulnerability, bool) {
	return q.reg.Vulnerabilities.Get(id)
}

// VulnerabilitiesByCode returns vulnerabilities with the given code.
func (q *Querier) VulnerabilitiesByCode(code string) []*models.Vulnerability {
	return q.reg.Vulnerabilities.Filter(func(v *models.Vulnerability) bool { return equalFold(v.Code, code) })
}

// VulnerabilitiesByLabel returns vulnerabilities whose label in lang matches.
func (q *Querier) VulnerabilitiesByLabel(label string, lang int) []*models.Vulnerability {
	return q.reg.Vulnerabilities.Filter(func(v *models.Vulnerability) bool { return models.MatchLabel(v.Labels, lang, label) })
}

// VulnerabilitiesByDescription returns vulnerabilities whose description in lang matches.
func (q *Querier) VulnerabilitiesByDescription(desc string, lang int) []*models.Vulnerability {
	return q.reg.Vulnerabilities.Filter(func(v *models.Vulnerability) bool {
		return matchDescription(v.Descriptions, lang, desc)
	})
}

func matchDescription(d models.Descriptions, lang int, s string) bool {
	if lang != AnyLanguage {
		return equalFold(d.Get(lang), s)
	}
	for i := 1; i <= 4; i++ {
		if equalFold(d.Get(i), s) {
			return true
		}
	}
	return false
}

// LinkByUUID returns a link.
func (q *Querier) LinkByUUID(id string) (*models.Link, bool) {
	return q.reg.Links.Get(id)
}

// LinksByThreat returns links referencing a threat uuid.
func (q *Querier) LinksByThreat(threat string) []*models.Link {
	return q.reg.Links.Filter(func(l *models.Link) bool { return l.Threat == threat })
}

// LinksByVulnerability returns links referencing a vulnerability uuid.
func (q *Querier) LinksByVulnerability(vul string) []*models.Link {
	return q.reg.Links.Filter(func(l *models.Link) bool { return l.Vulnerability == vul })
}

// LinksByAsset returns links referencing an asset uuid.
func (q *Querier) LinksByAsset(asset string) []*models.Link {
	return q.reg.Links.Filter(func(l *models.Link) bool { return l.Asset == asset })
}

// ThreatsForVulnerability returns the distinct threats linked to a
// vulnerability uuid, in link order.
func (q *Querier) ThreatsForVulnerability(vul string) []*models.Threat {
	seen := make(map[string]struct{})
	var out []*models.Threat
	for _, l := range q.LinksByVulnerability(vul) {
		if _, ok := seen[l.Threat]; ok {
			continue
		}
		seen[l.Threat] = struct{}{}
		if t, ok := q.reg.Threats.Get(l.Threat); ok {
			out = append(out, t)
		}
	}
	return out
}

// MeasureByUUID returns a node-level measure.
func (q *Querier) MeasureByUUID(id string) (*models.Measure, bool) {
	return q.reg.Measures.Get(id)
}

// MeasuresByCode returns node-level measures with the given code.
func (q *Querier) MeasuresByCode(code string) []*models.Measure {
	return q.reg.Measures.Filter(func(m *models.Measure) bool { return equalFold(m.Code, code) })
}

// MeasuresByReferentialLabel returns node-level measures whose referential label matches.
func (q *Querier) MeasuresByReferentialLabel(label string, lang int) []*models.Measure {
	return q.reg.Measures.Filter(func(m *models.Measure) bool {
		return m.Referential != nil && models.MatchLabel(m.Referential.Labels, lang, label)
	})
}

// ReferentialsByLabel returns referentials whose label matches.
func (q *Querier) ReferentialsByLabel(label string, lang int) []*models.Referential {
	return q.reg.Referentials.Filter(func(r *models.Referential) bool { return models.MatchLabel(r.Labels, lang, label) })
}

// RecommendationSetsByLabel returns recommendation sets whose label matches.
func (q *Querier) RecommendationSetsByLabel(label string, lang int) []*models.RecommendationSet {
	return q.reg.RecommendationSets.Filter(func(s *models.RecommendationSet) bool {
		return models.MatchLabel(s.Labels, lang, label)
	})
}

// PendingBySetLabel returns pending recommendations belonging to a set
// whose label matches.
func (q *Querier) PendingBySetLabel(label string, lang int) []*models.Recommendation {
	sets := make(map[string]struct{})
	for _, s := range q.RecommendationSetsByLabel(label, lang) {
		sets[s.UUID] = struct{}{}
	}
	return q.reg.Recommendations.Filter(func(r *models.Recommendation) bool {
		_, ok := sets[r.RecommandationSet]
		return ok
	})
}

// AssetsByLabel returns assets whose label matches.
func (q *Querier) AssetsByLabel(label string, lang int) []*models.Asset {
	return q.reg.Assets.Filter(func(a *models.Asset) bool { return models.MatchLabel(a.Labels, lang, label) })
}

// MaxConsequenceID returns the largest consequence id across all nodes, or 0.
func (q *Querier) MaxConsequenceID() int {
	maxID := 0
	for _, n := range q.reg.Nodes.All() {
		for _, c := range n.Consequences {
			maxID = max(maxID, c.ID)
		}
	}
	return maxID
}
