package alerts

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"riskgraph/internal/rules"
	"riskgraph/pkg/models"
)

// Risk levels, ordered.
const (
	LevelLow    = "low"
	LevelMedium = "medium"
	LevelHigh   = "high"
)

var levelRank = map[string]int{LevelLow: 1, LevelMedium: 2, LevelHigh: 3}

// Config controls alert scoring behavior.
type Config struct {
	// MinLevel is the lowest level that raises an alert.
	MinLevel string
	// UseMax scores the max risk instead of the targeted risk.
	UseMax bool
}

// Scorer classifies risk caches against the method thresholds.
type Scorer struct {
	cfg Config
	now func() time.Time
}

// NewScorer creates a new scorer.
func NewScorer(cfg Config) *Scorer {
	cfg.MinLevel = strings.ToLower(strings.TrimSpace(cfg.MinLevel))
	if _, ok := levelRank[cfg.MinLevel]; !ok {
		cfg.MinLevel = LevelHigh
	}
	return &Scorer{cfg: cfg, now: time.Now}
}

// Classify maps a risk value to a level. Values at or below seuil1 are
// low, values at or below seuil2 medium, the rest high. Unevaluated risks
// (negative values) have no level.
func Classify(value int, th models.Threshold) string {
	switch {
	case value < 0:
		return ""
	case value <= th.Low:
		return LevelLow
	case value <= th.High:
		return LevelMedium
	}
	return LevelHigh
}

// Score returns an alert for every event whose level reaches the
// configured minimum. Findings on the same (node, risk) are attached and
// raise the score.
func (s *Scorer) Score(events []*rules.RiskEvent, findings []*models.RiskFinding, th models.Threshold) []*models.RiskAlert {
	byRisk := make(map[string][]models.RuleTag)
	for _, f := range findings {
		k := riskKey(f.NodeID, f.RiskID)
		byRisk[k] = append(byRisk[k], f.RuleTag)
	}

	now := s.now().UTC()
	var out []*models.RiskAlert
	for _, ev := range events {
		value := ev.Risk.CacheTargetedRisk
		if s.cfg.UseMax {
			value = ev.Risk.CacheMaxRisk
		}
		level := Classify(value, th)
		if levelRank[level] < levelRank[s.cfg.MinLevel] {
			continue
		}

		key := riskKey(ev.Node.ID, ev.Risk.ID)
		tags := byRisk[key]
		alert := &models.RiskAlert{
			AlertID:           newAlertID(key),
			NodeID:            ev.Node.ID,
			NodeName:          ev.Node.Name(ev.Language),
			RiskID:            ev.Risk.ID,
			Level:             level,
			Score:             score(value, tags),
			CacheMaxRisk:      ev.Risk.CacheMaxRisk,
			CacheTargetedRisk: ev.Risk.CacheTargetedRisk,
			Threat:            ev.Risk.Threat,
			Vulnerability:     ev.Risk.Vulnerability,
			Thresholds:        th,
			RaisedAt:          now,
			Findings:          tags,
		}
		if ev.Threat != nil {
			alert.ThreatLabel = ev.Threat.Labels.Get(ev.Language)
		}
		if ev.Vulnerability != nil {
			alert.VulnLabel = ev.Vulnerability.Labels.Get(ev.Language)
		}
		out = append(out, alert)
	}
	return out
}

func score(value int, tags []models.RuleTag) int {
	unique := make(map[string]struct{})
	severitySum := 0
	for _, tag := range tags {
		k := tag.ID
		if k == "" {
			k = tag.Name
		}
		unique[k] = struct{}{}
		severitySum += severityWeight(tag.Severity)
	}
	return value + severitySum + 2*len(unique)
}

func severityWeight(level string) int {
	switch strings.ToLower(level) {
	case "critical":
		return 7
	case "high":
		return 5
	case "medium":
		return 3
	}
	return 1
}

func riskKey(nodeID, riskID int) string {
	return fmt.Sprintf("node:%d:risk:%d", nodeID, riskID)
}

// newAlertID is stable per (node, risk) so sinks can deduplicate re-runs.
func newAlertID(key string) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte("riskgraph:"+key)).String()
}
