package rules

import "riskgraph/pkg/models"

// Engine applies risk rules to one risk event.
type Engine interface {
	Apply(event *RiskEvent) []models.RuleTag
}

// NoopEngine returns no tags.
type NoopEngine struct{}

// Apply returns an empty tag list.
func (n *NoopEngine) Apply(event *RiskEvent) []models.RuleTag {
	return nil
}
