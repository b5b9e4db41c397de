package models

import "time"

// RiskAlert flags a risk whose cached value crosses a method threshold.
type RiskAlert struct {
	AlertID           string    `json:"alert_id"`
	DocumentID        string    `json:"document_id,omitempty"`
	NodeID            int       `json:"node_id"`
	NodeName          string    `json:"node_name,omitempty"`
	RiskID            int       `json:"risk_id"`
	Level             string    `json:"level"`
	Score             int       `json:"score"`
	CacheMaxRisk      int       `json:"cache_max_risk"`
	CacheTargetedRisk int       `json:"cache_targeted_risk"`
	Threat            string    `json:"threat,omitempty"`
	ThreatLabel       string    `json:"threat_label,omitempty"`
	Vulnerability     string    `json:"vulnerability,omitempty"`
	VulnLabel         string    `json:"vulnerability_label,omitempty"`
	Thresholds        Threshold `json:"thresholds"`
	RaisedAt          time.Time `json:"raised_at"`
	Findings          []RuleTag `json:"findings,omitempty"`
}

// Threshold holds the two risk levels from the method section.
type Threshold struct {
	Low  int `json:"seuil1"`
	High int `json:"seuil2"`
}
