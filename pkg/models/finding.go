package models

// RuleTag represents a rule match annotation.
type RuleTag struct {
	ID       string `json:"id,omitempty"`
	Name     string `json:"name,omitempty"`
	Severity string `json:"severity,omitempty"`
	Theme    string `json:"theme,omitempty"`
	Control  string `json:"control,omitempty"`
}

// RiskFinding is a rule match against one risk of one node.
type RiskFinding struct {
	RuleTag
	DocumentID        string `json:"document_id,omitempty"`
	NodeID            int    `json:"node_id"`
	NodeName          string `json:"node_name,omitempty"`
	RiskID            int    `json:"risk_id"`
	AssetCode         string `json:"asset_code,omitempty"`
	Threat            string `json:"threat,omitempty"`
	ThreatCode        string `json:"threat_code,omitempty"`
	Vulnerability     string `json:"vulnerability,omitempty"`
	VulnCode          string `json:"vulnerability_code,omitempty"`
	CacheMaxRisk      int    `json:"cache_max_risk"`
	CacheTargetedRisk int    `json:"cache_targeted_risk"`
}
