package models

import "strings"

// Labels holds the four language variants of a label.
type Labels struct {
	Label1 string `json:"label1"`
	Label2 string `json:"label2"`
	Label3 string `json:"label3"`
	Label4 string `json:"label4"`
}

// Get returns the label for a 1-based language index.
func (l Labels) Get(lang int) string {
	switch lang {
	case 1:
		return l.Label1
	case 2:
		return l.Label2
	case 3:
		return l.Label3
	case 4:
		return l.Label4
	}
	return ""
}

// Descriptions holds the four language variants of a description.
type Descriptions struct {
	Description1 string `json:"description1"`
	Description2 string `json:"description2"`
	Description3 string `json:"description3"`
	Description4 string `json:"description4"`
}

// Get returns the description for a 1-based language index.
func (d Descriptions) Get(lang int) string {
	switch lang {
	case 1:
		return d.Description1
	case 2:
		return d.Description2
	case 3:
		return d.Description3
	case 4:
		return d.Description4
	}
	return ""
}

// MatchLabel reports whether any language variant equals s, ignoring case
// and surrounding whitespace. lang 0 checks every language.
func MatchLabel(l Labels, lang int, s string) bool {
	want := strings.TrimSpace(s)
	if want == "" {
		return false
	}
	if lang != 0 {
		return strings.EqualFold(strings.TrimSpace(l.Get(lang)), want)
	}
	for i := 1; i <= 4; i++ {
		if strings.EqualFold(strings.TrimSpace(l.Get(i)), want) {
			return true
		}
	}
	return false
}

// Threat is a threat catalog entry.
type Threat struct {
	UUID    string `json:"uuid"`
	Comment string `json:"comment"`
	Code    string `json:"code"`
	Labels
	Descriptions
	Status        int `json:"status"`
	Mode          int `json:"mode"`
	Trend         int `json:"trend"`
	Qualification int `json:"qualification"`
	C             int `json:"c"`
	I             int `json:"i"`
	A             int `json:"a"`
	Theme         int `json:"theme"`
}

// MethodThreat is a threat as listed in the method section, with its theme inlined.
type MethodThreat struct {
	UUID    string `json:"uuid"`
	Comment string `json:"comment"`
	Code    string `json:"code"`
	Labels
	Descriptions
	Trend         int    `json:"trend"`
	Qualification int    `json:"qualification"`
	C             int    `json:"c"`
	I             int    `json:"i"`
	A             int    `json:"a"`
	Theme         *Theme `json:"theme"`
}

// Vulnerability is a vulnerability catalog entry.
type Vulnerability struct {
	UUID string `json:"uuid"`
	Labels
	Descriptions
	Status int    `json:"status"`
	Mode   int    `json:"mode"`
	Code   string `json:"code"`
}

// Link ties an asset, a threat and a vulnerability together.
type Link struct {
	UUID          string   `json:"uuid"`
	Threat        string   `json:"threat"`
	Asset         string   `json:"asset"`
	Vulnerability string   `json:"vulnerability"`
	Status        int      `json:"status"`
	Measures      []string `json:"measures"`
}

// Theme groups threats.
type Theme struct {
	ID int `json:"id"`
	Labels
}

// Asset is an asset catalog entry, keyed by code.
type Asset struct {
	UUID string `json:"uuid"`
	Labels
	Descriptions
	Status int    `json:"status"`
	Mode   int    `json:"mode"`
	Type   int    `json:"type"`
	Code   string `json:"code"`
}

// Object is the library object a node instantiates.
type Object struct {
	UUID          string `json:"uuid"`
	Mode          int    `json:"mode"`
	Scope         int    `json:"scope"`
	Name1         string `json:"name1"`
	Name2         string `json:"name2"`
	Name3         string `json:"name3"`
	Name4         string `json:"name4"`
	Labels
	Disponibility *int `json:"disponibility"`
	Position      int  `json:"position"`
	Category      *int `json:"category"`

	Categories []*Category `json:"-"`
	AssetCode  string      `json:"-"`
}

// Category is an object library category.
type Category struct {
	ID int `json:"id"`
	Labels
	Parent *int `json:"parent"`
}

// Referential is a measure framework.
type Referential struct {
	UUID string `json:"uuid"`
	Labels
}

// MeasureCategory is the category a node-level measure belongs to.
type MeasureCategory struct {
	ID int `json:"id"`
	Labels
	Status int `json:"status"`
}

// Measure is a security control attached to a node.
type Measure struct {
	UUID string `json:"uuid"`
	Code string `json:"code"`
	Labels
	Status      int              `json:"status"`
	Category    *MeasureCategory `json:"category"`
	Referential *Referential     `json:"referential"`
}

// CatalogMeasure is a document-level measure that references its category
// and referential by id.
type CatalogMeasure struct {
	Category    string `json:"category"`
	Referential string `json:"referential"`
	UUID        string `json:"uuid"`
	Code        string `json:"code"`
	Labels
	Status int `json:"status"`
}

// RecommendationSet groups recommendations.
type RecommendationSet struct {
	UUID string `json:"uuid"`
	Labels
}

// KindOfMeasureAccept is the treatment kind under which the targeted risk equals the max risk.
const KindOfMeasureAccept = 3

// Risk is an information risk evaluated on a node.
type Risk struct {
	ID                int    `json:"id"`
	Specific          int    `json:"specific"`
	MH                int    `json:"mh"`
	ThreatRate        int    `json:"threatRate"`
	VulnerabilityRate int    `json:"vulnerabilityRate"`
	KindOfMeasure     int    `json:"kindOfMeasure"`
	ReductionAmount   int    `json:"reductionAmount"`
	Comment           string `json:"comment"`
	CommentAfter      string `json:"commentAfter"`
	RiskC             int    `json:"riskC"`
	RiskI             int    `json:"riskI"`
	RiskD             int    `json:"riskD"`
	CacheMaxRisk      int    `json:"cacheMaxRisk"`
	CacheTargetedRisk int    `json:"cacheTargetedRisk"`
	AMV               string `json:"amv"`
	Threat            string `json:"threat"`
	Vulnerability     string `json:"vulnerability"`
	Context           string `json:"context"`
	RiskOwner         string `json:"riskOwner"`
}

// SetThreatRate updates the threat rate and the evaluated marker.
func (r *Risk) SetThreatRate(v int) {
	r.ThreatRate = v
	r.updateMH()
}

// SetVulnerabilityRate updates the vulnerability rate and the evaluated marker.
func (r *Risk) SetVulnerabilityRate(v int) {
	r.VulnerabilityRate = v
	r.updateMH()
}

func (r *Risk) updateMH() {
	if r.VulnerabilityRate > -1 || r.ThreatRate > -1 {
		r.MH = 0
		return
	}
	r.MH = -1
}

// Accepted reports whether the risk treatment is acceptance.
func (r *Risk) Accepted() bool { return r.KindOfMeasure == KindOfMeasureAccept }
