package assemble

import "riskgraph/pkg/models"

const (
	typeANR      = "anr"
	typeInstance = "instance"
	typeObject   = "object"
	typeAsset    = "asset"
)

// Envelope is the root of an assembled document.
type Envelope struct {
	Type           string `json:"type"`
	MonarcVersion  string `json:"monarc_version"`
	ExportDatetime string `json:"export_datetime"`
	WithEval       bool   `json:"with_eval"`

	Instances    map[string]*InstanceDoc            `json:"instances"`
	Referentials map[string]*models.Referential     `json:"referentials"`
	Measures     map[string]*models.CatalogMeasure `json:"measures"`
	Method       map[string]interface{}             `json:"method,omitempty"`

	AnrMetadatasOnInstances interface{} `json:"anrMetadatasOnInstances,omitempty"`
	MeasuresMeasures        interface{} `json:"measuresMeasures,omitempty"`
	OperationalRiskScales   interface{} `json:"operationalRiskScales,omitempty"`
	Scales                  interface{} `json:"scales,omitempty"`
	ScalesComments          interface{} `json:"scalesComments,omitempty"`
	SoaScaleComment         interface{} `json:"soaScaleComment,omitempty"`
	Soacategories           interface{} `json:"soacategories,omitempty"`
	Soas                    interface{} `json:"soas,omitempty"`
}

// InstanceDoc is one node with its attached entities inlined.
type InstanceDoc struct {
	Type          string                `json:"type"`
	MonarcVersion string                `json:"monarc_version"`
	WithEval      bool                  `json:"with_eval"`
	Instance      models.NodeAttributes `json:"instance"`
	Object        *ObjectDoc            `json:"object"`

	Consequences map[string]*models.Consequence               `json:"consequences"`
	Risks        map[string]*models.Risk                      `json:"risks"`
	Vuls         map[string]*models.Vulnerability             `json:"vuls"`
	Threats      map[string]*models.Threat                    `json:"threats"`
	Amvs         map[string]*models.Link                      `json:"amvs"`
	Measures     map[string]*models.Measure                   `json:"measures"`
	RecSets      map[string]*models.RecommendationSet         `json:"recSets"`
	Recs         map[string]*models.Recommendation            `json:"recs"`
	Recos        map[string]map[string]*models.Recommendation `json:"recos"`
	Children     map[string]*InstanceDoc                      `json:"children"`
}

// ObjectDoc is the library object block of an instance.
type ObjectDoc struct {
	Type          string                      `json:"type"`
	MonarcVersion string                      `json:"monarc_version"`
	Object        *models.Object              `json:"object"`
	Categories    map[string]*models.Category `json:"categories"`
	Asset         *AssetDoc                   `json:"asset"`
}

// AssetDoc is the asset block of an object, with the node's catalog
// entries re-inlined.
type AssetDoc struct {
	Type          string                           `json:"type"`
	MonarcVersion string                           `json:"monarc_version"`
	Asset         *models.Asset                    `json:"asset"`
	Amvs          map[string]*models.Link          `json:"amvs"`
	Threats       map[string]*models.Threat        `json:"threats"`
	Vuls          map[string]*models.Vulnerability `json:"vuls"`
	Themes        map[string]*models.Theme         `json:"themes"`
}
