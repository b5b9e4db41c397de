package models

import "encoding/json"

// Kind names an entity pool in the registry.
type Kind string

const (
	KindNode                   Kind = "node"
	KindAsset                  Kind = "asset"
	KindObject                 Kind = "object"
	KindTheme                  Kind = "theme"
	KindThreat                 Kind = "threat"
	KindMethodThreat           Kind = "method_threat"
	KindVulnerability          Kind = "vulnerability"
	KindLink                   Kind = "amv"
	KindMeasure                Kind = "measure"
	KindCatalogMeasure         Kind = "catalog_measure"
	KindReferential            Kind = "referential"
	KindRecommendationSet      Kind = "recset"
	KindRecommendation         Kind = "rec"
	KindResolvedRecommendation Kind = "reco"
	KindRisk                   Kind = "risk"
)

// Level is a confidentiality, integrity or availability value that may be unset.
type Level struct {
	Value int
	Set   bool
}

// LevelOf returns a set level.
func LevelOf(v int) Level { return Level{Value: v, Set: true} }

// Int returns the level value, -1 when unset.
func (l Level) Int() int {
	if !l.Set {
		return -1
	}
	return l.Value
}

func (l Level) MarshalJSON() ([]byte, error) {
	if !l.Set {
		return []byte("null"), nil
	}
	return json.Marshal(l.Value)
}

// Node is one instance of the analysis tree.
type Node struct {
	ID            int
	Names         [4]string
	Labels        [4]string
	Disponibility *int
	Level         *int
	AssetType     *int
	Exportable    *int
	Position      *int
	Root          *int
	Asset         string
	Object        string
	Parent        int

	C, I, D    Level
	CH, IH, DH bool

	Consequences []*Consequence
	Children     []*Node

	// Refs lists the canonical entity ids attached to this node, per kind,
	// in first-attachment order.
	Refs map[Kind][]string
}

// NewNode returns an empty node with the given id.
func NewNode(id int) *Node {
	return &Node{ID: id, Refs: make(map[Kind][]string)}
}

// Attach records a canonical entity reference on the node.
func (n *Node) Attach(kind Kind, id string) {
	if n.Refs == nil {
		n.Refs = make(map[Kind][]string)
	}
	n.Refs[kind] = append(n.Refs[kind], id)
}

// IsRoot reports whether the node has no parent.
func (n *Node) IsRoot() bool { return n.Parent == 0 }

// Name returns the name for a 1-based language index, or "".
func (n *Node) Name(lang int) string {
	if lang < 1 || lang > 4 {
		return ""
	}
	return n.Names[lang-1]
}

// Label returns the label for a 1-based language index, or "".
func (n *Node) Label(lang int) string {
	if lang < 1 || lang > 4 {
		return ""
	}
	return n.Labels[lang-1]
}

// NodeAttributes is the serialized "instance" block of a node.
type NodeAttributes struct {
	ID            int    `json:"id"`
	Name1         string `json:"name1"`
	Name2         string `json:"name2"`
	Name3         string `json:"name3"`
	Name4         string `json:"name4"`
	Label1        string `json:"label1"`
	Label2        string `json:"label2"`
	Label3        string `json:"label3"`
	Label4        string `json:"label4"`
	Disponibility *int   `json:"disponibility"`
	Level         *int   `json:"level"`
	AssetType     *int   `json:"assetType"`
	Exportable    *int   `json:"exportable"`
	Position      *int   `json:"position"`
	C             Level  `json:"c"`
	I             Level  `json:"i"`
	D             Level  `json:"d"`
	CH            int    `json:"ch"`
	IH            int    `json:"ih"`
	DH            int    `json:"dh"`
	Asset         string `json:"asset"`
	Object        string `json:"object"`
	Root          *int   `json:"root"`
	Parent        int    `json:"parent"`
}

// Attributes returns the serializable attribute block.
func (n *Node) Attributes() NodeAttributes {
	return NodeAttributes{
		ID:            n.ID,
		Name1:         n.Names[0],
		Name2:         n.Names[1],
		Name3:         n.Names[2],
		Name4:         n.Names[3],
		Label1:        n.Labels[0],
		Label2:        n.Labels[1],
		Label3:        n.Labels[2],
		Label4:        n.Labels[3],
		Disponibility: n.Disponibility,
		Level:         n.Level,
		AssetType:     n.AssetType,
		Exportable:    n.Exportable,
		Position:      n.Position,
		C:             n.C,
		I:             n.I,
		D:             n.D,
		CH:            boolInt(n.CH),
		IH:            boolInt(n.IH),
		DH:            boolInt(n.DH),
		Asset:         n.Asset,
		Object:        n.Object,
		Root:          n.Root,
		Parent:        n.Parent,
	}
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// Consequence is a per-node impact evaluation.
type Consequence struct {
	ID              int             `json:"id"`
	IsHidden        int             `json:"isHidden"`
	LocallyTouched  int             `json:"locallyTouched"`
	C               int             `json:"c"`
	I               int             `json:"i"`
	D               int             `json:"d"`
	ScaleImpactType ScaleImpactType `json:"scaleImpactType"`
}

// ScaleImpactType describes the impact scale a consequence is evaluated on.
type ScaleImpactType struct {
	ID       int    `json:"id"`
	Type     int    `json:"type"`
	Label1   string `json:"label1"`
	Label2   string `json:"label2"`
	Label3   string `json:"label3"`
	Label4   string `json:"label4"`
	IsSys    int    `json:"isSys"`
	IsHidden int    `json:"isHidden"`
	Position int    `json:"position"`
	Scale    int    `json:"scale"`
}
