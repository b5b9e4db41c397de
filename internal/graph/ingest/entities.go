package ingest

import (
	"sort"
	"strconv"

	"riskgraph/internal/codec"
	"riskgraph/pkg/models"
)

type staged[T any] struct {
	id    string
	fp    string
	value T
}

func entryObject(field string, v interface{}) (codec.Object, error) {
	obj, ok := codec.AsObject(v)
	if !ok {
		return nil, notObject(field)
	}
	return obj, nil
}

func labels(obj codec.Object) models.Labels {
	return models.Labels{
		Label1: codec.String(obj, "label1"),
		Label2: codec.String(obj, "label2"),
		Label3: codec.String(obj, "label3"),
		Label4: codec.String(obj, "label4"),
	}
}

func descriptions(obj codec.Object) models.Descriptions {
	return models.Descriptions{
		Description1: codec.String(obj, "description1"),
		Description2: codec.String(obj, "description2"),
		Description3: codec.String(obj, "description3"),
		Description4: codec.String(obj, "description4"),
	}
}

// refInt reads an integer that may be written either as a scalar or as an
// object carrying an "id".
func refInt(obj codec.Object, key string) *int {
	v, ok := codec.Lookup(obj, key)
	if !ok || v == nil {
		return nil
	}
	if m, ok := codec.AsObject(v); ok {
		return codec.OptInt(m, "id")
	}
	i, ok := codec.ToInt(v)
	if !ok {
		return nil
	}
	return &i
}

func parseNodeAttributes(key string, attrs codec.Object) (*models.Node, error) {
	id, ok := codec.Int(attrs, "id")
	if !ok {
		return nil, missing("instance.id")
	}
	n := models.NewNode(id)
	for i := 0; i < 4; i++ {
		n.Names[i] = codec.String(attrs, "name"+strconv.Itoa(i+1))
		n.Labels[i] = codec.String(attrs, "label"+strconv.Itoa(i+1))
	}
	n.Disponibility = codec.OptInt(attrs, "disponibility")
	n.Level = codec.OptInt(attrs, "level")
	n.AssetType = codec.OptInt(attrs, "assetType")
	n.Exportable = codec.OptInt(attrs, "exportable")
	n.Position = codec.OptInt(attrs, "position")
	n.Root = codec.OptInt(attrs, "root")
	n.Asset = codec.String(attrs, "asset")
	n.Object = codec.String(attrs, "object")
	n.Parent = codec.IntOr(attrs, "parent", 0)
	if c, ok := codec.Int(attrs, "c"); ok {
		n.C = models.LevelOf(c)
	}
	if i, ok := codec.Int(attrs, "i"); ok {
		n.I = models.LevelOf(i)
	}
	if d, ok := codec.Int(attrs, "d"); ok {
		n.D = models.LevelOf(d)
	}
	n.CH = codec.IntOr(attrs, "ch", 0) == 1
	n.IH = codec.IntOr(attrs, "ih", 0) == 1
	n.DH = codec.IntOr(attrs, "dh", 0) == 1
	return n, nil
}

func parseConsequences(entry codec.Object) ([]*models.Consequence, error) {
	container, ok := codec.Container(entry, "consequences")
	if !ok {
		return nil, nil
	}
	out := make([]*models.Consequence, 0, len(container))
	for _, key := range codec.SortedKeys(container) {
		field := "consequences." + key
		obj, err := entryObject(field, container[key])
		if err != nil {
			return nil, err
		}
		id, ok := codec.Int(obj, "id")
		if !ok {
			return nil, missing(field + ".id")
		}
		c := &models.Consequence{
			ID:             id,
			IsHidden:       codec.IntOr(obj, "isHidden", 0),
			LocallyTouched: codec.IntOr(obj, "locallyTouched", 0),
			C:              codec.IntOr(obj, "c", -1),
			I:              codec.IntOr(obj, "i", -1),
			D:              codec.IntOr(obj, "d", -1),
		}
		if sit, ok := codec.Container(obj, "scaleImpactType"); ok {
			c.ScaleImpactType = models.ScaleImpactType{
				ID:       codec.IntOr(sit, "id", 0),
				Type:     codec.IntOr(sit, "type", 0),
				Label1:   codec.String(sit, "label1"),
				Label2:   codec.String(sit, "label2"),
				Label3:   codec.String(sit, "label3"),
				Label4:   codec.String(sit, "label4"),
				IsSys:    codec.IntOr(sit, "isSys", 0),
				IsHidden: codec.IntOr(sit, "isHidden", 0),
				Position: codec.IntOr(sit, "position", 0),
				Scale:    codec.IntOr(sit, "scale", 0),
			}
		}
		out = append(out, c)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func parseRisk(key string, v interface{}) (staged[*models.Risk], error) {
	field := "risks." + key
	obj, err := entryObject(field, v)
	if err != nil {
		return staged[*models.Risk]{}, err
	}
	id, ok := codec.Int(obj, "id")
	if !ok {
		return staged[*models.Risk]{}, missing(field + ".id")
	}
	r := &models.Risk{
		ID:                id,
		Specific:          codec.IntOr(obj, "specific", 0),
		MH:                codec.IntOr(obj, "mh", -1),
		ThreatRate:        codec.IntOr(obj, "threatRate", -1),
		VulnerabilityRate: codec.IntOr(obj, "vulnerabilityRate", -1),
		KindOfMeasure:     codec.IntOr(obj, "kindOfMeasure", 0),
		ReductionAmount:   codec.IntOr(obj, "reductionAmount", 0),
		Comment:           codec.String(obj, "comment"),
		CommentAfter:      codec.String(obj, "commentAfter"),
		RiskC:             codec.IntOr(obj, "riskC", -1),
		RiskI:             codec.IntOr(obj, "riskI", -1),
		RiskD:             codec.IntOr(obj, "riskD", -1),
		CacheMaxRisk:      codec.IntOr(obj, "cacheMaxRisk", -1),
		CacheTargetedRisk: codec.IntOr(obj, "cacheTargetedRisk", -1),
		AMV:               codec.String(obj, "amv"),
		Threat:            codec.String(obj, "threat"),
		Vulnerability:     codec.String(obj, "vulnerability"),
		Context:           codec.String(obj, "context"),
		RiskOwner:         codec.String(obj, "riskOwner"),
	}
	return staged[*models.Risk]{id: strconv.Itoa(id), fp: codec.Fingerprint(obj), value: r}, nil
}

func parseVulnerability(key string, v interface{}) (staged[*models.Vulnerability], error) {
	field := "vuls." + key
	obj, err := entryObject(field, v)
	if err != nil {
		return staged[*models.Vulnerability]{}, err
	}
	id, ok := codec.RequiredString(obj, "uuid")
	if !ok {
		return staged[*models.Vulnerability]{}, missing(field + ".uuid")
	}
	vul := &models.Vulnerability{
		UUID:         id,
		Labels:       labels(obj),
		Descriptions: descriptions(obj),
		Status:       codec.IntOr(obj, "status", 0),
		Mode:         codec.IntOr(obj, "mode", 0),
		Code:         codec.String(obj, "code"),
	}
	return staged[*models.Vulnerability]{id: id, fp: codec.Fingerprint(obj), value: vul}, nil
}

func parseThreat(key string, v interface{}) (staged[*models.Threat], error) {
	field := "threats." + key
	obj, err := entryObject(field, v)
	if err != nil {
		return staged[*models.Threat]{}, err
	}
	id, ok := codec.RequiredString(obj, "uuid")
	if !ok {
		return staged[*models.Threat]{}, missing(field + ".uuid")
	}
	th := &models.Threat{
		UUID:          id,
		Comment:       codec.String(obj, "comment"),
		Code:          codec.String(obj, "code"),
		Labels:        labels(obj),
		Descriptions:  descriptions(obj),
		Status:        codec.IntOr(obj, "status", 0),
		Mode:          codec.IntOr(obj, "mode", 0),
		Trend:         codec.IntOr(obj, "trend", 0),
		Qualification: codec.IntOr(obj, "qualification", 0),
		C:             codec.IntOr(obj, "c", 0),
		I:             codec.IntOr(obj, "i", 0),
		A:             codec.IntOr(obj, "a", 0),
	}
	if theme := refInt(obj, "theme"); theme != nil {
		th.Theme = *theme
	}
	return staged[*models.Threat]{id: id, fp: codec.Fingerprint(obj), value: th}, nil
}

func parseMethodThreat(key string, v interface{}) (staged[*models.MethodThreat], error) {
	field := "method.threats." + key
	obj, err := entryObject(field, v)
	if err != nil {
		return staged[*models.MethodThreat]{}, err
	}
	id, ok := codec.RequiredString(obj, "uuid")
	if !ok {
		return staged[*models.MethodThreat]{}, missing(field + ".uuid")
	}
	th := &models.MethodThreat{
		UUID:          id,
		Comment:       codec.String(obj, "comment"),
		Code:          codec.String(obj, "code"),
		Labels:        labels(obj),
		Descriptions:  descriptions(obj),
		Trend:         codec.IntOr(obj, "trend", 0),
		Qualification: codec.IntOr(obj, "qualification", 0),
		C:             codec.IntOr(obj, "c", 0),
		I:             codec.IntOr(obj, "i", 0),
		A:             codec.IntOr(obj, "a", 0),
	}
	if theme, ok := codec.Container(obj, "theme"); ok {
		th.Theme = &models.Theme{ID: codec.IntOr(theme, "id", 0), Labels: labels(theme)}
	}
	return staged[*models.MethodThreat]{id: id, fp: codec.Fingerprint(obj), value: th}, nil
}

func parseLink(key string, v interface{}) (staged[*models.Link], error) {
	field := "amvs." + key
	obj, err := entryObject(field, v)
	if err != nil {
		return staged[*models.Link]{}, err
	}
	id, ok := codec.RequiredString(obj, "uuid")
	if !ok {
		return staged[*models.Link]{}, missing(field + ".uuid")
	}
	link := &models.Link{
		UUID:          id,
		Threat:        codec.String(obj, "threat"),
		Asset:         codec.String(obj, "asset"),
		Vulnerability: codec.String(obj, "vulnerability"),
		Status:        codec.IntOr(obj, "status", 0),
		Measures:      uniqueSorted(codec.StringList(obj, "measures")),
	}
	return staged[*models.Link]{id: id, fp: codec.Fingerprint(obj), value: link}, nil
}

func uniqueSorted(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

func parseReferential(field string, obj codec.Object) (staged[*models.Referential], error) {
	id, ok := codec.RequiredString(obj, "uuid")
	if !ok {
		return staged[*models.Referential]{}, missing(field + ".uuid")
	}
	ref := &models.Referential{UUID: id, Labels: labels(obj)}
	return staged[*models.Referential]{id: id, fp: codec.Fingerprint(obj), value: ref}, nil
}

// nodeMeasure is a measure together with the referential it embeds.
type nodeMeasure struct {
	measure     staged[*models.Measure]
	referential *staged[*models.Referential]
}

func parseMeasure(key string, v interface{}) (nodeMeasure, error) {
	field := "measures." + key
	obj, err := entryObject(field, v)
	if err != nil {
		return nodeMeasure{}, err
	}
	id, ok := codec.RequiredString(obj, "uuid")
	if !ok {
		return nodeMeasure{}, missing(field + ".uuid")
	}
	m := &models.Measure{
		UUID:   id,
		Code:   codec.String(obj, "code"),
		Labels: labels(obj),
		Status: codec.IntOr(obj, "status", 0),
	}
	if cat, ok := codec.Container(obj, "category"); ok {
		m.Category = &models.MeasureCategory{
			ID:     codec.IntOr(cat, "id", 0),
			Labels: labels(cat),
			Status: codec.IntOr(cat, "status", 0),
		}
	}
	out := nodeMeasure{measure: staged[*models.Measure]{id: id, fp: codec.Fingerprint(obj), value: m}}
	if refObj, ok := codec.Container(obj, "referential"); ok {
		ref, err := parseReferential(field+".referential", refObj)
		if err != nil {
			return nodeMeasure{}, err
		}
		out.referential = &ref
		m.Referential = ref.value
	}
	return out, nil
}

func parseCatalogMeasure(key string, v interface{}) (staged[*models.CatalogMeasure], error) {
	field := "measures." + key
	obj, err := entryObject(field, v)
	if err != nil {
		return staged[*models.CatalogMeasure]{}, err
	}
	id, ok := codec.RequiredString(obj, "uuid")
	if !ok {
		return staged[*models.CatalogMeasure]{}, missing(field + ".uuid")
	}
	m := &models.CatalogMeasure{
		Category:    codec.String(obj, "category"),
		Referential: codec.String(obj, "referential"),
		UUID:        id,
		Code:        codec.String(obj, "code"),
		Labels:      labels(obj),
		Status:      codec.IntOr(obj, "status", 0),
	}
	return staged[*models.CatalogMeasure]{id: id, fp: codec.Fingerprint(obj), value: m}, nil
}

func parseRecommendationSet(key string, v interface{}) (staged[*models.RecommendationSet], error) {
	field := "recSets." + key
	obj, err := entryObject(field, v)
	if err != nil {
		return staged[*models.RecommendationSet]{}, err
	}
	id, ok := codec.RequiredString(obj, "uuid")
	if !ok {
		return staged[*models.RecommendationSet]{}, missing(field + ".uuid")
	}
	set := &models.RecommendationSet{UUID: id, Labels: labels(obj)}
	return staged[*models.RecommendationSet]{id: id, fp: codec.Fingerprint(obj), value: set}, nil
}

func parseRecommendation(field string, v interface{}) (*models.Recommendation, codec.Object, error) {
	obj, err := entryObject(field, v)
	if err != nil {
		return nil, nil, err
	}
	id, ok := codec.RequiredString(obj, "uuid")
	if !ok {
		return nil, nil, missing(field + ".uuid")
	}
	rec := &models.Recommendation{
		UUID:              id,
		RecommandationSet: codec.String(obj, "recommandationSet"),
		Code:              codec.String(obj, "code"),
		Description:       codec.String(obj, "description"),
		Importance:        codec.IntOr(obj, "importance", 0),
		Comment:           codec.String(obj, "comment"),
		Status:            codec.IntOr(obj, "status", 0),
		Responsable:       codec.String(obj, "responsable"),
		CounterTreated:    codec.IntOr(obj, "counterTreated", 0),
	}
	// duedate is a date object, or null or [] when unset.
	if due, ok := codec.Container(obj, "duedate"); ok {
		rec.Duedate = &models.Duedate{
			Date:         codec.String(due, "date"),
			TimezoneType: codec.IntOr(due, "timezone_type", 0),
			Timezone:     codec.String(due, "timezone"),
		}
	}
	return rec, obj, nil
}

// nodeObject is the library object block of an instance entry.
type nodeObject struct {
	object *staged[*models.Object]
	asset  *staged[*models.Asset]
	themes []staged[*models.Theme]
}

func parseObjectBlock(entry codec.Object) (nodeObject, error) {
	var out nodeObject
	block, ok := codec.Container(entry, "object")
	if !ok {
		return out, nil
	}
	if objAttrs, ok := codec.Container(block, "object"); ok {
		id, ok := codec.RequiredString(objAttrs, "uuid")
		if !ok {
			return out, missing("object.object.uuid")
		}
		obj := &models.Object{
			UUID:          id,
			Mode:          codec.IntOr(objAttrs, "mode", 0),
			Scope:         codec.IntOr(objAttrs, "scope", 0),
			Name1:         codec.String(objAttrs, "name1"),
			Name2:         codec.String(objAttrs, "name2"),
			Name3:         codec.String(objAttrs, "name3"),
			Name4:         codec.String(objAttrs, "name4"),
			Labels:        labels(objAttrs),
			Disponibility: codec.OptInt(objAttrs, "disponibility"),
			Position:      codec.IntOr(objAttrs, "position", 0),
			Category:      refInt(objAttrs, "category"),
		}
		if cats, ok := codec.Container(block, "categories"); ok {
			for _, key := range codec.SortedKeys(cats) {
				catObj, err := entryObject("object.categories."+key, cats[key])
				if err != nil {
					return out, err
				}
				id, ok := codec.Int(catObj, "id")
				if !ok {
					return out, missing("object.categories." + key + ".id")
				}
				obj.Categories = append(obj.Categories, &models.Category{
					ID:     id,
					Labels: labels(catObj),
					Parent: refInt(catObj, "parent"),
				})
			}
		}
		out.object = &staged[*models.Object]{
			id:    id,
			fp:    codec.Fingerprint(codec.Object{"object": objAttrs, "categories": block["categories"]}),
			value: obj,
		}
	}

	assetBlock, ok := codec.Container(block, "asset")
	if !ok {
		return out, nil
	}
	if assetAttrs, ok := codec.Container(assetBlock, "asset"); ok {
		code, ok := codec.RequiredString(assetAttrs, "code")
		if !ok {
			return out, missing("object.asset.asset.code")
		}
		asset := &models.Asset{
			UUID:         codec.String(assetAttrs, "uuid"),
			Labels:       labels(assetAttrs),
			Descriptions: descriptions(assetAttrs),
			Status:       codec.IntOr(assetAttrs, "status", 0),
			Mode:         codec.IntOr(assetAttrs, "mode", 0),
			Type:         codec.IntOr(assetAttrs, "type", 0),
			Code:         code,
		}
		out.asset = &staged[*models.Asset]{id: code, fp: codec.Fingerprint(assetAttrs), value: asset}
		if out.object != nil {
			out.object.value.AssetCode = code
		}
	}
	if themes, ok := codec.Container(assetBlock, "themes"); ok {
		for _, key := range codec.SortedKeys(themes) {
			field := "object.asset.themes." + key
			themeObj, err := entryObject(field, themes[key])
			if err != nil {
				return out, err
			}
			id, ok := codec.Int(themeObj, "id")
			if !ok {
				return out, missing(field + ".id")
			}
			out.themes = append(out.themes, staged[*models.Theme]{
				id:    strconv.Itoa(id),
				fp:    codec.Fingerprint(themeObj),
				value: &models.Theme{ID: id, Labels: labels(themeObj)},
			})
		}
	}
	return out, nil
}
