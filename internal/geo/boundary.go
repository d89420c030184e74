package geo

import (
	"fmt"
	"sort"
	"strings"

	"github.com/goccy/go-json"

	"uidai-insights/internal/models"
)

// DefaultPropertyKeys are the property names tried, in order, to identify a region.
var DefaultPropertyKeys = []string{"ST_NM", "NAME", "name", "NAME_1", "state", "State"}

// FeatureSet is a GeoJSON FeatureCollection of administrative boundaries
type FeatureSet struct {
	Type     string    `json:"type"`
	Features []Feature `json:"features"`
}

// Feature is a single boundary polygon with its properties
type Feature struct {
	Type       string                 `json:"type"`
	Properties map[string]interface{} `json:"properties"`
	Geometry   json.RawMessage        `json:"geometry,omitempty"`
}

// ParseFeatureSet decodes a GeoJSON document
func ParseFeatureSet(data []byte) (*FeatureSet, error) {
	var fs FeatureSet
	if err := json.Unmarshal(data, &fs); err != nil {
		return nil, fmt.Errorf("failed to decode GeoJSON: %w", err)
	}
	return &fs, nil
}

// KeyResolver picks the feature property that holds the region name
type KeyResolver struct {
	candidates []string
}

// NewKeyResolver creates a resolver over candidates, checked in order.
// An empty list uses DefaultPropertyKeys.
func NewKeyResolver(candidates []string) *KeyResolver {
	if len(candidates) == 0 {
		candidates = DefaultPropertyKeys
	}
	return &KeyResolver{candidates: append([]string(nil), candidates...)}
}

// Resolve inspects the first feature only and returns "properties.<key>" for the
// first candidate it carries. ok is false when the set is nil or empty, or no
// candidate is present.
func (kr *KeyResolver) Resolve(fs *FeatureSet) (path string, ok bool) {
	if fs == nil || len(fs.Features) == 0 {
		return "", false
	}
	props := fs.Features[0].Properties
	if props == nil {
		return "", false
	}
	for _, key := range kr.candidates {
		if _, present := props[key]; present {
			return "properties." + key, true
		}
	}
	return "", false
}

// ResolvePropertyKey resolves with DefaultPropertyKeys
func ResolvePropertyKey(fs *FeatureSet) (string, bool) {
	return NewKeyResolver(nil).Resolve(fs)
}

// JoinResult is the choropleth-ready join of region totals against a boundary set
type JoinResult struct {
	PropertyKey string               `json:"property_key"`
	Regions     []models.RegionTotal `json:"regions"`
	Unmatched   []string             `json:"unmatched,omitempty"` // data regions with no feature
}

// Join matches region totals against the features' region identifiers read from
// propertyPath ("properties.<key>"). Regions are returned largest first.
func Join(totals map[string]float64, fs *FeatureSet, propertyPath string) JoinResult {
	res := JoinResult{PropertyKey: propertyPath}
	key := strings.TrimPrefix(propertyPath, "properties.")

	known := make(map[string]bool)
	if fs != nil {
		for _, f := range fs.Features {
			if name, ok := f.Properties[key].(string); ok {
				known[name] = true
			}
		}
	}

	for region, value := range totals {
		if known[region] {
			res.Regions = append(res.Regions, models.RegionTotal{Region: region, Value: value})
		} else {
			res.Unmatched = append(res.Unmatched, region)
		}
	}

	sort.Slice(res.Regions, func(i, j int) bool {
		if res.Regions[i].Value != res.Regions[j].Value {
			return res.Regions[i].Value > res.Regions[j].Value
		}
		return res.Regions[i].Region < res.Regions[j].Region
	})
	sort.Strings(res.Unmatched)
	return res
}
