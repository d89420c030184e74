package geo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"uidai-insights/internal/models"
)

func TestNormalizeName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"  uttar prad ", "Uttar Pradesh"},
		{"Orissa", "Odisha"},
		{"ORISSA", "Odisha"},
		{"Jammu & Kashmir", "Jammu and Kashmir"},
		{"jammu and kashmir", "Jammu and Kashmir"},
		{"Kerala", "Kerala"},
		{"kerala", "Kerala"},
		{"delhi", "NCT of Delhi"},
		{"dadra & nagar haveli", "Dadra and Nagar Haveli and Daman and Diu"},
		{"Daman and Diu", "Dadra and Nagar Haveli and Daman and Diu"},
		{"andaman and nicobar islands", "Andaman and Nicobar Islands"},
		{"telengana", "Telangana"},
		{"tamil nadu", "Tamil Nadu"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeName(tt.in))
		})
	}
}

func TestNormalizeNames_DoesNotMutateInput(t *testing.T) {
	records := []models.Record{
		{Attrs: map[string]string{"state": "orissa", "district": "cuttack"}},
		{Attrs: map[string]string{"state": " Kerala"}},
		{},
	}

	got := NormalizeNames(records, "state")

	require.Len(t, got, 3)
	assert.Equal(t, "Odisha", got[0].Text("state"))
	assert.Equal(t, "cuttack", got[0].Text("district"))
	assert.Equal(t, "Kerala", got[1].Text("state"))
	assert.Equal(t, "", got[2].Text("state"))

	assert.Equal(t, "orissa", records[0].Text("state"))
	assert.Equal(t, " Kerala", records[1].Text("state"))
}

func featureSet(props ...map[string]interface{}) *FeatureSet {
	fs := &FeatureSet{Type: "FeatureCollection"}
	for _, p := range props {
		fs.Features = append(fs.Features, Feature{Type: "Feature", Properties: p})
	}
	return fs
}

func TestResolvePropertyKey(t *testing.T) {
	tests := []struct {
		name   string
		fs     *FeatureSet
		want   string
		wantOK bool
	}{
		{"ST_NM", featureSet(map[string]interface{}{"ST_NM": "Kerala"}), "properties.ST_NM", true},
		{"priority order", featureSet(map[string]interface{}{"State": "x", "NAME_1": "y", "NAME": "z"}), "properties.NAME", true},
		{"lowercase name before NAME_1", featureSet(map[string]interface{}{"NAME_1": "y", "name": "z"}), "properties.name", true},
		{"only first feature inspected", featureSet(map[string]interface{}{"id": 1}, map[string]interface{}{"ST_NM": "Goa"}), "", false},
		{"empty set", featureSet(), "", false},
		{"nil set", nil, "", false},
		{"nil properties", &FeatureSet{Features: []Feature{{Type: "Feature"}}}, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ResolvePropertyKey(tt.fs)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestKeyResolver_Override(t *testing.T) {
	fs := featureSet(map[string]interface{}{"ST_NM": "Kerala", "NAME_1": "Kerala"})

	got, ok := NewKeyResolver([]string{"NAME_1", "ST_NM"}).Resolve(fs)
	require.True(t, ok)
	assert.Equal(t, "properties.NAME_1", got)

	got, ok = NewKeyResolver(nil).Resolve(fs)
	require.True(t, ok)
	assert.Equal(t, "properties.ST_NM", got)
}

func TestParseFeatureSet(t *testing.T) {
	data := []byte(`{"type":"FeatureCollection","features":[
		{"type":"Feature","properties":{"ST_NM":"Kerala"},"geometry":{"type":"Point","coordinates":[76.2,10.5]}},
		{"type":"Feature","properties":{"ST_NM":"Goa"},"geometry":null}
	]}`)

	fs, err := ParseFeatureSet(data)
	require.NoError(t, err)
	require.Len(t, fs.Features, 2)

	key, ok := ResolvePropertyKey(fs)
	require.True(t, ok)
	assert.Equal(t, "properties.ST_NM", key)

	_, err = ParseFeatureSet([]byte("{not json"))
	assert.Error(t, err)
}

func TestJoin(t *testing.T) {
	fs := featureSet(
		map[string]interface{}{"ST_NM": "Kerala"},
		map[string]interface{}{"ST_NM": "Odisha"},
		map[string]interface{}{"ST_NM": "Goa"},
	)
	totals := map[string]float64{
		"Kerala":    120,
		"Odisha":    300,
		"Atlantis":  5,
		"Lakshadwp": 1,
	}

	got := Join(totals, fs, "properties.ST_NM")

	assert.Equal(t, "properties.ST_NM", got.PropertyKey)
	assert.Equal(t, []models.RegionTotal{{Region: "Odisha", Value: 300}, {Region: "Kerala", Value: 120}}, got.Regions)
	assert.Equal(t, []string{"Atlantis", "Lakshadwp"}, got.Unmatched)
}
