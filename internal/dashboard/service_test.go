package dashboard

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"uidai-insights/internal/cache"
	"uidai-insights/internal/dataset"
	"uidai-insights/internal/forecast"
	"uidai-insights/internal/models"
)

type fakeLoader struct {
	records map[dataset.Kind][]models.Record
	err     error
	calls   int32
}

func (f *fakeLoader) LoadRecords(_ context.Context, kind dataset.Kind) ([]models.Record, error) {
	atomic.AddInt32(&f.calls, 1)
	if f.err != nil {
		return nil, f.err
	}
	return f.records[kind], nil
}

type fakeFetcher struct {
	data  string
	calls int32
}

func (f *fakeFetcher) Fetch(context.Context, string) ([]byte, error) {
	atomic.AddInt32(&f.calls, 1)
	return []byte(f.data), nil
}

const boundaryJSON = `{"type":"FeatureCollection","features":[
	{"type":"Feature","properties":{"ST_NM":"Kerala"},"geometry":null},
	{"type":"Feature","properties":{"ST_NM":"Odisha"},"geometry":null},
	{"type":"Feature","properties":{"ST_NM":"Uttar Pradesh"},"geometry":null}
]}`

func day(d int) time.Time {
	return time.Date(2025, time.March, d, 0, 0, 0, 0, time.UTC)
}

// spikeRecords spreads [10,12,11,13,100,14,12] over three states
func spikeRecords() []models.Record {
	values := []float64{10, 12, 11, 13, 100, 14, 12}
	states := []string{"Kerala", "Orissa", "uttar prad"}

	var out []models.Record
	for i, v := range values {
		out = append(out, models.Record{
			Date:   day(i + 1),
			Attrs:  map[string]string{"state": states[i%len(states)], "district": states[i%len(states)] + " district"},
			Metric: v,
		})
	}
	out = append(out, models.Record{Attrs: map[string]string{"state": "Odisha"}, Metric: 1})
	return out
}

func newTestService(t *testing.T, loader RecordLoader, fetcher *fakeFetcher, boundaryPath string) *Service {
	t.Helper()
	opts := Options{
		Kinds:        []dataset.Kind{dataset.Enrolment, dataset.Biometric},
		BoundaryPath: boundaryPath,
		BoundaryURL:  "https://example.org/india_state.geojson",
		FitTimeout:   time.Second,
	}
	if fetcher == nil {
		return NewService(loader, cache.NewMemo(cache.NewLocalStore(time.Minute, time.Minute)), nil, opts)
	}
	return NewService(loader, cache.NewMemo(cache.NewLocalStore(time.Minute, time.Minute)), fetcher, opts)
}

func writeBoundary(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "india_states.geojson")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestService_Kind(t *testing.T) {
	svc := newTestService(t, &fakeLoader{}, nil, "")

	kind, err := svc.Kind("biometric")
	require.NoError(t, err)
	assert.Equal(t, dataset.Biometric, kind)

	_, err = svc.Kind("demographic")
	assert.ErrorIs(t, err, dataset.ErrUnknownKind)

	_, err = svc.Kind("census")
	assert.ErrorIs(t, err, dataset.ErrUnknownKind)

	assert.Equal(t, []DatasetInfo{
		{Kind: "enrolment", Metric: "total_enrolment", Label: "Total Enrolment"},
		{Kind: "biometric", Metric: "total_biometric", Label: "Total Biometric"},
	}, svc.Datasets())
}

func TestService_KPIs(t *testing.T) {
	loader := &fakeLoader{records: map[dataset.Kind][]models.Record{dataset.Enrolment: spikeRecords()}}
	svc := newTestService(t, loader, nil, "")

	k, err := svc.KPIs(context.Background(), dataset.Enrolment)
	require.NoError(t, err)

	assert.Equal(t, 8, k.Records)
	assert.Equal(t, 173.0, k.Total)
	assert.InDelta(t, 173.0/8, k.Mean, 1e-9)
	assert.Equal(t, 4, k.States)
	assert.Equal(t, 3, k.Districts)
	assert.Equal(t, "total_enrolment", k.Metric)

	empty, err := svc.KPIs(context.Background(), dataset.Biometric)
	require.NoError(t, err)
	assert.Equal(t, 0, empty.Records)
	assert.Equal(t, 0.0, empty.Mean)
}

func TestService_RecordsAreMemoized(t *testing.T) {
	loader := &fakeLoader{records: map[dataset.Kind][]models.Record{dataset.Enrolment: spikeRecords()}}
	svc := newTestService(t, loader, nil, "")
	ctx := context.Background()

	_, err := svc.KPIs(ctx, dataset.Enrolment)
	require.NoError(t, err)
	_, err = svc.Trend(ctx, dataset.Enrolment, TrendParams{})
	require.NoError(t, err)
	_, err = svc.TopStates(ctx, dataset.Enrolment, 0)
	require.NoError(t, err)

	assert.Equal(t, int32(1), atomic.LoadInt32(&loader.calls))
}

func TestService_LoaderError(t *testing.T) {
	boom := errors.New("source unreachable")
	svc := newTestService(t, &fakeLoader{err: boom}, nil, "")

	_, err := svc.Trend(context.Background(), dataset.Enrolment, TrendParams{})
	assert.ErrorIs(t, err, boom)

	_, err = svc.Map(context.Background(), dataset.Enrolment)
	assert.ErrorIs(t, err, boom)
}

func TestService_Trend(t *testing.T) {
	loader := &fakeLoader{records: map[dataset.Kind][]models.Record{dataset.Enrolment: spikeRecords()}}
	svc := newTestService(t, loader, nil, "")

	trend, err := svc.Trend(context.Background(), dataset.Enrolment, TrendParams{Threshold: 2.0, Window: 3, Steps: 5})
	require.NoError(t, err)

	require.Len(t, trend.Series, 7)
	require.Len(t, trend.Smoothed, 7)
	require.Len(t, trend.ZScores, 7)
	assert.Equal(t, 10.0, trend.Smoothed[0].Value)
	assert.Equal(t, 11.0, trend.Smoothed[1].Value)
	assert.Equal(t, 11.0, trend.Smoothed[2].Value)

	require.Len(t, trend.Anomalies, 1)
	assert.Equal(t, 4, trend.Anomalies[0].Index)
	assert.True(t, trend.Anomalies[0].Date.Equal(day(5)))
	assert.InDelta(t, 2.4476, trend.Anomalies[0].ZScore, 1e-3)

	require.Len(t, trend.Forecast.Points, 5)
	assert.True(t, trend.Forecast.Points[0].Date.Equal(day(8)))
	assert.Contains(t, []forecast.Path{forecast.ModelFit, forecast.Fallback}, trend.Forecast.Path)
}

func TestService_TrendDefaults(t *testing.T) {
	loader := &fakeLoader{records: map[dataset.Kind][]models.Record{dataset.Enrolment: spikeRecords()}}
	svc := newTestService(t, loader, nil, "")

	trend, err := svc.Trend(context.Background(), dataset.Enrolment, TrendParams{})
	require.NoError(t, err)

	assert.Equal(t, 2.5, trend.Threshold)
	assert.Equal(t, 7, trend.Window)
	assert.Empty(t, trend.Anomalies)
	assert.Len(t, trend.Forecast.Points, 7)
}

func TestService_TrendEmptyDataset(t *testing.T) {
	svc := newTestService(t, &fakeLoader{}, nil, "")

	trend, err := svc.Trend(context.Background(), dataset.Biometric, TrendParams{Steps: 3})
	require.NoError(t, err)

	assert.Empty(t, trend.Series)
	assert.Empty(t, trend.Anomalies)
	assert.Equal(t, forecast.Fallback, trend.Forecast.Path)
	require.Len(t, trend.Forecast.Points, 3)
	assert.Equal(t, 0.0, trend.Forecast.Points[0].Value)
}

func TestService_TopStates(t *testing.T) {
	loader := &fakeLoader{records: map[dataset.Kind][]models.Record{dataset.Enrolment: spikeRecords()}}
	svc := newTestService(t, loader, nil, "")

	top, err := svc.TopStates(context.Background(), dataset.Enrolment, 2)
	require.NoError(t, err)

	// Orissa and Odisha merge into one region
	assert.Equal(t, []models.RegionTotal{
		{Region: "Odisha", Value: 12 + 100 + 1},
		{Region: "Kerala", Value: 10 + 13 + 12},
	}, top)
}

func TestService_Map(t *testing.T) {
	loader := &fakeLoader{records: map[dataset.Kind][]models.Record{dataset.Enrolment: append(spikeRecords(),
		models.Record{Attrs: map[string]string{"state": "Atlantis"}, Metric: 3})}}
	svc := newTestService(t, loader, nil, writeBoundary(t, boundaryJSON))

	view, err := svc.Map(context.Background(), dataset.Enrolment)
	require.NoError(t, err)

	assert.True(t, view.Available)
	assert.Equal(t, "properties.ST_NM", view.PropertyKey)
	assert.Equal(t, []models.RegionTotal{
		{Region: "Odisha", Value: 113},
		{Region: "Kerala", Value: 35},
		{Region: "Uttar Pradesh", Value: 25},
	}, view.Regions)
	assert.Equal(t, []string{"Atlantis"}, view.Unmatched)
	assert.NotEmpty(t, view.Warning)
	require.NotNil(t, view.Boundary)
	assert.Len(t, view.Boundary.Features, 3)
}

func TestService_MapUnresolvableKey(t *testing.T) {
	loader := &fakeLoader{records: map[dataset.Kind][]models.Record{dataset.Enrolment: spikeRecords()}}
	path := writeBoundary(t, `{"type":"FeatureCollection","features":[{"type":"Feature","properties":{"id":7}}]}`)
	svc := newTestService(t, loader, nil, path)

	view, err := svc.Map(context.Background(), dataset.Enrolment)
	require.NoError(t, err)

	assert.False(t, view.Available)
	assert.Contains(t, view.Warning, "Map unavailable")
	assert.Empty(t, view.Regions)
}

func TestService_MapMissingBoundary(t *testing.T) {
	loader := &fakeLoader{records: map[dataset.Kind][]models.Record{dataset.Enrolment: spikeRecords()}}
	svc := newTestService(t, loader, nil, filepath.Join(t.TempDir(), "none.geojson"))

	view, err := svc.Map(context.Background(), dataset.Enrolment)
	require.NoError(t, err)

	assert.False(t, view.Available)
	assert.Contains(t, view.Warning, "Map unavailable")
}

func TestService_MapDownloadsBoundary(t *testing.T) {
	loader := &fakeLoader{records: map[dataset.Kind][]models.Record{dataset.Enrolment: spikeRecords()}}
	path := filepath.Join(t.TempDir(), "assets", "india_states.geojson")
	fetcher := &fakeFetcher{data: boundaryJSON}
	svc := newTestService(t, loader, fetcher, path)

	view, err := svc.Map(context.Background(), dataset.Enrolment)
	require.NoError(t, err)
	assert.True(t, view.Available)

	_, err = os.Stat(path)
	assert.NoError(t, err)

	_, err = svc.Map(context.Background(), dataset.Enrolment)
	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&fetcher.calls))
}

func TestService_Insights(t *testing.T) {
	loader := &fakeLoader{records: map[dataset.Kind][]models.Record{dataset.Enrolment: spikeRecords()}}
	svc := newTestService(t, loader, nil, "")

	insights, err := svc.Insights(context.Background(), dataset.Enrolment)
	require.NoError(t, err)
	require.NotEmpty(t, insights)

	assert.Equal(t, 100.0, insights[0].Value)
	assert.True(t, insights[0].Date.Equal(day(5)))
}

func TestService_Export(t *testing.T) {
	loader := &fakeLoader{records: map[dataset.Kind][]models.Record{dataset.Enrolment: spikeRecords()}}
	svc := newTestService(t, loader, nil, "")

	var buf bytes.Buffer
	name, err := svc.Export(context.Background(), &buf, dataset.Enrolment, "")
	require.NoError(t, err)
	assert.Equal(t, "uidai_enrolment.csv", name)
	assert.True(t, strings.HasPrefix(buf.String(), "date,state,district,total_enrolment\n"))

	buf.Reset()
	name, err = svc.Export(context.Background(), &buf, dataset.Enrolment, "xlsx")
	require.NoError(t, err)
	assert.Equal(t, "uidai_enrolment.xlsx", name)
	assert.NotZero(t, buf.Len())

	_, err = svc.Export(context.Background(), &buf, dataset.Enrolment, "pdf")
	assert.Error(t, err)
}
