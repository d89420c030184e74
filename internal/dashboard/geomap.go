package dashboard

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"uidai-insights/internal/cache"
	"uidai-insights/internal/dataset"
	"uidai-insights/internal/geo"
	"uidai-insights/internal/logging"
	"uidai-insights/internal/models"
	"uidai-insights/internal/source"
)

// MapView is the choropleth data of a dataset. When Available is false the
// boundary set could not be used and Warning says why.
type MapView struct {
	Dataset     string               `json:"dataset"`
	Available   bool                 `json:"available"`
	Warning     string               `json:"warning,omitempty"`
	PropertyKey string               `json:"property_key,omitempty"`
	Regions     []models.RegionTotal `json:"regions"`
	Unmatched   []string             `json:"unmatched,omitempty"`
	Boundary    *geo.FeatureSet      `json:"boundary,omitempty"`
}

// Map joins per-state totals against the boundary set. Only a record load failure
// is an error; boundary problems yield an unavailable map.
func (s *Service) Map(ctx context.Context, kind dataset.Kind) (*MapView, error) {
	records, err := s.Records(ctx, kind)
	if err != nil {
		return nil, err
	}
	defer observe(kind, "map", time.Now())

	view := &MapView{Dataset: kind.String(), Regions: []models.RegionTotal{}}

	boundary, err := s.Boundary(ctx)
	if err != nil {
		logging.Ctx(ctx).Warn().Err(err).Msg("boundary set unavailable")
		view.Warning = "Map unavailable: boundary data could not be loaded"
		return view, nil
	}

	key, ok := s.resolver.Resolve(boundary)
	if !ok {
		view.Warning = "Map unavailable: no recognised region name property in boundary data"
		return view, nil
	}

	totals := dataset.TotalsBy(geo.NormalizeNames(records, "state"), "state")
	joined := geo.Join(totals, boundary, key)

	view.Available = true
	view.PropertyKey = joined.PropertyKey
	view.Boundary = boundary
	if joined.Regions != nil {
		view.Regions = joined.Regions
	}
	view.Unmatched = joined.Unmatched
	if len(joined.Unmatched) > 0 {
		view.Warning = fmt.Sprintf("%d regions have no matching boundary", len(joined.Unmatched))
	}
	return view, nil
}

// Boundary returns the memoized boundary feature set
func (s *Service) Boundary(ctx context.Context) (*geo.FeatureSet, error) {
	var fs geo.FeatureSet
	err := s.memo.Load(ctx, cache.NewKey("boundary", s.opts.BoundaryPath), s.opts.CacheTTL, &fs,
		func(ctx context.Context) (interface{}, error) {
			return s.loadBoundary(ctx)
		})
	if err != nil {
		return nil, err
	}
	return &fs, nil
}

// loadBoundary reads the boundary file, downloading it first when it is missing
func (s *Service) loadBoundary(ctx context.Context) (*geo.FeatureSet, error) {
	data, err := os.ReadFile(s.opts.BoundaryPath)
	if errors.Is(err, fs.ErrNotExist) && s.opts.BoundaryURL != "" && s.fetcher != nil {
		data, err = DownloadBoundary(ctx, s.fetcher, s.opts.BoundaryURL, s.opts.BoundaryPath)
	}
	if err != nil {
		return nil, err
	}
	return geo.ParseFeatureSet(data)
}

// DownloadBoundary fetches url, checks it parses as GeoJSON and writes it to path
func DownloadBoundary(ctx context.Context, fetcher source.Fetcher, url, path string) ([]byte, error) {
	logging.Info().Str("url", url).Str("path", path).Msg("downloading boundary file")

	data, err := fetcher.Fetch(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("failed to download boundary: %w", err)
	}
	if _, err := geo.ParseFeatureSet(data); err != nil {
		return nil, err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return nil, fmt.Errorf("failed to write boundary file: %w", err)
	}
	return data, nil
}
