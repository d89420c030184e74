package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"uidai-insights/internal/cache"
	"uidai-insights/internal/config"
	"uidai-insights/internal/dataset"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "biometric.csv")
	content := "date,state,district,pincode,bio_age_5_17,bio_age_17_\n" +
		"01-03-2025,goa,north goa,403001,4,6\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := &config.Config{}
	cfg.Datasets = []config.Dataset{
		{Kind: "biometric", Source: path},
		{Kind: "enrolment", Source: filepath.Join(dir, "enrolment.csv")},
	}
	cfg.Cache.Backend = "memory"
	cfg.Cache.TTL = time.Minute
	cfg.Storage.Backend = "source"
	cfg.Analytics.Threshold = 2.5
	cfg.Analytics.Window = 7
	cfg.Analytics.Steps = 7
	cfg.Geo.BoundaryPath = filepath.Join(dir, "india.geojson")
	return cfg
}

func TestSources(t *testing.T) {
	cfg := testConfig(t)

	sources, kinds, err := Sources(cfg)
	if err != nil {
		t.Fatalf("Sources() error = %v", err)
	}
	if len(kinds) != 2 || kinds[0] != dataset.Biometric || kinds[1] != dataset.Enrolment {
		t.Errorf("Sources() kinds = %v", kinds)
	}
	if sources[dataset.Biometric] != cfg.Datasets[0].Source {
		t.Errorf("Sources()[biometric] = %v", sources[dataset.Biometric])
	}

	cfg.Datasets = append(cfg.Datasets, config.Dataset{Kind: "census", Source: "x.csv"})
	if _, _, err := Sources(cfg); err == nil {
		t.Error("Sources() expected error for unknown kind")
	}
}

func TestNewStore_Memory(t *testing.T) {
	store, closeStore, err := NewStore(context.Background(), testConfig(t))
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	defer closeStore()

	if _, ok := store.(*cache.LocalStore); !ok {
		t.Errorf("NewStore() = %T, want *cache.LocalStore", store)
	}
}

func TestNewService_FromSources(t *testing.T) {
	svc, cleanup, err := NewService(context.Background(), testConfig(t))
	if err != nil {
		t.Fatalf("NewService() error = %v", err)
	}
	defer cleanup()

	kpis, err := svc.KPIs(context.Background(), dataset.Biometric)
	if err != nil {
		t.Fatalf("KPIs() error = %v", err)
	}
	if kpis.Records != 1 || kpis.Total != 10 {
		t.Errorf("KPIs() = %+v, want 1 record totalling 10", kpis)
	}

	if _, err := svc.KPIs(context.Background(), dataset.Enrolment); err == nil {
		t.Error("KPIs() expected error for missing source file")
	}
}
