package config

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/phasefield-data/fracture.report/internal/cracktip"
	"github.com/phasefield-data/fracture.report/internal/mesh"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadTuningConfigFull(t *testing.T) {
	path := writeConfig(t, "scan.json", `{
		"field_name": "damage",
		"threshold": 0.8,
		"reference": [1, 2, 3],
		"region_min": [-5, -5, 0],
		"region_max": [5, 5, 0],
		"watch_debounce": "250ms",
		"step_pattern": "step(\\d+)\\.vtk$"
	}`)

	cfg, err := LoadTuningConfig(path)
	if err != nil {
		t.Fatalf("LoadTuningConfig failed: %v", err)
	}

	want := cracktip.ScanConfig{
		FieldName: "damage",
		Threshold: 0.8,
		Reference: mesh.Point{1, 2, 3},
		Region: mesh.Region{
			Min: mesh.Point{-5, -5, 0},
			Max: mesh.Point{5, 5, 0},
		},
	}
	if diff := cmp.Diff(want, cfg.ScanConfig()); diff != "" {
		t.Errorf("ScanConfig mismatch (-want +got):\n%s", diff)
	}
	if got := cfg.GetWatchDebounce(); got != "250ms" {
		t.Errorf("GetWatchDebounce = %q", got)
	}
	if got := cfg.GetStepPattern(); got != `step(\d+)\.vtk$` {
		t.Errorf("GetStepPattern = %q", got)
	}
}

func TestLoadTuningConfigPartialKeepsDefaults(t *testing.T) {
	path := writeConfig(t, "scan.json", `{"threshold": 0.9}`)

	cfg, err := LoadTuningConfig(path)
	if err != nil {
		t.Fatalf("LoadTuningConfig failed: %v", err)
	}

	sc := cfg.ScanConfig()
	if sc.Threshold != 0.9 {
		t.Errorf("Threshold = %g, want 0.9", sc.Threshold)
	}
	if sc.FieldName != cracktip.DefaultFieldName {
		t.Errorf("FieldName = %q, want default", sc.FieldName)
	}
	if sc.Reference != (mesh.Point{}) {
		t.Errorf("Reference = %v, want origin", sc.Reference)
	}
	if !sc.Region.IsUnbounded() {
		t.Errorf("Region = %v, want unbounded", sc.Region)
	}
}

func TestLoadTuningConfigRegionMinOnly(t *testing.T) {
	path := writeConfig(t, "scan.json", `{"region_min": [0, 0, 0]}`)

	cfg, err := LoadTuningConfig(path)
	if err != nil {
		t.Fatalf("LoadTuningConfig failed: %v", err)
	}
	region := cfg.GetRegion()
	if region.Min != (mesh.Point{0, 0, 0}) {
		t.Errorf("Min = %v", region.Min)
	}
	for k := 0; k < 3; k++ {
		if !math.IsInf(region.Max[k], 1) {
			t.Errorf("Max[%d] = %g, want +Inf", k, region.Max[k])
		}
	}
}

func TestLoadTuningConfigRejectsBadThreshold(t *testing.T) {
	path := writeConfig(t, "scan.json", `{"threshold": 1.5}`)
	if _, err := LoadTuningConfig(path); err == nil {
		t.Fatal("expected error for threshold > 1")
	}
}

func TestLoadTuningConfigRejectsNonJSON(t *testing.T) {
	path := writeConfig(t, "scan.yaml", `threshold: 0.5`)
	if _, err := LoadTuningConfig(path); err == nil {
		t.Fatal("expected error for non-.json extension")
	}
}

func TestLoadTuningConfigMissingFile(t *testing.T) {
	if _, err := LoadTuningConfig(filepath.Join(t.TempDir(), "absent.json")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestNilTuningConfigDefaults(t *testing.T) {
	var cfg *TuningConfig
	if got := cfg.GetThreshold(); got != cracktip.DefaultThreshold {
		t.Errorf("GetThreshold = %g", got)
	}
	if got := cfg.GetFieldName(); got != cracktip.DefaultFieldName {
		t.Errorf("GetFieldName = %q", got)
	}
	if !cfg.GetRegion().IsUnbounded() {
		t.Error("GetRegion not unbounded for nil config")
	}
}
