// Package config loads scan tuning parameters from JSON files.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/phasefield-data/fracture.report/internal/cracktip"
	"github.com/phasefield-data/fracture.report/internal/mesh"
)

// DefaultConfigPath is the path to the canonical tuning defaults file.
const DefaultConfigPath = "config/scan.defaults.json"

// TuningConfig holds scan parameters loadable from JSON. All fields
// are pointers so partial files only override what they specify; the
// Get* methods supply the conventional filter defaults.
type TuningConfig struct {
	// FieldName is the damage field to scan.
	FieldName *string `json:"field_name,omitempty"`

	// Threshold is the critical damage value in [0,1].
	Threshold *float64 `json:"threshold,omitempty"`

	// Reference is the initial tip location distances are measured
	// from.
	Reference *[3]float64 `json:"reference,omitempty"`

	// RegionMin/RegionMax bound the candidate region; omitted axes
	// stay unbounded.
	RegionMin *[3]float64 `json:"region_min,omitempty"`
	RegionMax *[3]float64 `json:"region_max,omitempty"`

	// WatchDebounce is a duration string like "500ms" controlling how
	// long the watcher waits after the last write to a results file.
	WatchDebounce *string `json:"watch_debounce,omitempty"`

	// StepPattern overrides the filename pattern used to extract step
	// numbers from results files.
	StepPattern *string `json:"step_pattern,omitempty"`
}

// EmptyTuningConfig returns a TuningConfig with all fields unset.
func EmptyTuningConfig() *TuningConfig {
	return &TuningConfig{}
}

// LoadTuningConfig loads a TuningConfig from a JSON file. The file
// must have a .json extension and stay under the max file size.
// Omitted fields keep their defaults, so partial configs are safe.
func LoadTuningConfig(path string) (*TuningConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyTuningConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if cfg.Threshold != nil && (*cfg.Threshold < 0 || *cfg.Threshold > 1) {
		return nil, fmt.Errorf("threshold %g out of range [0,1]", *cfg.Threshold)
	}

	return cfg, nil
}

// GetFieldName returns the damage field name, defaulting to "d".
func (c *TuningConfig) GetFieldName() string {
	if c != nil && c.FieldName != nil {
		return *c.FieldName
	}
	return cracktip.DefaultFieldName
}

// GetThreshold returns the critical damage value, defaulting to 0.5.
func (c *TuningConfig) GetThreshold() float64 {
	if c != nil && c.Threshold != nil {
		return *c.Threshold
	}
	return cracktip.DefaultThreshold
}

// GetReference returns the reference point, defaulting to the origin.
func (c *TuningConfig) GetReference() mesh.Point {
	if c != nil && c.Reference != nil {
		return mesh.Point(*c.Reference)
	}
	return mesh.Point{}
}

// GetRegion assembles the candidate region; axes not given in the
// file stay unbounded.
func (c *TuningConfig) GetRegion() mesh.Region {
	region := mesh.UnboundedRegion()
	if c == nil {
		return region
	}
	if c.RegionMin != nil {
		region.Min = mesh.Point(*c.RegionMin)
	}
	if c.RegionMax != nil {
		region.Max = mesh.Point(*c.RegionMax)
	}
	return region
}

// GetWatchDebounce returns the watcher debounce duration string,
// defaulting to "500ms".
func (c *TuningConfig) GetWatchDebounce() string {
	if c != nil && c.WatchDebounce != nil {
		return *c.WatchDebounce
	}
	return "500ms"
}

// GetStepPattern returns the step-number filename pattern, defaulting
// to the usual `<base>_<step>.vtk` series convention.
func (c *TuningConfig) GetStepPattern() string {
	if c != nil && c.StepPattern != nil {
		return *c.StepPattern
	}
	return `_(\d+)\.vtk$`
}

// ScanConfig assembles a cracktip.ScanConfig from the tuning values.
func (c *TuningConfig) ScanConfig() cracktip.ScanConfig {
	return cracktip.ScanConfig{
		FieldName: c.GetFieldName(),
		Threshold: c.GetThreshold(),
		Reference: c.GetReference(),
		Region:    c.GetRegion(),
	}
}
