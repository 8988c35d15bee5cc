// Package cracktip locates and tracks the leading edge of a
// propagating fracture in phase-field simulation output. A point is
// part of the crack once its damage field value exceeds a critical
// threshold; the tip is the qualifying point farthest from a reference
// location, usually the initial notch.
package cracktip

import (
	"github.com/phasefield-data/fracture.report/internal/mesh"
)

// DefaultFieldName is the damage field name phase-field codes
// conventionally write.
const DefaultFieldName = "d"

// DefaultThreshold is the critical damage value above which material
// counts as fully broken.
const DefaultThreshold = 0.5

// ScanConfig parameterises a single tip scan.
type ScanConfig struct {
	// FieldName is the scalar damage field to read. Defaults to "d".
	FieldName string `json:"field_name"`

	// Threshold is the critical damage value; only values strictly
	// greater qualify.
	Threshold float64 `json:"threshold"`

	// Reference is the location distances are measured from, and the
	// fallback result when nothing qualifies.
	Reference mesh.Point `json:"reference"`

	// Region restricts candidates to an inclusive bounding box.
	Region mesh.Region `json:"region"`
}

// DefaultScanConfig mirrors the conventional filter defaults:
// field "d", threshold 0.5, reference at the origin, unbounded region.
func DefaultScanConfig() ScanConfig {
	return ScanConfig{
		FieldName: DefaultFieldName,
		Threshold: DefaultThreshold,
		Region:    mesh.UnboundedRegion(),
	}
}

// Result is the outcome of one tip scan. Tip is always well-defined:
// it is the reference point when nothing qualified.
type Result struct {
	Tip        mesh.Point `json:"tip"`
	DistanceSq float64    `json:"distance_sq"`
	Found      bool       `json:"found"`
	Candidates int        `json:"candidates"`
}

// qualifies reports whether point i passes the region and threshold
// predicates.
func qualifies(p mesh.Point, v float64, cfg *ScanConfig) bool {
	return cfg.Region.Contains(p) && v > cfg.Threshold
}

// Locate scans the point set and returns the qualifying point farthest
// from cfg.Reference. The running maximum starts below zero so a
// qualifying point coincident with the reference still counts as
// found. Ties on squared distance keep the earliest index; the
// comparison is strictly greater-than, never greater-or-equal.
//
// When the damage field is missing the result is the reference point
// and the returned error wraps mesh.ErrFieldNotFound; the condition is
// recoverable and callers should log it and carry on. An empty point
// set behaves the same way.
func Locate(ps *mesh.PointSet, cfg ScanConfig) (Result, error) {
	res := Result{Tip: cfg.Reference}

	values, err := ps.Field(cfg.FieldName)
	if err != nil {
		return res, err
	}

	bestDistSq := -1.0
	for i, p := range ps.Points() {
		if !qualifies(p, values[i], &cfg) {
			continue
		}
		res.Candidates++
		distSq := p.DistanceSqTo(cfg.Reference)
		if distSq > bestDistSq {
			bestDistSq = distSq
			res.Tip = p
		}
	}

	if bestDistSq >= 0 {
		res.Found = true
		res.DistanceSq = bestDistSq
	}
	return res, nil
}
