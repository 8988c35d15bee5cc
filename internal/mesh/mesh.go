// Package mesh provides point-set data structures for phase-field
// simulation output: point coordinates, named per-point scalar fields,
// and axis-aligned regions.
package mesh

import (
	"errors"
	"fmt"
	"sort"
)

// ErrFieldNotFound is returned when a requested scalar field is not
// present on a point set. Callers are expected to recover: log the
// condition and fall back to their default result.
var ErrFieldNotFound = errors.New("scalar field not found")

// ErrNotUnstructuredGrid is returned by the VTK reader when the input
// dataset is not an unstructured grid. Callers should skip the input
// and report the condition rather than abort.
var ErrNotUnstructuredGrid = errors.New("dataset is not an unstructured grid")

// Point is a 3D coordinate (x, y, z).
type Point [3]float64

// DistanceSqTo returns the squared Euclidean distance to q.
func (p Point) DistanceSqTo(q Point) float64 {
	dx := p[0] - q[0]
	dy := p[1] - q[1]
	dz := p[2] - q[2]
	return dx*dx + dy*dy + dz*dz
}

// PointSet holds an ordered sequence of points and the named scalar
// fields defined over them. Field values are associated with points by
// index. A PointSet is treated as immutable once built.
type PointSet struct {
	points []Point
	fields map[string][]float64
}

// NewPointSet builds a point set over the given coordinates. The slice
// is retained, not copied.
func NewPointSet(points []Point) *PointSet {
	return &PointSet{
		points: points,
		fields: make(map[string][]float64),
	}
}

// Len returns the number of points.
func (ps *PointSet) Len() int {
	if ps == nil {
		return 0
	}
	return len(ps.points)
}

// Point returns the point at index i.
func (ps *PointSet) Point(i int) Point {
	return ps.points[i]
}

// Points returns the underlying point slice. Treat as read-only.
func (ps *PointSet) Points() []Point {
	if ps == nil {
		return nil
	}
	return ps.points
}

// AddField attaches a named scalar field. The value count must match
// the point count.
func (ps *PointSet) AddField(name string, values []float64) error {
	if len(values) != len(ps.points) {
		return fmt.Errorf("field %q has %d values for %d points", name, len(values), len(ps.points))
	}
	ps.fields[name] = values
	return nil
}

// Field returns the scalar field with the given name, one value per
// point index. Returns ErrFieldNotFound when the field is absent or
// the point set is empty.
func (ps *PointSet) Field(name string) ([]float64, error) {
	if ps == nil || len(ps.points) == 0 {
		return nil, fmt.Errorf("field %q: %w", name, ErrFieldNotFound)
	}
	values, ok := ps.fields[name]
	if !ok {
		return nil, fmt.Errorf("field %q: %w", name, ErrFieldNotFound)
	}
	return values, nil
}

// FieldNames lists the available scalar fields in sorted order.
func (ps *PointSet) FieldNames() []string {
	if ps == nil {
		return nil
	}
	names := make([]string, 0, len(ps.fields))
	for name := range ps.fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
