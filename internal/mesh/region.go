package mesh

import (
	"encoding/json"
	"fmt"
	"math"
)

// Region is an axis-aligned bounding box with inclusive bounds on both
// ends of every axis. A region where Min exceeds Max on any axis
// contains no points; that is a valid (empty) region, not an error.
type Region struct {
	Min Point `json:"min"`
	Max Point `json:"max"`
}

// UnboundedRegion returns a region spanning all of space. Infinities
// stand in for the "maximum representable float" sentinels that
// simulation post-processing tools use for unbounded axes.
func UnboundedRegion() Region {
	inf := math.Inf(1)
	return Region{
		Min: Point{-inf, -inf, -inf},
		Max: Point{inf, inf, inf},
	}
}

// Contains reports whether p lies within the region, bounds inclusive.
func (r Region) Contains(p Point) bool {
	for k := 0; k < 3; k++ {
		if p[k] < r.Min[k] || p[k] > r.Max[k] {
			return false
		}
	}
	return true
}

// IsUnbounded reports whether every axis spans all of space.
func (r Region) IsUnbounded() bool {
	for k := 0; k < 3; k++ {
		if !math.IsInf(r.Min[k], -1) || !math.IsInf(r.Max[k], 1) {
			return false
		}
	}
	return true
}

// regionJSON is the wire form of a Region. Infinite bounds become
// null, since JSON has no encoding for infinities.
type regionJSON struct {
	Min [3]*float64 `json:"min"`
	Max [3]*float64 `json:"max"`
}

// MarshalJSON encodes unbounded axes as null.
func (r Region) MarshalJSON() ([]byte, error) {
	var out regionJSON
	for k := 0; k < 3; k++ {
		if !math.IsInf(r.Min[k], -1) {
			v := r.Min[k]
			out.Min[k] = &v
		}
		if !math.IsInf(r.Max[k], 1) {
			v := r.Max[k]
			out.Max[k] = &v
		}
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes null bounds back to infinities.
func (r *Region) UnmarshalJSON(data []byte) error {
	var in regionJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	for k := 0; k < 3; k++ {
		if in.Min[k] != nil {
			r.Min[k] = *in.Min[k]
		} else {
			r.Min[k] = math.Inf(-1)
		}
		if in.Max[k] != nil {
			r.Max[k] = *in.Max[k]
		} else {
			r.Max[k] = math.Inf(1)
		}
	}
	return nil
}

// String renders the region compactly for diagnostics, eliding
// unbounded axes as "inf".
func (r Region) String() string {
	if r.IsUnbounded() {
		return "unbounded"
	}
	return fmt.Sprintf("[%g,%g,%g]..[%g,%g,%g]",
		r.Min[0], r.Min[1], r.Min[2], r.Max[0], r.Max[1], r.Max[2])
}
