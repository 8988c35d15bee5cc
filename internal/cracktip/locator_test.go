package cracktip

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phasefield-data/fracture.report/internal/mesh"
)

func newDamagedSet(t *testing.T, points []mesh.Point, damage []float64) *mesh.PointSet {
	t.Helper()
	ps := mesh.NewPointSet(points)
	require.NoError(t, ps.AddField("d", damage))
	return ps
}

func TestLocateFarthestBrokenPoint(t *testing.T) {
	t.Parallel()

	// The point at (2,0,0) is farthest but below threshold; (1,0,0)
	// wins.
	ps := newDamagedSet(t,
		[]mesh.Point{{0, 0, 0}, {1, 0, 0}, {2, 0, 0}},
		[]float64{0.9, 0.9, 0.1})

	res, err := Locate(ps, DefaultScanConfig())
	require.NoError(t, err)
	assert.True(t, res.Found)
	assert.Equal(t, mesh.Point{1, 0, 0}, res.Tip)
	assert.Equal(t, 1.0, res.DistanceSq)
	assert.Equal(t, 2, res.Candidates)
}

func TestLocateRegionRestriction(t *testing.T) {
	t.Parallel()

	ps := newDamagedSet(t,
		[]mesh.Point{{0, 0, 0}, {1, 0, 0}, {2, 0, 0}},
		[]float64{0.9, 0.9, 0.9})

	cfg := DefaultScanConfig()
	cfg.Region.Min[0] = -1
	cfg.Region.Max[0] = 0.5

	res, err := Locate(ps, cfg)
	require.NoError(t, err)
	assert.True(t, res.Found)
	// Only (0,0,0) is in the region; distance from the reference to
	// itself is zero, yet it still counts as found.
	assert.Equal(t, mesh.Point{0, 0, 0}, res.Tip)
	assert.Equal(t, 0.0, res.DistanceSq)
	assert.Equal(t, 1, res.Candidates)
}

func TestLocateNoQualifierReturnsReference(t *testing.T) {
	t.Parallel()

	ps := newDamagedSet(t,
		[]mesh.Point{{1, 1, 1}, {2, 2, 2}},
		[]float64{0.2, 0.3})

	cfg := DefaultScanConfig()
	cfg.Reference = mesh.Point{5, 5, 5}

	res, err := Locate(ps, cfg)
	require.NoError(t, err)
	assert.False(t, res.Found)
	assert.Equal(t, mesh.Point{5, 5, 5}, res.Tip)
	assert.Equal(t, 0.0, res.DistanceSq)
	assert.Equal(t, 0, res.Candidates)
}

func TestLocateFieldNotFound(t *testing.T) {
	t.Parallel()

	ps := mesh.NewPointSet([]mesh.Point{{1, 0, 0}})
	cfg := DefaultScanConfig()
	cfg.Reference = mesh.Point{3, 0, 0}

	res, err := Locate(ps, cfg)
	assert.True(t, errors.Is(err, mesh.ErrFieldNotFound))
	assert.Equal(t, mesh.Point{3, 0, 0}, res.Tip)
	assert.False(t, res.Found)
}

func TestLocateEmptyPointSet(t *testing.T) {
	t.Parallel()

	ps := mesh.NewPointSet(nil)
	cfg := DefaultScanConfig()
	cfg.Reference = mesh.Point{1, 2, 3}

	res, err := Locate(ps, cfg)
	assert.True(t, errors.Is(err, mesh.ErrFieldNotFound))
	assert.Equal(t, mesh.Point{1, 2, 3}, res.Tip)
}

func TestLocateThresholdIsStrict(t *testing.T) {
	t.Parallel()

	ps := newDamagedSet(t,
		[]mesh.Point{{1, 0, 0}, {2, 0, 0}},
		[]float64{0.5, 0.5000001})

	res, err := Locate(ps, DefaultScanConfig())
	require.NoError(t, err)
	// Exactly-at-threshold does not qualify.
	assert.Equal(t, mesh.Point{2, 0, 0}, res.Tip)
	assert.Equal(t, 1, res.Candidates)
}

func TestLocateTieKeepsEarliestIndex(t *testing.T) {
	t.Parallel()

	// Both points sit at distance 1 from the reference.
	ps := newDamagedSet(t,
		[]mesh.Point{{1, 0, 0}, {-1, 0, 0}},
		[]float64{0.9, 0.9})

	res, err := Locate(ps, DefaultScanConfig())
	require.NoError(t, err)
	assert.Equal(t, mesh.Point{1, 0, 0}, res.Tip)
}

func TestLocateInclusiveRegionBounds(t *testing.T) {
	t.Parallel()

	ps := newDamagedSet(t,
		[]mesh.Point{{1, 0, 0}, {2, 0, 0}},
		[]float64{0.9, 0.9})

	cfg := DefaultScanConfig()
	cfg.Region = mesh.Region{Min: mesh.Point{1, -1, -1}, Max: mesh.Point{2, 1, 1}}

	res, err := Locate(ps, cfg)
	require.NoError(t, err)
	// Both boundary points qualify; the farther one wins.
	assert.Equal(t, mesh.Point{2, 0, 0}, res.Tip)
	assert.Equal(t, 2, res.Candidates)
}

func TestLocateDegenerateRegion(t *testing.T) {
	t.Parallel()

	ps := newDamagedSet(t,
		[]mesh.Point{{1, 0, 0}},
		[]float64{0.9})

	cfg := DefaultScanConfig()
	cfg.Region = mesh.Region{Min: mesh.Point{2, 0, 0}, Max: mesh.Point{-2, 0, 0}}

	res, err := Locate(ps, cfg)
	require.NoError(t, err)
	assert.False(t, res.Found)
	assert.Equal(t, cfg.Reference, res.Tip)
}

func TestLocateQualifierAtReference(t *testing.T) {
	t.Parallel()

	// A broken point coincident with the reference must still be
	// reported as found: the sentinel starts below zero.
	ps := newDamagedSet(t,
		[]mesh.Point{{0, 0, 0}},
		[]float64{0.9})

	res, err := Locate(ps, DefaultScanConfig())
	require.NoError(t, err)
	assert.True(t, res.Found)
	assert.Equal(t, mesh.Point{0, 0, 0}, res.Tip)
	assert.Equal(t, 0.0, res.DistanceSq)
}

func TestLocateMaximisesSquaredDistance(t *testing.T) {
	t.Parallel()

	points := []mesh.Point{
		{0.5, 0, 0}, {0, 3, 0}, {1, 1, 1}, {-4, 0, 0}, {2, 2, 0},
	}
	damage := []float64{0.8, 0.7, 0.6, 0.95, 0.55}
	ps := newDamagedSet(t, points, damage)

	res, err := Locate(ps, DefaultScanConfig())
	require.NoError(t, err)

	best := -1.0
	for i, p := range points {
		if damage[i] > DefaultThreshold {
			if d := p.DistanceSqTo(mesh.Point{}); d > best {
				best = d
			}
		}
	}
	assert.Equal(t, best, res.DistanceSq)
	assert.Equal(t, mesh.Point{-4, 0, 0}, res.Tip)
}
