package mesh

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPointDistanceSq(t *testing.T) {
	t.Parallel()

	p := Point{1, 2, 3}
	q := Point{4, 6, 3}
	assert.Equal(t, 25.0, p.DistanceSqTo(q))
	assert.Equal(t, 0.0, p.DistanceSqTo(p))
}

func TestPointSetFields(t *testing.T) {
	t.Parallel()

	ps := NewPointSet([]Point{{0, 0, 0}, {1, 0, 0}})
	require.NoError(t, ps.AddField("d", []float64{0.1, 0.9}))

	t.Run("present", func(t *testing.T) {
		values, err := ps.Field("d")
		require.NoError(t, err)
		assert.Equal(t, []float64{0.1, 0.9}, values)
	})

	t.Run("absent", func(t *testing.T) {
		_, err := ps.Field("stress")
		assert.True(t, errors.Is(err, ErrFieldNotFound))
	})

	t.Run("length mismatch", func(t *testing.T) {
		err := ps.AddField("bad", []float64{1})
		assert.Error(t, err)
	})

	t.Run("names sorted", func(t *testing.T) {
		require.NoError(t, ps.AddField("a_field", []float64{0, 0}))
		assert.Equal(t, []string{"a_field", "d"}, ps.FieldNames())
	})
}

func TestEmptyPointSetFieldLookup(t *testing.T) {
	t.Parallel()

	ps := NewPointSet(nil)
	_, err := ps.Field("d")
	assert.True(t, errors.Is(err, ErrFieldNotFound))

	var nilSet *PointSet
	assert.Equal(t, 0, nilSet.Len())
	_, err = nilSet.Field("d")
	assert.True(t, errors.Is(err, ErrFieldNotFound))
}
