package tensor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShape(t *testing.T) {
	s := Shape{2, 3, 4}
	assert.Equal(t, 24, s.NumElements())
	assert.Equal(t, []int{12, 4, 1}, s.ComputeStrides())
	assert.Equal(t, 1, Shape{}.NumElements())
	assert.True(t, s.Equal(Shape{2, 3, 4}))
	assert.False(t, s.Equal(Shape{2, 3}))
	assert.Equal(t, "[2 3 4]", s.String())
	require.Error(t, Shape{2, 0}.Validate())

	c := s.Clone()
	c[0] = 9
	assert.Equal(t, 2, s[0])
}

func TestFromSliceSharesData(t *testing.T) {
	data := []float64{1, 2, 3, 4, 5, 6}
	x, err := FromSlice(data, Shape{2, 3})
	require.NoError(t, err)
	data[4] = 50
	assert.InDelta(t, 50.0, x.At(1, 1), 0)

	_, err = FromSlice(data, Shape{4, 2})
	require.ErrorIs(t, err, ErrShapeMismatch)
	_, err = New(Shape{3, -1})
	require.Error(t, err)
}

func TestIndexing(t *testing.T) {
	x := Zeros(2, 3, 2)
	x.Set(7, 1, 2, 0)
	assert.InDelta(t, 7.0, x.Data()[10], 0)
	assert.Equal(t, []float64{0, 0, 0, 0, 7, 0}, x.Row(1))
	assert.Equal(t, 3, x.Rank())
	assert.Equal(t, 3, x.Dim(1))

	assert.Panics(t, func() { x.At(2, 0, 0) })
	assert.Panics(t, func() { x.At(0, 0) })

	v := MustFromSlice([]float64{4, 5, 6}, 3)
	assert.Equal(t, []float64{5}, v.Row(1))
}

func TestReshapeCloneAdd(t *testing.T) {
	x := MustFromSlice([]float64{1, 2, 3, 4}, 2, 2)
	y, err := x.Reshape(4)
	require.NoError(t, err)
	y.Data()[0] = 10
	assert.InDelta(t, 10.0, x.At(0, 0), 0)
	_, err = x.Reshape(3)
	require.ErrorIs(t, err, ErrShapeMismatch)

	c := x.Clone()
	c.Fill(1)
	assert.InDelta(t, 10.0, x.At(0, 0), 0)

	require.NoError(t, c.AddInPlace(x))
	assert.Equal(t, []float64{11, 3, 4, 5}, c.Data())
	require.ErrorIs(t, c.AddInPlace(Zeros(4)), ErrShapeMismatch)

	assert.True(t, c.AllClose(MustFromSlice([]float64{11, 3, 4, 5.0000001}, 2, 2), 1e-6))
	assert.False(t, c.AllClose(Full(1, 4), 1))
	assert.Equal(t, "Tensor[2 2]", c.String())
}

func TestZerosPanicsOnInvalidShape(t *testing.T) {
	assert.Panics(t, func() { Zeros(0, 2) })
}
