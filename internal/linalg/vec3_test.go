package linalg

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVec3_Arithmetic(t *testing.T) {
	a := Vec3{1, 2, 3}
	b := Vec3{-4, 5, 0.5}

	assert.Equal(t, Vec3{-3, 7, 3.5}, a.Add(b))
	assert.Equal(t, Vec3{5, -3, 2.5}, a.Sub(b))
	assert.Equal(t, Vec3{2, 4, 6}, a.Scale(2))
	assert.Equal(t, Vec3{-1, -2, -3}, a.Neg())
	assert.Equal(t, 7.5, a.Dot(b))
	assert.InDelta(t, math.Sqrt(14), a.Norm(), 1e-15)
	assert.InDelta(t, a.Sub(b).Norm(), a.Distance(b), 1e-15)
	assert.Equal(t, 1.0, a.X())
	assert.Equal(t, 2.0, a.Y())
	assert.Equal(t, 3.0, a.Z())
}

func TestVec3_Cross(t *testing.T) {
	x := Vec3{1, 0, 0}
	y := Vec3{0, 1, 0}
	z := Vec3{0, 0, 1}

	assert.Equal(t, z, x.Cross(y))
	assert.Equal(t, x, y.Cross(z))
	assert.Equal(t, y, z.Cross(x))
	assert.Equal(t, z.Neg(), y.Cross(x))

	a := Vec3{3, -1, 2}
	b := Vec3{0.5, 4, -2}
	c := a.Cross(b)
	assert.InDelta(t, 0, c.Dot(a), 1e-12)
	assert.InDelta(t, 0, c.Dot(b), 1e-12)
}

func TestVec3_Unit(t *testing.T) {
	u, err := Vec3{3, 0, 4}.Unit()
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{0.6, 0, 0.8}, u[:], 1e-15)

	_, err = Vec3{}.Unit()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDegenerate))

	var de *DomainError
	require.True(t, errors.As(err, &de))
	assert.Equal(t, "linalg.Unit", de.Op)
}

func TestVec3_String(t *testing.T) {
	assert.Equal(t, "(1.000, -2.500, 0.001)", Vec3{1, -2.5, 0.0012}.String())
}
