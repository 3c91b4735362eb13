package beam

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvaluateScattersSolution(t *testing.T) {
	g := mustGrid(t, 4)
	sol := Solution{
		BeamPixel(5):   2,
		BeamPixel(99):  7,
		SourceFlux(1):  3,
		SourceFlux(12): 1,
	}
	beam, flux := Evaluate(sol, g, 2)

	r, c := beam.Dims()
	assert.Equal(t, 4, r)
	assert.Equal(t, 4, c)
	assert.Equal(t, 2.0, beam.At(1, 1))
	var sum float64
	for _, v := range Flatten(beam) {
		sum += v
	}
	assert.Equal(t, 2.0, sum)
	assert.Equal(t, []float64{0, 3}, flux)
}

func TestFlattenOrder(t *testing.T) {
	g := mustGrid(t, 3)
	beam, _ := Evaluate(Solution{BeamPixel(g.Pixel(2, 1)): 1}, g, 0)
	flat := Flatten(beam)
	require.Len(t, flat, 9)
	assert.Equal(t, 1.0, flat[7])
}

func TestSolutionNames(t *testing.T) {
	sol := Solution{BeamPixel(12): 0.5, SourceFlux(3): 9}
	names := sol.Names()
	assert.Equal(t, map[string]float64{"b12": 0.5, "I3": 9}, names)

	back, err := SolutionFromNames(names)
	require.NoError(t, err)
	assert.Equal(t, sol, back)
	assert.Equal(t, []Unknown{BeamPixel(12), SourceFlux(3)}, back.Sorted())

	for _, bad := range []string{"x1", "b", "b-1", "Ifoo"} {
		_, err := ParseUnknown(bad)
		assert.Error(t, err, bad)
	}
}

func TestConstKeyString(t *testing.T) {
	assert.Equal(t, "w1830_s4_t17", ConstKey{Pixel: 1830, Source: 4, Time: 17}.String())
}
