package beam

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSolveBeamOnlyRecoversBeam(t *testing.T) {
	g := mustGrid(t, 4)
	truth := smoothBeam(g)
	b := NewBuilder(g, BeamOnly)
	for i, wp := range randomFootprints(g, 200, 11) {
		b.AddSample(wp, 2*interpolate(wp, truth), 2, 0, i)
	}
	sys, err := b.Build()
	require.NoError(t, err)

	res, err := Solve(sys, DefaultOptions())
	require.NoError(t, err)
	assert.True(t, res.Converged)
	assert.Equal(t, 1, res.Iterations)
	assert.InDelta(t, 0, res.Residual, 1e-9)
	for px, want := range truth {
		got, ok := res.Solution.Beam(px)
		require.True(t, ok, "pixel %d", px)
		assert.InDelta(t, want, got, 1e-8, "pixel %d", px)
	}
}

func TestSolveBeamOnlyFromTransits(t *testing.T) {
	g := mustGrid(t, 10)
	cat := []float64{1, 4, 2, 8, 5}
	obs := transits(g, len(cat), 30, cat, smoothBeam(g))

	b := NewBuilder(g, BeamOnly)
	_, err := b.Construct(obs, SinglePolarization(0, cat))
	require.NoError(t, err)
	sys, err := b.Build()
	require.NoError(t, err)

	res, err := Solve(sys, DefaultOptions())
	require.NoError(t, err)
	assert.InDelta(t, 0, res.Residual, 1e-5)
}

func TestSolveLeavesUnseenPixelsOut(t *testing.T) {
	g := mustGrid(t, 10)
	b := NewBuilder(g, BeamOnly)
	b.AddSample(WeightedPixels{Pixels: [4]int{0, 1, 10, 11}, Weights: [4]float64{0.4, 0.3, 0.2, 0.1}}, 3, 1, 0, 0)
	sys, err := b.Build()
	require.NoError(t, err)

	res, err := Solve(sys, DefaultOptions())
	require.NoError(t, err)
	assert.Len(t, res.Solution, 4)
	_, ok := res.Solution.Beam(g.Center())
	assert.False(t, ok)

	// Minimum norm: the solution is parallel to the weights.
	b0, _ := res.Solution.Beam(0)
	b11, _ := res.Solution.Beam(11)
	assert.InDelta(t, 4, b0/b11, 1e-9)
	assert.InDelta(t, 0, res.Residual, 1e-12)
}

// jointSystem observes every source through the same footprints, so the
// alternating solve has an exact rank-one answer.
func jointSystem(t *testing.T, g Grid, truth, flux, catalog []float64, constrain bool) *System {
	t.Helper()
	b := NewBuilder(g, Joint)
	fps := randomFootprints(g, 200, 5)
	for s := range flux {
		for i, wp := range fps {
			b.AddSample(wp, flux[s]*interpolate(wp, truth), catalog[s], s, i)
		}
	}
	if constrain {
		b.Constrain(DefaultMultiply)
	}
	sys, err := b.Build()
	require.NoError(t, err)
	return sys
}

func TestSolveJointUpToScale(t *testing.T) {
	g := mustGrid(t, 4)
	truth := smoothBeam(g)
	flux := []float64{2, 5, 9}
	sys := jointSystem(t, g, truth, flux, []float64{1, 1, 1}, false)

	res, err := Solve(sys, DefaultOptions().WithConvCrit(1e-9))
	require.NoError(t, err)
	assert.True(t, res.Converged)
	assert.LessOrEqual(t, res.Iterations, 5)
	assert.InDelta(t, 0, res.Residual, 1e-8)

	ref := g.Center()
	bRef, _ := res.Solution.Beam(ref)
	for px, want := range truth {
		got, _ := res.Solution.Beam(px)
		assert.InDelta(t, want/truth[ref], got/bRef, 1e-8, "pixel %d", px)
	}
	for s, want := range flux {
		got, _ := res.Solution.Flux(s)
		assert.InDelta(t, want*truth[ref], got*bRef, 1e-7, "source %d", s)
	}
}

func TestSolveJointConstrained(t *testing.T) {
	g := mustGrid(t, 4)
	truth := smoothBeam(g)
	flux := []float64{2, 5, 9}
	sys := jointSystem(t, g, truth, flux, []float64{3, 3, 3}, true)

	res, err := Solve(sys, DefaultOptions())
	require.NoError(t, err)
	require.True(t, res.Converged, "metric %g after %d iterations", res.Metric, res.Iterations)
	assert.LessOrEqual(t, res.Iterations, 10)

	center, _ := res.Solution.Beam(g.Center())
	assert.InDelta(t, 1, center, 1e-6)
	for s, want := range flux {
		got, _ := res.Solution.Flux(s)
		assert.InDelta(t, want*truth[g.Center()], got, 1e-5, "source %d", s)
	}
	for px, want := range truth {
		got, _ := res.Solution.Beam(px)
		assert.InDelta(t, want/truth[g.Center()], got, 1e-6, "pixel %d", px)
	}
}

func TestSolveJointConstrainedDistinctFootprints(t *testing.T) {
	g := mustGrid(t, 5)
	truth := smoothBeam(g)
	flux := []float64{1.5, 4, 7, 11}
	b := NewBuilder(g, Joint)
	for s := range flux {
		for i, wp := range randomFootprints(g, 150, int64(20+s)) {
			b.AddSample(wp, flux[s]*interpolate(wp, truth), 2, s, i)
		}
	}
	b.Constrain(DefaultMultiply)
	sys, err := b.Build()
	require.NoError(t, err)

	res, err := Solve(sys, DefaultOptions())
	require.NoError(t, err)
	require.True(t, res.Converged, "metric %g after %d iterations", res.Metric, res.Iterations)
	assert.InDelta(t, 0, res.Residual, 1e-8)

	ref := truth[g.Center()]
	for s, want := range flux {
		got, _ := res.Solution.Flux(s)
		assert.InDelta(t, want*ref, got, 1e-6, "source %d", s)
	}
}

func TestSolveJointReportsNonConvergence(t *testing.T) {
	g := mustGrid(t, 4)
	sys := jointSystem(t, g, smoothBeam(g), []float64{2, 5, 9}, []float64{1, 1, 1}, false)

	res, err := Solve(sys, DefaultOptions().WithMaxIter(1))
	require.NoError(t, err)
	assert.False(t, res.Converged)
	assert.Equal(t, 1, res.Iterations)
	assert.Greater(t, res.Metric, res.ConvCrit)
	assert.Len(t, res.Solution, len(sys.Unknowns()))
}

func TestSolveRejectsBadOptions(t *testing.T) {
	g := mustGrid(t, 4)
	b := NewBuilder(g, BeamOnly)
	b.AddSample(randomFootprints(g, 1, 1)[0], 1, 1, 0, 0)
	sys, err := b.Build()
	require.NoError(t, err)

	_, err = Solve(sys, DefaultOptions().WithMaxIter(0))
	assert.Error(t, err)
	_, err = Solve(sys, DefaultOptions().WithConvCrit(0))
	assert.Error(t, err)
}

func TestLeastSquaresCutsOnNormalSpectrum(t *testing.T) {
	// A = diag(1, 1e-6): AᵗA = diag(1, 1e-12) falls below the default cut.
	rows := []row{
		{cols: []int{0}, vals: []float64{1}, target: 1},
		{cols: []int{1}, vals: []float64{1e-6}, target: 1e-6},
	}
	x, err := leastSquares(rows, 2, DefaultOptions().RCond)
	require.NoError(t, err)
	assert.InDelta(t, 1, x[0], 1e-12)
	assert.InDelta(t, 0, x[1], 1e-12)

	x, err = leastSquares(rows, 2, 1e-14)
	require.NoError(t, err)
	assert.InDelta(t, 1, x[1], 1e-3)
}
