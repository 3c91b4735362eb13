package beam

import (
	"testing"

	"beam-solver/internal/catalog"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionCrossPolarizationGaussian(t *testing.T) {
	cat, err := catalog.Simulate(catalog.DefaultSimParams(), catalog.GaussianBeam(0.35))
	require.NoError(t, err)

	g := mustGrid(t, 30)
	s := NewSession(cat, g, BeamOnly)
	_, _, err = s.RemoveDegenerateModes(nil, DefaultThreshold)
	assert.Error(t, err, "not solved yet")

	for _, pass := range CrossPolarization(cat.Flux(0), cat.Flux(1)) {
		n, err := s.ConstructSystem(pass)
		require.NoError(t, err)
		assert.Equal(t, cat.Nsrcs*cat.Nfits, n)
	}

	res, err := s.Solve(DefaultOptions())
	require.NoError(t, err)
	assert.Less(t, res.Residual, 0.01)

	_, err = s.ConstructSystem(SinglePolarization(0, cat.Flux(0)))
	assert.ErrorIs(t, err, ErrBuilt)
	assert.ErrorIs(t, s.Constrain(DefaultMultiply), ErrBuilt)

	beam, flux := s.Evaluate(res.Solution)
	assert.Len(t, flux, cat.Nsrcs)

	cleaned, report, err := s.RemoveDegenerateModes(beam, DefaultThreshold)
	require.NoError(t, err)
	r, c := cleaned.Dims()
	assert.Equal(t, g.Size, r)
	assert.Equal(t, g.Size, c)
	assert.Len(t, report.Singular, len(s.sys.Pixels()))
}

func TestSessionJointWithBeamSeed(t *testing.T) {
	p := catalog.DefaultSimParams()
	p.Polarizations = 1
	p.Sources = 4
	p.Times = 20
	cat, err := catalog.Simulate(p, catalog.GaussianBeam(0.4))
	require.NoError(t, err)

	g := mustGrid(t, 12)
	seed, _ := Evaluate(Solution{BeamPixel(g.Center()): 1}, g, 0)

	s := NewSession(cat, g, Joint)
	_, err = s.ConstructSystem(SinglePolarization(0, cat.Flux(0)), WithBeamSeed(seed))
	require.NoError(t, err)
	require.NoError(t, s.Constrain(DefaultMultiply))

	sys, err := s.System()
	require.NoError(t, err)
	assert.Equal(t, cat.CatalogFlux[0][2], sys.Seed(SourceFlux(2)))
	assert.Len(t, sys.Sources(), p.Sources)

	res, err := s.Solve(DefaultOptions().WithMaxIter(20))
	require.NoError(t, err)
	assert.Equal(t, res.ConvCrit, DefaultOptions().ConvCrit)
	_, flux := s.Evaluate(res.Solution)
	for i, f := range flux {
		assert.Greater(t, f, 0.0, "source %d", i)
	}
}
