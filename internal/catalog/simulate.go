package catalog

import (
	"fmt"
	"math"
	"math/rand"

	"beam-solver/pkg/geometry"
)

// BeamModel returns the beam gain at topocentric direction cosines (x, y).
type BeamModel func(x, y float64) float64

// GaussianBeam returns a circular Gaussian with unit zenith gain and the given
// width in direction-cosine units.
func GaussianBeam(sigma float64) BeamModel {
	return func(x, y float64) float64 {
		return math.Exp(-(x*x + y*y) / (2 * sigma * sigma))
	}
}

// SimParams controls Simulate.
type SimParams struct {
	Sources       int
	Times         int
	Polarizations int // 1 or 2

	// Tracks run east to west at fixed north offsets spread over
	// [-MaxOffset, MaxOffset], sweeping x over [-Sweep, Sweep].
	MaxOffset float64
	Sweep     float64

	MinFlux, MaxFlux float64
	FlagFraction     float64
	Seed             int64
}

// DefaultSimParams returns parameters for a small two-polarization data set.
func DefaultSimParams() SimParams {
	return SimParams{
		Sources:       12,
		Times:         40,
		Polarizations: 2,
		MaxOffset:     0.5,
		Sweep:         0.7,
		MinFlux:       1,
		MaxFlux:       20,
		Seed:          1,
	}
}

// Simulate produces noiseless transits through model. Polarization 1 sees
// the beam turned by a quarter, matching the cross-polarization pass layout.
func Simulate(p SimParams, model BeamModel) (*Catalog, error) {
	if p.Sources < 1 || p.Times < 2 {
		return nil, fmt.Errorf("need at least 1 source and 2 times, got %d and %d", p.Sources, p.Times)
	}
	if p.Polarizations < 1 || p.Polarizations > 2 {
		return nil, fmt.Errorf("polarizations must be 1 or 2, got %d", p.Polarizations)
	}
	if p.MaxOffset*p.MaxOffset+p.Sweep*p.Sweep >= 1 {
		return nil, fmt.Errorf("tracks leave the sky: offset %.2f, sweep %.2f", p.MaxOffset, p.Sweep)
	}

	rng := rand.New(rand.NewSource(p.Seed))
	c := New(p.Polarizations, p.Sources, p.Times)

	for s := 0; s < p.Sources; s++ {
		offset := 0.0
		if p.Sources > 1 {
			offset = -p.MaxOffset + 2*p.MaxOffset*float64(s)/float64(p.Sources-1)
		}
		flux := p.MinFlux + (p.MaxFlux-p.MinFlux)*rng.Float64()
		for pol := range c.CatalogFlux {
			c.CatalogFlux[pol][s] = flux
		}

		for t := 0; t < p.Times; t++ {
			x := -p.Sweep + 2*p.Sweep*float64(t)/float64(p.Times-1)
			y := offset
			z := math.Sqrt(1 - x*x - y*y)
			az, alt := geometry.TopToAzAlt(x, y, z)
			c.AzAlt[s][t] = Direction{Az: az, Alt: alt}

			if p.FlagFraction > 0 && rng.Float64() < p.FlagFraction {
				continue
			}
			c.Data[0][s][t] = flux * model(x, y)
			if p.Polarizations > 1 {
				c.Data[1][s][t] = flux * model(-y, x)
			}
		}
	}
	return c, nil
}
