package beam

import (
	"errors"
	"fmt"
	"math"
)

// DefaultMultiply weights the center-pixel constraint row.
const DefaultMultiply = 100.0

var (
	// ErrInvalidCatalogFlux is returned when a catalog flux is not positive and finite.
	ErrInvalidCatalogFlux = errors.New("catalog flux must be positive and finite")

	// ErrEmptySystem is returned when Build is called before any equation was emitted.
	ErrEmptySystem = errors.New("no equations in system")

	// ErrBuilt is returned when a Builder is used after Build.
	ErrBuilt = errors.New("builder already built")
)

// Observations is the catalog contract the builder reads from.
type Observations interface {
	NumPolarizations() int
	NumSources() int
	NumTimes() int
	// Observed returns the measured flux, NaN when the sample is flagged.
	Observed(pol, src, t int) float64
	// Direction returns the source position in degrees.
	Direction(src, t int) (azDeg, altDeg float64)
}

// Pass is one polarization's contribution to a system: which data plane to
// read, the catalog fluxes to normalise against and the orientations under
// which the beam is assumed symmetric.
type Pass struct {
	Polarization int
	CatalogFlux  []float64
	Rotations    []float64
	Flips        []int
}

// SinglePolarization returns a pass over polarization pol with no extra orientations.
func SinglePolarization(pol int, catalogFlux []float64) Pass {
	return Pass{
		Polarization: pol,
		CatalogFlux:  catalogFlux,
		Rotations:    []float64{0},
		Flips:        []int{1},
	}
}

// CrossPolarization returns the dual-polarization passes: xx as observed, yy
// rotated by a quarter turn onto the same grid.
func CrossPolarization(catalogXX, catalogYY []float64) []Pass {
	yy := SinglePolarization(1, catalogYY)
	yy.Rotations = []float64{math.Pi / 2}
	return []Pass{SinglePolarization(0, catalogXX), yy}
}

// Transforms expands rotations x flips. Empty lists default to the identity.
func (p Pass) Transforms() []Transform {
	rots := p.Rotations
	if len(rots) == 0 {
		rots = []float64{0}
	}
	flips := p.Flips
	if len(flips) == 0 {
		flips = []int{1}
	}
	out := make([]Transform, 0, len(rots)*len(flips))
	for _, r := range rots {
		for _, f := range flips {
			out = append(out, Transform{Rotation: r, Flip: f})
		}
	}
	return out
}

// Builder accumulates equations and weight constants. It is not safe for
// concurrent use and cannot be reused after Build.
type Builder struct {
	grid Grid
	form EquationForm

	eqs     []Equation
	eqIndex map[string]int
	consts  map[ConstKey]float64
	seeds   map[Unknown]float64
	orients map[orientation]int

	beamSeed   []float64
	constraint *Constraint
	numSources int
	built      bool
}

// NewBuilder creates an empty builder for grid using form.
func NewBuilder(grid Grid, form EquationForm) *Builder {
	return &Builder{
		grid:    grid,
		form:    form,
		eqIndex: make(map[string]int),
		consts:  make(map[ConstKey]float64),
		seeds:   make(map[Unknown]float64),
		orients: make(map[orientation]int),
	}
}

// orientation is one (polarization, transform) pair of a pass.
type orientation struct {
	pol int
	tr  Transform
}

// orientation returns the index of (pol, tr), assigning the next free one
// on first use.
func (b *Builder) orientation(pol int, tr Transform) int {
	o := orientation{pol: pol, tr: tr}
	id, ok := b.orients[o]
	if !ok {
		id = len(b.orients)
		b.orients[o] = id
	}
	return id
}

// SetBeamSeed sets the beam values used as initial guesses in joint mode.
// seed is a flattened grid; nil resets it to zero.
func (b *Builder) SetBeamSeed(seed []float64) error {
	if seed != nil && len(seed) != b.grid.Len() {
		return fmt.Errorf("beam seed has %d values, grid has %d pixels", len(seed), b.grid.Len())
	}
	b.beamSeed = seed
	return nil
}

// Constrain adds multiply * b[center] = multiply, pinning the beam scale so
// the zenith pixel has unit gain.
func (b *Builder) Constrain(multiply float64) {
	b.constraint = &Constraint{Pixel: b.grid.Center(), Multiply: multiply}
}

// NumEquations returns the number of distinct equations accumulated so far.
func (b *Builder) NumEquations() int {
	return len(b.eqs)
}

// Construct emits the equations of one pass, iterating sources, then
// transforms, then times. It returns the number of samples emitted; flagged
// samples are skipped.
func (b *Builder) Construct(obs Observations, p Pass) (int, error) {
	if b.built {
		return 0, ErrBuilt
	}
	nsrcs := obs.NumSources()
	if p.Polarization < 0 || p.Polarization >= obs.NumPolarizations() {
		return 0, fmt.Errorf("polarization %d out of range [0, %d)", p.Polarization, obs.NumPolarizations())
	}
	if len(p.CatalogFlux) != nsrcs {
		return 0, fmt.Errorf("catalog flux has %d values for %d sources", len(p.CatalogFlux), nsrcs)
	}
	for i, f := range p.CatalogFlux {
		if !(f > 0) || math.IsInf(f, 0) {
			return 0, fmt.Errorf("source %d (%g): %w", i, f, ErrInvalidCatalogFlux)
		}
	}
	if nsrcs > b.numSources {
		b.numSources = nsrcs
	}

	transforms := p.Transforms()
	ntimes := obs.NumTimes()
	emitted := 0
	for src := 0; src < nsrcs; src++ {
		for _, tr := range transforms {
			orient := b.orientation(p.Polarization, tr)
			for t := 0; t < ntimes; t++ {
				observed := obs.Observed(p.Polarization, src, t)
				if math.IsNaN(observed) {
					continue
				}
				az, alt := obs.Direction(src, t)
				wp := b.grid.Project(az, alt, tr)
				if b.addSample(wp, orient, observed, p.CatalogFlux[src], src, t) {
					emitted++
				}
			}
		}
	}
	return emitted, nil
}

// AddSample emits the equation for one sample and registers its weight
// constants and seeds. It returns false when the sample is flagged (NaN
// observed flux) and nothing was added.
//
// An equation whose left-hand side was seen before replaces the earlier
// target in place. Weights are keyed under orientation 0.
func (b *Builder) AddSample(wp WeightedPixels, observed, catalog float64, src, t int) bool {
	return b.addSample(wp, 0, observed, catalog, src, t)
}

func (b *Builder) addSample(wp WeightedPixels, orient int, observed, catalog float64, src, t int) bool {
	if b.built || math.IsNaN(observed) {
		return false
	}
	joint := b.form.Joint()

	eq := Equation{
		Terms:  make([]Term, 4),
		Target: b.form.Target(observed, catalog),
		Source: src,
		Time:   t,
	}
	for i, px := range wp.Pixels {
		key := ConstKey{Pixel: px, Source: src, Time: t, Orientation: orient}
		b.consts[key] = wp.Weights[i]
		eq.Terms[i] = Term{Pixel: px, Key: key, Flux: joint}
	}

	sig := eq.signature()
	if idx, ok := b.eqIndex[sig]; ok {
		b.eqs[idx].Target = eq.Target
	} else {
		b.eqIndex[sig] = len(b.eqs)
		b.eqs = append(b.eqs, eq)
	}

	if joint {
		b.seeds[SourceFlux(src)] = catalog
		for _, px := range wp.Pixels {
			b.seeds[BeamPixel(px)] = b.seedValue(px)
		}
	}
	if src+1 > b.numSources {
		b.numSources = src + 1
	}
	return true
}

func (b *Builder) seedValue(pixel int) float64 {
	if b.beamSeed == nil {
		return 0
	}
	return b.beamSeed[pixel]
}

// Build freezes the accumulated equations into a System. The builder cannot
// be used afterwards.
func (b *Builder) Build() (*System, error) {
	if b.built {
		return nil, ErrBuilt
	}
	if len(b.eqs) == 0 {
		return nil, ErrEmptySystem
	}
	b.built = true
	sys := newSystem(b.grid, b.form, b.eqs, b.consts, b.seeds, b.constraint, b.numSources)
	b.eqs, b.eqIndex, b.consts, b.seeds, b.orients = nil, nil, nil, nil, nil
	return sys, nil
}
