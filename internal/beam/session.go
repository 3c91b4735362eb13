package beam

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Session runs one construct -> solve -> clean -> evaluate pipeline over a
// catalog. The first Solve freezes the system; later ConstructSystem calls fail.
// A Session is not safe for concurrent use.
type Session struct {
	obs     Observations
	grid    Grid
	builder *Builder
	sys     *System
	last    Solution
}

// NewSession creates a session over obs on grid with the given equation form.
func NewSession(obs Observations, grid Grid, form EquationForm) *Session {
	return &Session{
		obs:     obs,
		grid:    grid,
		builder: NewBuilder(grid, form),
	}
}

// SeedOption configures initial guesses for ConstructSystem.
type SeedOption func(*Builder) error

// WithBeamSeed seeds joint-mode beam unknowns from a previous beam estimate.
func WithBeamSeed(beam mat.Matrix) SeedOption {
	return func(b *Builder) error {
		if beam == nil {
			return b.SetBeamSeed(nil)
		}
		return b.SetBeamSeed(Flatten(beam))
	}
}

// ConstructSystem adds the equations of pass. It returns the number of samples emitted.
func (s *Session) ConstructSystem(pass Pass, seeds ...SeedOption) (int, error) {
	if s.sys != nil {
		return 0, ErrBuilt
	}
	for _, opt := range seeds {
		if err := opt(s.builder); err != nil {
			return 0, err
		}
	}
	return s.builder.Construct(s.obs, pass)
}

// Constrain pins the zenith pixel to unit gain with weight multiply.
func (s *Session) Constrain(multiply float64) error {
	if s.sys != nil {
		return ErrBuilt
	}
	s.builder.Constrain(multiply)
	return nil
}

// System returns the frozen system, building it on first use.
func (s *Session) System() (*System, error) {
	if s.sys == nil {
		sys, err := s.builder.Build()
		if err != nil {
			return nil, err
		}
		s.sys = sys
	}
	return s.sys, nil
}

// Solve builds the system if needed and solves it.
func (s *Session) Solve(opts Options) (*Result, error) {
	sys, err := s.System()
	if err != nil {
		return nil, err
	}
	res, err := Solve(sys, opts)
	if err != nil {
		return nil, err
	}
	s.last = res.Solution
	return res, nil
}

// Evaluate reshapes sol into a beam grid and a per-source flux vector.
func (s *Session) Evaluate(sol Solution) (*mat.Dense, []float64) {
	return Evaluate(sol, s.grid, s.obs.NumSources())
}

// RemoveDegenerateModes deflates beam using the system of the last Solve.
func (s *Session) RemoveDegenerateModes(beam mat.Matrix, threshold float64) (*mat.Dense, *ModeReport, error) {
	if s.sys == nil || s.last == nil {
		return nil, nil, fmt.Errorf("remove degenerate modes: system not solved")
	}
	return RemoveDegenerateModes(beam, s.sys, s.last, threshold)
}
