package beam

import (
	"strconv"
	"strings"
)

// Term is one summand of an equation: weight[Key] * b[Pixel], times
// I[Key.Source] when Flux is set.
type Term struct {
	Pixel int
	Key   ConstKey
	Flux  bool
}

// Equation is sum(terms) = Target for one (source, time) sample.
type Equation struct {
	Terms  []Term
	Target float64
	Source int
	Time   int
}

// String renders the equation the way the unknowns are named in solutions,
// e.g. "w5_s0_t1*b5*I0 + ... = 2.5".
func (e Equation) String() string {
	return e.signature() + " = " + strconv.FormatFloat(e.Target, 'g', -1, 64)
}

// signature identifies the left-hand side. Two samples with the same
// signature describe the same equation.
func (e Equation) signature() string {
	var sb strings.Builder
	for i, t := range e.Terms {
		if i > 0 {
			sb.WriteString(" + ")
		}
		sb.WriteString(t.Key.String())
		sb.WriteByte('*')
		sb.WriteString(BeamPixel(t.Pixel).String())
		if t.Flux {
			sb.WriteByte('*')
			sb.WriteString(SourceFlux(t.Key.Source).String())
		}
	}
	return sb.String()
}

// EquationForm decides what a sample's equation solves for.
type EquationForm interface {
	// Name is a short identifier used in configs and logs.
	Name() string
	// Joint reports whether per-source fluxes are unknowns too.
	Joint() bool
	// Target is the right-hand side for a sample.
	Target(observed, catalog float64) float64
}

type beamOnlyForm struct{}

func (beamOnlyForm) Name() string { return "beam" }
func (beamOnlyForm) Joint() bool  { return false }

func (beamOnlyForm) Target(observed, catalog float64) float64 { return observed / catalog }

type jointForm struct{}

func (jointForm) Name() string { return "joint" }
func (jointForm) Joint() bool  { return true }

func (jointForm) Target(observed, _ float64) float64 { return observed }

var (
	// BeamOnly normalises each observation by its catalog flux and solves a
	// linear system in the beam pixels.
	BeamOnly EquationForm = beamOnlyForm{}

	// Joint keeps raw observed fluxes and solves the bilinear system in beam
	// pixels and source fluxes.
	Joint EquationForm = jointForm{}
)

// FormByName returns the equation form called name.
func FormByName(name string) (EquationForm, bool) {
	switch name {
	case BeamOnly.Name():
		return BeamOnly, true
	case Joint.Name():
		return Joint, true
	}
	return nil, false
}
