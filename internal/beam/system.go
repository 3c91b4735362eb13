package beam

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// Constraint is the optional row Multiply * b[Pixel] = Multiply.
type Constraint struct {
	Pixel    int
	Multiply float64
}

// System is a frozen set of equations ready to solve. Unknown columns are
// ordered by first appearance, so the same inputs always give the same
// matrices.
type System struct {
	grid       Grid
	form       EquationForm
	equations  []Equation
	consts     map[ConstKey]float64
	seeds      map[Unknown]float64
	constraint *Constraint
	numSources int

	pixels    []int // beam column -> pixel
	pixelCol  map[int]int
	sources   []int // flux column -> source
	sourceCol map[int]int
}

func newSystem(grid Grid, form EquationForm, eqs []Equation, consts map[ConstKey]float64,
	seeds map[Unknown]float64, c *Constraint, numSources int) *System {
	s := &System{
		grid:       grid,
		form:       form,
		equations:  eqs,
		consts:     consts,
		seeds:      seeds,
		constraint: c,
		numSources: numSources,
		pixelCol:   make(map[int]int),
		sourceCol:  make(map[int]int),
	}
	for _, eq := range eqs {
		for _, t := range eq.Terms {
			if _, ok := s.pixelCol[t.Pixel]; !ok {
				s.pixelCol[t.Pixel] = len(s.pixels)
				s.pixels = append(s.pixels, t.Pixel)
			}
		}
		if form.Joint() {
			if _, ok := s.sourceCol[eq.Source]; !ok {
				s.sourceCol[eq.Source] = len(s.sources)
				s.sources = append(s.sources, eq.Source)
			}
		}
	}
	if c != nil {
		if _, ok := s.pixelCol[c.Pixel]; !ok {
			s.pixelCol[c.Pixel] = len(s.pixels)
			s.pixels = append(s.pixels, c.Pixel)
		}
	}
	return s
}

// Grid returns the beam grid the system was built on.
func (s *System) Grid() Grid { return s.grid }

// Form returns the equation form.
func (s *System) Form() EquationForm { return s.form }

// NumEquations returns the number of sample equations, excluding the constraint.
func (s *System) NumEquations() int { return len(s.equations) }

// NumSources returns one past the highest source id seen.
func (s *System) NumSources() int { return s.numSources }

// Equations returns a copy of the sample equations in insertion order.
func (s *System) Equations() []Equation {
	out := make([]Equation, len(s.equations))
	copy(out, s.equations)
	return out
}

// Constant returns the weight registered under key.
func (s *System) Constant(key ConstKey) (float64, bool) {
	v, ok := s.consts[key]
	return v, ok
}

// NumConstants returns the size of the deduplicated constant table.
func (s *System) NumConstants() int { return len(s.consts) }

// Constraint returns the scale constraint, if one was added.
func (s *System) Constraint() (Constraint, bool) {
	if s.constraint == nil {
		return Constraint{}, false
	}
	return *s.constraint, true
}

// Pixels returns the beam pixels present in the system in column order.
func (s *System) Pixels() []int {
	out := make([]int, len(s.pixels))
	copy(out, s.pixels)
	return out
}

// HasPixel reports whether pixel appears in any equation.
func (s *System) HasPixel(pixel int) bool {
	_, ok := s.pixelCol[pixel]
	return ok
}

// Sources returns the flux unknowns' source ids in column order (joint mode).
func (s *System) Sources() []int {
	out := make([]int, len(s.sources))
	copy(out, s.sources)
	return out
}

// Unknowns lists every unknown: beam pixels first, then fluxes.
func (s *System) Unknowns() []Unknown {
	out := make([]Unknown, 0, len(s.pixels)+len(s.sources))
	for _, p := range s.pixels {
		out = append(out, BeamPixel(p))
	}
	for _, src := range s.sources {
		out = append(out, SourceFlux(src))
	}
	return out
}

// Seed returns the initial guess for u; unknowns without a seed start at zero.
func (s *System) Seed(u Unknown) float64 {
	return s.seeds[u]
}

// row is one sparse equation row. Repeated columns are accumulated.
type row struct {
	cols   []int
	vals   []float64
	target float64
}

// beamRows returns the rows of the beam sub-problem. In joint mode each
// coefficient is scaled by the source flux in flux; flux is ignored otherwise.
func (s *System) beamRows(flux map[int]float64) []row {
	rows := make([]row, 0, len(s.equations)+1)
	for _, eq := range s.equations {
		r := row{cols: make([]int, 0, len(eq.Terms)), vals: make([]float64, 0, len(eq.Terms)), target: eq.Target}
		for _, t := range eq.Terms {
			v := s.consts[t.Key]
			if t.Flux {
				v *= flux[t.Key.Source]
			}
			r.cols = append(r.cols, s.pixelCol[t.Pixel])
			r.vals = append(r.vals, v)
		}
		rows = append(rows, r)
	}
	if c := s.constraint; c != nil {
		rows = append(rows, row{
			cols:   []int{s.pixelCol[c.Pixel]},
			vals:   []float64{c.Multiply},
			target: c.Multiply,
		})
	}
	return rows
}

// fluxRows returns the rows of the flux sub-problem with the beam fixed.
func (s *System) fluxRows(beam map[int]float64) []row {
	rows := make([]row, 0, len(s.equations))
	for _, eq := range s.equations {
		var v float64
		for _, t := range eq.Terms {
			v += s.consts[t.Key] * beam[t.Pixel]
		}
		rows = append(rows, row{
			cols:   []int{s.sourceCol[eq.Source]},
			vals:   []float64{v},
			target: eq.Target,
		})
	}
	return rows
}

// jointRows linearises the joint system about (beam, flux). Columns are beam
// corrections followed by flux corrections; targets are the current residuals.
func (s *System) jointRows(beam, flux map[int]float64) []row {
	npix := len(s.pixels)
	rows := make([]row, 0, len(s.equations)+1)
	for _, eq := range s.equations {
		f := flux[eq.Source]
		r := row{cols: make([]int, 0, len(eq.Terms)+1), vals: make([]float64, 0, len(eq.Terms)+1)}
		var model float64
		for _, t := range eq.Terms {
			w := s.consts[t.Key]
			model += w * beam[t.Pixel]
			r.cols = append(r.cols, s.pixelCol[t.Pixel])
			r.vals = append(r.vals, w*f)
		}
		r.cols = append(r.cols, npix+s.sourceCol[eq.Source])
		r.vals = append(r.vals, model)
		r.target = eq.Target - f*model
		rows = append(rows, r)
	}
	if c := s.constraint; c != nil {
		rows = append(rows, row{
			cols:   []int{s.pixelCol[c.Pixel]},
			vals:   []float64{c.Multiply},
			target: c.Multiply * (1 - beam[c.Pixel]),
		})
	}
	return rows
}

// normal accumulates AᵗA and Aᵗb for rows over ncols columns.
func normal(rows []row, ncols int) (*mat.SymDense, *mat.VecDense) {
	ata := mat.NewSymDense(ncols, nil)
	atb := mat.NewVecDense(ncols, nil)
	for _, r := range rows {
		// Fold repeated columns first so each pair is counted once.
		cols, vals := foldRow(r)
		for i, ci := range cols {
			atb.SetVec(ci, atb.AtVec(ci)+vals[i]*r.target)
			for j := i; j < len(cols); j++ {
				cj := cols[j]
				v := vals[i] * vals[j]
				if ci == cj {
					ata.SetSym(ci, ci, ata.At(ci, ci)+v)
				} else {
					ata.SetSym(ci, cj, ata.At(ci, cj)+v)
				}
			}
		}
	}
	return ata, atb
}

func foldRow(r row) ([]int, []float64) {
	cols := make([]int, 0, len(r.cols))
	vals := make([]float64, 0, len(r.vals))
	for i, c := range r.cols {
		found := false
		for k, existing := range cols {
			if existing == c {
				vals[k] += r.vals[i]
				found = true
				break
			}
		}
		if !found {
			cols = append(cols, c)
			vals = append(vals, r.vals[i])
		}
	}
	return cols, vals
}

// dense expands rows into a dense design matrix.
func dense(rows []row, ncols int) *mat.Dense {
	a := mat.NewDense(len(rows), ncols, nil)
	for i, r := range rows {
		for k, c := range r.cols {
			a.Set(i, c, a.At(i, c)+r.vals[k])
		}
	}
	return a
}

// DesignMatrix returns the beam design matrix A (rows are equations plus the
// constraint, columns follow Pixels). In joint mode the coefficients use the
// fluxes in sol.
func (s *System) DesignMatrix(sol Solution) *mat.Dense {
	return dense(s.beamRows(s.fluxValues(sol)), len(s.pixels))
}

func (s *System) fluxValues(sol Solution) map[int]float64 {
	if !s.form.Joint() {
		return nil
	}
	flux := make(map[int]float64, len(s.sources))
	for _, src := range s.sources {
		v, ok := sol[SourceFlux(src)]
		if !ok {
			v = s.seeds[SourceFlux(src)]
		}
		flux[src] = v
	}
	return flux
}

// Residual returns the RMS of (model - target) over the sample equations for sol.
func (s *System) Residual(sol Solution) float64 {
	var sum float64
	for _, eq := range s.equations {
		var model float64
		for _, t := range eq.Terms {
			v := s.consts[t.Key] * sol[BeamPixel(t.Pixel)]
			if t.Flux {
				v *= sol[SourceFlux(t.Key.Source)]
			}
			model += v
		}
		d := model - eq.Target
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(s.equations)))
}
