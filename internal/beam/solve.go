package beam

import (
	"errors"
	"fmt"
	"log"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// ErrFactorization is returned when the normal matrix cannot be decomposed.
var ErrFactorization = errors.New("SVD factorization failed")

// Options controls the solver driver.
type Options struct {
	// MaxIter bounds the alternating iterations in joint mode.
	MaxIter int
	// ConvCrit is the relative solution change below which joint mode stops.
	ConvCrit float64
	// RCond drops singular values of AᵗA below RCond times the largest.
	// Those are the squares of A's singular values, so the cut on A itself
	// sits at sqrt(RCond): the default keeps modes down to about 1e-5 of
	// the strongest.
	RCond float64
	// Verbose logs every iteration.
	Verbose bool
}

// DefaultOptions returns the default solver options.
func DefaultOptions() Options {
	return Options{
		MaxIter:  50,
		ConvCrit: 1e-11,
		RCond:    1e-10,
	}
}

// WithMaxIter returns a copy of o with MaxIter set.
func (o Options) WithMaxIter(n int) Options {
	o.MaxIter = n
	return o
}

// WithConvCrit returns a copy of o with ConvCrit set.
func (o Options) WithConvCrit(c float64) Options {
	o.ConvCrit = c
	return o
}

// Validate checks that the options can drive a solve.
func (o Options) Validate() error {
	if o.MaxIter < 1 {
		return fmt.Errorf("max iterations must be positive, got %d", o.MaxIter)
	}
	if !(o.ConvCrit > 0) {
		return fmt.Errorf("convergence criterion must be positive, got %g", o.ConvCrit)
	}
	if o.RCond < 0 || math.IsNaN(o.RCond) {
		return fmt.Errorf("rcond must be non-negative, got %g", o.RCond)
	}
	return nil
}

// Result is the outcome of Solve.
type Result struct {
	Solution Solution

	// Converged is false when joint mode hit MaxIter before the relative
	// change dropped below ConvCrit. Linear solves always converge.
	Converged  bool
	Iterations int
	Metric     float64 // last relative change (0 for linear mode)
	ConvCrit   float64

	// Residual is the RMS equation residual of Solution.
	Residual float64
}

// Solve solves sys: a single least-squares pass for the beam-only form,
// alternating least squares with a joint correction for the joint form.
func Solve(sys *System, opts Options) (*Result, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	var (
		res *Result
		err error
	)
	if sys.form.Joint() {
		res, err = solveAlternating(sys, opts)
	} else {
		res, err = solveLinear(sys, opts)
	}
	if err != nil {
		return nil, err
	}
	res.ConvCrit = opts.ConvCrit
	res.Residual = sys.Residual(res.Solution)
	return res, nil
}

func solveLinear(sys *System, opts Options) (*Result, error) {
	x, err := leastSquares(sys.beamRows(nil), len(sys.pixels), opts.RCond)
	if err != nil {
		return nil, err
	}
	sol := make(Solution, len(x))
	for col, px := range sys.pixels {
		sol[BeamPixel(px)] = x[col]
	}
	if opts.Verbose {
		log.Printf("[BeamSolve] linear: %d equations, %d pixels", sys.NumEquations(), len(sys.pixels))
	}
	return &Result{Solution: sol, Converged: true, Iterations: 1}, nil
}

// solveAlternating fixes the fluxes and solves for the beam, then fixes the
// beam and solves for the fluxes, then corrects both with one linearised
// step, until the joint vector stops moving.
func solveAlternating(sys *System, opts Options) (*Result, error) {
	npix, nsrc := len(sys.pixels), len(sys.sources)

	beam := make(map[int]float64, npix)
	for _, px := range sys.pixels {
		beam[px] = sys.seeds[BeamPixel(px)]
	}
	flux := make(map[int]float64, nsrc)
	for _, src := range sys.sources {
		flux[src] = sys.seeds[SourceFlux(src)]
	}

	prev := sys.pack(beam, flux)
	cur := make([]float64, len(prev))
	diff := make([]float64, len(prev))

	res := &Result{Metric: math.Inf(1)}
	for iter := 1; iter <= opts.MaxIter; iter++ {
		x, err := leastSquares(sys.beamRows(flux), npix, opts.RCond)
		if err != nil {
			return nil, fmt.Errorf("iteration %d beam step: %w", iter, err)
		}
		for col, px := range sys.pixels {
			beam[px] = x[col]
		}

		y, err := leastSquares(sys.fluxRows(beam), nsrc, opts.RCond)
		if err != nil {
			return nil, fmt.Errorf("iteration %d flux step: %w", iter, err)
		}
		for col, src := range sys.sources {
			flux[src] = y[col]
		}

		// Gauss-Newton correction of beam and fluxes together.
		d, err := leastSquares(sys.jointRows(beam, flux), npix+nsrc, opts.RCond)
		if err != nil {
			return nil, fmt.Errorf("iteration %d joint step: %w", iter, err)
		}
		for col, px := range sys.pixels {
			beam[px] += d[col]
		}
		for col, src := range sys.sources {
			flux[src] += d[npix+col]
		}

		cur = sys.packInto(cur, beam, flux)
		floats.SubTo(diff, cur, prev)
		res.Metric = relativeChange(diff, cur)
		res.Iterations = iter
		if opts.Verbose {
			log.Printf("[BeamSolve] iter %d: change=%.3e (crit %.1e)", iter, res.Metric, opts.ConvCrit)
		}
		if res.Metric < opts.ConvCrit {
			res.Converged = true
			break
		}
		copy(prev, cur)
	}

	if !res.Converged {
		log.Printf("[BeamSolve] not converged after %d iterations: change=%.3e, required %.1e",
			res.Iterations, res.Metric, opts.ConvCrit)
	}

	sol := make(Solution, npix+nsrc)
	for px, v := range beam {
		sol[BeamPixel(px)] = v
	}
	for src, v := range flux {
		sol[SourceFlux(src)] = v
	}
	res.Solution = sol
	return res, nil
}

func relativeChange(diff, cur []float64) float64 {
	d := floats.Norm(diff, 2)
	n := floats.Norm(cur, 2)
	if n == 0 {
		return d
	}
	return d / n
}

func (s *System) pack(beam, flux map[int]float64) []float64 {
	return s.packInto(make([]float64, len(s.pixels)+len(s.sources)), beam, flux)
}

func (s *System) packInto(dst []float64, beam, flux map[int]float64) []float64 {
	for col, px := range s.pixels {
		dst[col] = beam[px]
	}
	off := len(s.pixels)
	for col, src := range s.sources {
		dst[off+col] = flux[src]
	}
	return dst
}

// leastSquares returns the minimum-norm least-squares solution of the sparse
// rows over ncols columns, via the truncated SVD of the normal matrix.
// Columns the rows do not constrain come back as zero.
func leastSquares(rows []row, ncols int, rcond float64) ([]float64, error) {
	out := make([]float64, ncols)
	if ncols == 0 {
		return out, nil
	}
	ata, atb := normal(rows, ncols)

	f, err := factorize(ata)
	if err != nil {
		return nil, err
	}
	rank := f.rank(rcond)
	// x = sum over kept modes of (uᵢ·b / sᵢ) vᵢ
	for i := 0; i < rank; i++ {
		var ub float64
		for r := 0; r < ncols; r++ {
			ub += f.u.At(r, i) * atb.AtVec(r)
		}
		scale := ub / f.s[i]
		for r := range out {
			out[r] += scale * f.v.At(r, i)
		}
	}
	return out, nil
}

// factorization is the SVD of a square normal matrix, singular values descending.
type factorization struct {
	s    []float64
	u, v mat.Dense
}

func factorize(a mat.Matrix) (*factorization, error) {
	var svd mat.SVD
	if ok := svd.Factorize(a, mat.SVDThin); !ok {
		return nil, ErrFactorization
	}
	f := &factorization{s: svd.Values(nil)}
	svd.UTo(&f.u)
	svd.VTo(&f.v)
	return f, nil
}

// rank counts singular values above rcond times the largest.
func (f *factorization) rank(rcond float64) int {
	if len(f.s) == 0 || f.s[0] <= 0 {
		return 0
	}
	tol := rcond * f.s[0]
	n := 0
	for _, v := range f.s {
		if v > tol {
			n++
		}
	}
	return n
}
