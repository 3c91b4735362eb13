package beam

import "gonum.org/v1/gonum/mat"

// Evaluate scatters sol onto a fresh Size x Size beam and a flux vector of
// length nsrcs. Unknowns missing from sol stay zero; ids outside the grid or the
// flux vector are ignored.
func Evaluate(sol Solution, grid Grid, nsrcs int) (*mat.Dense, []float64) {
	beam := mat.NewDense(grid.Size, grid.Size, nil)
	flux := make([]float64, nsrcs)
	for u, v := range sol {
		switch u.Kind {
		case KindBeam:
			if grid.Contains(u.Index) {
				r, c := grid.Unravel(u.Index)
				beam.Set(r, c, v)
			}
		case KindFlux:
			if u.Index >= 0 && u.Index < nsrcs {
				flux[u.Index] = v
			}
		}
	}
	return beam, flux
}

// Flatten returns the beam in flattened pixel order.
func Flatten(beam mat.Matrix) []float64 {
	r, c := beam.Dims()
	out := make([]float64, 0, r*c)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			out = append(out, beam.At(i, j))
		}
	}
	return out
}
