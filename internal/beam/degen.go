package beam

import (
	"fmt"
	"log"

	"gonum.org/v1/gonum/mat"
)

// DefaultThreshold is the variance-explained percentage below which an
// eigenmode of AᵗA counts as unconstrained.
const DefaultThreshold = 5e-4

// ModeReport describes the eigenmodes of the beam normal matrix.
type ModeReport struct {
	// Singular are the singular values of AᵗA, descending.
	Singular []float64
	// VarianceExplained is 100*Sᵢ/ΣS per mode.
	VarianceExplained []float64
	// Cutoff is the first degenerate mode, -1 when every mode is above threshold.
	Cutoff    int
	Threshold float64
	// Modes holds the degenerate eigenvectors reshaped onto the grid. Pixels
	// absent from the system are zero.
	Modes []*mat.Dense
	// Applied is set when at least one mode was projected out of a beam.
	Applied bool
}

// Degenerate returns the number of modes at or beyond the cutoff.
func (r *ModeReport) Degenerate() int {
	return len(r.Modes)
}

// DegenerateModes decomposes AᵗA of the beam sub-problem. In joint mode the
// design matrix is evaluated at the fluxes in sol.
func DegenerateModes(sys *System, sol Solution, threshold float64) (*ModeReport, error) {
	npix := len(sys.pixels)
	ata, _ := normal(sys.beamRows(sys.fluxValues(sol)), npix)

	f, err := factorize(ata)
	if err != nil {
		return nil, err
	}

	report := &ModeReport{
		Singular:          f.s,
		VarianceExplained: make([]float64, len(f.s)),
		Cutoff:            -1,
		Threshold:         threshold,
	}
	var total float64
	for _, v := range f.s {
		total += v
	}
	for i, v := range f.s {
		if total > 0 {
			report.VarianceExplained[i] = 100 * v / total
		}
		if report.Cutoff < 0 && report.VarianceExplained[i] < threshold {
			report.Cutoff = i
		}
	}
	if report.Cutoff < 0 {
		return report, nil
	}

	g := sys.grid
	for i := report.Cutoff; i < len(f.s); i++ {
		mode := mat.NewDense(g.Size, g.Size, nil)
		for col, px := range sys.pixels {
			r, c := g.Unravel(px)
			mode.Set(r, c, f.u.At(col, i))
		}
		report.Modes = append(report.Modes, mode)
	}
	return report, nil
}

// RemoveDegenerateModes projects every degenerate eigenmode out of a copy of
// beam. When no mode falls below threshold the copy is returned unchanged and
// the report has Applied == false.
func RemoveDegenerateModes(beam mat.Matrix, sys *System, sol Solution, threshold float64) (*mat.Dense, *ModeReport, error) {
	g := sys.grid
	if r, c := beam.Dims(); r != g.Size || c != g.Size {
		return nil, nil, fmt.Errorf("beam is %dx%d, grid is %dx%d", r, c, g.Size, g.Size)
	}
	report, err := DegenerateModes(sys, sol, threshold)
	if err != nil {
		return nil, nil, err
	}

	out := mat.DenseCopyOf(beam)
	if report.Cutoff < 0 {
		log.Printf("[BeamSolve] no eigenmode below %.1e%% variance, nothing removed", threshold)
		return out, report, nil
	}

	log.Printf("[BeamSolve] removing eigenmodes %d..%d of %d", report.Cutoff, len(report.Singular)-1, len(report.Singular))
	var scaled mat.Dense
	for _, mode := range report.Modes {
		proj := mat.Sum(elementProduct(out, mode))
		scaled.Scale(proj, mode)
		out.Sub(out, &scaled)
	}
	report.Applied = true
	return out, report, nil
}

// Projection returns Σ beam * mode.
func Projection(beam, mode mat.Matrix) float64 {
	return mat.Sum(elementProduct(beam, mode))
}

func elementProduct(a, b mat.Matrix) *mat.Dense {
	var p mat.Dense
	p.MulElem(a, b)
	return &p
}
