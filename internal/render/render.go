// Package render draws beam grids as figures and raster images.
package render

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"math"

	"beam-solver/pkg/colorutil"

	"golang.org/x/image/tiff"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// beamGrid adapts a beam matrix to plotter.GridXYZ. Beam rows run along x
// (east) and columns along y (north).
type beamGrid struct {
	m mat.Matrix
}

func (g beamGrid) Dims() (c, r int) {
	rows, cols := g.m.Dims()
	return rows, cols
}

func (g beamGrid) Z(c, r int) float64 { return g.m.At(c, r) }
func (g beamGrid) X(c int) float64    { return float64(c) }
func (g beamGrid) Y(r int) float64    { return float64(r) }

// HeatMap saves a heat-map figure of beam to path. The format follows the
// extension (.png, .svg, .pdf, ...).
func HeatMap(beam mat.Matrix, title, path string, size vg.Length) error {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "x pixel (east)"
	p.Y.Label.Text = "y pixel (north)"

	h := plotter.NewHeatMap(beamGrid{m: beam}, palette.Heat(64, 1))
	if h.Min == h.Max {
		h.Max = h.Min + 1
	}
	p.Add(h)

	if err := p.Save(size, size, path); err != nil {
		return fmt.Errorf("save heat map: %w", err)
	}
	return nil
}

// Range returns the smallest and largest finite values of beam.
func Range(beam mat.Matrix) (lo, hi float64) {
	lo, hi = math.Inf(1), math.Inf(-1)
	r, c := beam.Dims()
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			v := beam.At(i, j)
			if math.IsNaN(v) || math.IsInf(v, 0) {
				continue
			}
			lo = math.Min(lo, v)
			hi = math.Max(hi, v)
		}
	}
	if lo > hi {
		return 0, 0
	}
	return lo, hi
}

// normalize maps v into [0, 1] over [lo, hi]; a flat range maps to 0.
func normalize(v, lo, hi float64) float64 {
	if hi <= lo {
		return 0
	}
	return (v - lo) / (hi - lo)
}

// Gray16 renders beam with north up, scaled linearly over its range.
func Gray16(beam mat.Matrix) *image.Gray16 {
	rows, cols := beam.Dims()
	lo, hi := Range(beam)
	img := image.NewGray16(image.Rect(0, 0, rows, cols))
	for x := 0; x < rows; x++ {
		for y := 0; y < cols; y++ {
			t := math.Max(0, math.Min(1, normalize(beam.At(x, y), lo, hi)))
			if math.IsNaN(t) {
				t = 0
			}
			img.SetGray16(x, cols-1-y, color.Gray16{Y: uint16(math.Round(t * 65535))})
		}
	}
	return img
}

// WriteTIFF encodes beam as a deflate-compressed 16-bit grayscale TIFF.
func WriteTIFF(w io.Writer, beam mat.Matrix) error {
	return tiff.Encode(w, Gray16(beam), &tiff.Options{Compression: tiff.Deflate})
}

// Quicklook renders beam in false color, each pixel scale x scale, north up.
func Quicklook(beam mat.Matrix, scale int) *image.RGBA {
	if scale < 1 {
		scale = 1
	}
	rows, cols := beam.Dims()
	lo, hi := Range(beam)
	img := image.NewRGBA(image.Rect(0, 0, rows*scale, cols*scale))
	for x := 0; x < rows; x++ {
		for y := 0; y < cols; y++ {
			c := colorutil.Heat(normalize(beam.At(x, y), lo, hi))
			top := (cols - 1 - y) * scale
			for dx := 0; dx < scale; dx++ {
				for dy := 0; dy < scale; dy++ {
					img.SetRGBA(x*scale+dx, top+dy, c)
				}
			}
		}
	}
	return img
}

// WriteQuicklook encodes Quicklook(beam, scale) as PNG.
func WriteQuicklook(w io.Writer, beam mat.Matrix, scale int) error {
	return png.Encode(w, Quicklook(beam, scale))
}
