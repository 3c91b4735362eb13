// Package beam solves for a telescope primary beam from calibrator transits.
//
// A Grid maps horizontal directions onto a square pixel grid with bilinear
// weights. A Builder turns catalog samples into equations tying those pixel
// gains (and, in joint mode, per-source fluxes) to observed fluxes, and freezes
// them into a System. Solve, RemoveDegenerateModes and Evaluate then turn the
// System into a cleaned beam grid.
package beam

import (
	"fmt"
	"math"

	"beam-solver/pkg/geometry"
)

// DefaultGridSize is the side length used when no grid size is configured.
const DefaultGridSize = 60

// Grid is a square beam grid of Size x Size pixels. Pixel (x, y) is flattened
// to x*Size + y, so rows follow the east (x) axis and columns the north (y) axis.
type Grid struct {
	Size int
}

// NewGrid returns a grid with the given side length.
func NewGrid(size int) (Grid, error) {
	if size < 2 {
		return Grid{}, fmt.Errorf("grid size must be at least 2, got %d", size)
	}
	return Grid{Size: size}, nil
}

// Len returns the number of pixels in the grid.
func (g Grid) Len() int {
	return g.Size * g.Size
}

// Pixel flattens a grid coordinate.
func (g Grid) Pixel(row, col int) int {
	return row*g.Size + col
}

// Unravel is the inverse of Pixel.
func (g Grid) Unravel(pixel int) (row, col int) {
	return pixel / g.Size, pixel % g.Size
}

// Contains reports whether pixel is a valid flattened index.
func (g Grid) Contains(pixel int) bool {
	return pixel >= 0 && pixel < g.Len()
}

// Center returns the flattened index of the zenith pixel.
func (g Grid) Center() int {
	c := g.Size / 2
	return g.Pixel(c, c)
}

// origin is the point corners are rotated and mirrored about. It is where the
// zenith projects to.
func (g Grid) origin() geometry.Point2D {
	half := 0.5 * float64(g.Size)
	return geometry.NewPoint2D(half, half)
}

// Transform folds another orientation of the same physical beam onto the grid.
// Rotation is in radians; Flip is +1 (none) or -1 (mirror the x axis).
type Transform struct {
	Rotation float64 `json:"rotation" toml:"rotation" yaml:"rotation"`
	Flip     int     `json:"flip" toml:"flip" yaml:"flip"`
}

// IdentityTransform leaves corners where the projection put them.
var IdentityTransform = Transform{Rotation: 0, Flip: 1}

func (t Transform) affine(center geometry.Point2D) geometry.AffineTransform {
	a := geometry.RotationAbout(t.Rotation, center)
	if t.Flip < 0 {
		a = geometry.MirrorXAbout(-1, center).Compose(a)
	}
	return a
}

// WeightedPixels are the four grid pixels enclosing a projected direction and
// their bilinear interpolation weights. Corners are ordered
// (x0,y0), (x0,y1), (x1,y0), (x1,y1).
type WeightedPixels struct {
	Corners [4]geometry.PointInt
	Pixels  [4]int
	Weights [4]float64
}

// Sum returns the total interpolation weight.
func (w WeightedPixels) Sum() float64 {
	return w.Weights[0] + w.Weights[1] + w.Weights[2] + w.Weights[3]
}

// Fractional returns the fractional grid coordinates of a horizontal direction.
// The zenith lands on (Size/2, Size/2).
func (g Grid) Fractional(azDeg, altDeg float64) (px, py float64) {
	x, y, _ := geometry.AzAltToTop(azDeg, altDeg)
	half := 0.5 * float64(g.Size)
	return x*half + half, y*half + half
}

// Project maps a direction onto the grid under transform t.
//
// The upper neighbour on each axis saturates at the last row/column instead of
// wrapping, so directions near the edge put more than one corner on the edge
// pixel. Corners are rounded and clamped into the grid after the transform.
func (g Grid) Project(azDeg, altDeg float64, t Transform) WeightedPixels {
	px, py := g.Fractional(azDeg, altDeg)

	x0, fx := floorSplit(px)
	y0, fy := floorSplit(py)
	x1 := clamp(x0+1, 0, g.Size-1)
	y1 := clamp(y0+1, 0, g.Size-1)

	raw := [4]geometry.PointInt{
		{X: x0, Y: y0},
		{X: x0, Y: y1},
		{X: x1, Y: y0},
		{X: x1, Y: y1},
	}

	var out WeightedPixels
	out.Weights = [4]float64{
		(1 - fx) * (1 - fy),
		(1 - fx) * fy,
		fx * (1 - fy),
		fx * fy,
	}

	tr := t.affine(g.origin())
	for i, c := range raw {
		p := c
		if !tr.IsIdentity() {
			p = tr.Apply(c.ToFloat()).Round()
		}
		p = p.Clamp(0, g.Size-1)
		out.Corners[i] = p
		out.Pixels[i] = g.Pixel(p.X, p.Y)
	}
	return out
}

// floorSplit returns the integer floor and the fractional remainder. NaN input
// gives index 0 and a NaN fraction.
func floorSplit(v float64) (int, float64) {
	if math.IsNaN(v) {
		return 0, math.NaN()
	}
	f := math.Floor(v)
	return int(f), v - f
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
