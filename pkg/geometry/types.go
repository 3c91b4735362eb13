// Package geometry provides the planar and sky geometry shared by the beam grid code.
package geometry

import (
	"math"
)

// Point2D represents a 2D point with floating-point coordinates.
type Point2D struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// NewPoint2D creates a new Point2D.
func NewPoint2D(x, y float64) Point2D {
	return Point2D{X: x, Y: y}
}

// Round returns the nearest integer point. NaN coordinates round to zero.
func (p Point2D) Round() PointInt {
	return PointInt{X: roundInt(p.X), Y: roundInt(p.Y)}
}

func roundInt(v float64) int {
	if math.IsNaN(v) {
		return 0
	}
	return int(math.Round(v))
}

// PointInt represents a 2D point with integer coordinates.
type PointInt struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// ToFloat converts to Point2D.
func (p PointInt) ToFloat() Point2D {
	return Point2D{X: float64(p.X), Y: float64(p.Y)}
}

// Clamp limits both coordinates to [lo, hi].
func (p PointInt) Clamp(lo, hi int) PointInt {
	return PointInt{X: clampInt(p.X, lo, hi), Y: clampInt(p.Y, lo, hi)}
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// AffineTransform represents a 2x3 affine transformation matrix.
// [a b tx]
// [c d ty]
type AffineTransform struct {
	A, B, TX float64
	C, D, TY float64
}

// Identity returns the identity transform.
func Identity() AffineTransform {
	return AffineTransform{A: 1, D: 1}
}

// Translation returns a translation transform.
func Translation(tx, ty float64) AffineTransform {
	return AffineTransform{A: 1, D: 1, TX: tx, TY: ty}
}

// Rotation returns a rotation transform around the origin.
func Rotation(radians float64) AffineTransform {
	cos := math.Cos(radians)
	sin := math.Sin(radians)
	return AffineTransform{A: cos, B: -sin, C: sin, D: cos}
}

// Scale returns a scaling transform.
func Scale(sx, sy float64) AffineTransform {
	return AffineTransform{A: sx, D: sy}
}

// About conjugates t so that it acts around center instead of the origin.
func (t AffineTransform) About(center Point2D) AffineTransform {
	return Translation(center.X, center.Y).Compose(t).Compose(Translation(-center.X, -center.Y))
}

// RotationAbout returns a rotation by radians around center.
func RotationAbout(radians float64, center Point2D) AffineTransform {
	return Rotation(radians).About(center)
}

// MirrorXAbout multiplies the x offset from center by sign (+1 keeps, -1 mirrors).
func MirrorXAbout(sign float64, center Point2D) AffineTransform {
	return Scale(sign, 1).About(center)
}

// Apply applies the transform to a point.
func (t AffineTransform) Apply(p Point2D) Point2D {
	return Point2D{
		X: t.A*p.X + t.B*p.Y + t.TX,
		Y: t.C*p.X + t.D*p.Y + t.TY,
	}
}

// Compose returns this transform composed with another (this * other).
// The result applies other first.
func (t AffineTransform) Compose(other AffineTransform) AffineTransform {
	return AffineTransform{
		A:  t.A*other.A + t.B*other.C,
		B:  t.A*other.B + t.B*other.D,
		TX: t.A*other.TX + t.B*other.TY + t.TX,
		C:  t.C*other.A + t.D*other.C,
		D:  t.C*other.B + t.D*other.D,
		TY: t.C*other.TX + t.D*other.TY + t.TY,
	}
}

// IsIdentity reports whether t leaves every point unchanged.
func (t AffineTransform) IsIdentity() bool {
	return t == Identity()
}
