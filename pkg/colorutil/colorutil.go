// Package colorutil provides the color ramps used for beam quicklook images.
package colorutil

import (
	"image/color"
	"math"
)

// Magenta marks values that have no place on the ramp.
var Magenta = color.RGBA{R: 255, G: 0, B: 255, A: 255}

// HSVToRGB converts HSV (H 0-360, S and V 0-1) to an opaque color.
func HSVToRGB(h, s, v float64) color.RGBA {
	h = math.Mod(h, 360)
	if h < 0 {
		h += 360
	}
	c := v * s
	x := c * (1 - math.Abs(math.Mod(h/60, 2)-1))
	m := v - c

	var r, g, b float64
	switch {
	case h < 60:
		r, g, b = c, x, 0
	case h < 120:
		r, g, b = x, c, 0
	case h < 180:
		r, g, b = 0, c, x
	case h < 240:
		r, g, b = 0, x, c
	case h < 300:
		r, g, b = x, 0, c
	default:
		r, g, b = c, 0, x
	}
	return color.RGBA{
		R: uint8(math.Round((r + m) * 255)),
		G: uint8(math.Round((g + m) * 255)),
		B: uint8(math.Round((b + m) * 255)),
		A: 255,
	}
}

// Heat maps t in [0, 1] from blue (0) through green to red (1).
// NaN maps to Magenta; values outside the range saturate.
func Heat(t float64) color.RGBA {
	if math.IsNaN(t) {
		return Magenta
	}
	t = math.Max(0, math.Min(1, t))
	return HSVToRGB(240*(1-t), 1, 1)
}
