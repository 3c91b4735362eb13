package geometry

import "math"

// DegToRad converts degrees to radians.
func DegToRad(deg float64) float64 {
	return deg * math.Pi / 180.0
}

// RadToDeg converts radians to degrees.
func RadToDeg(rad float64) float64 {
	return rad * 180.0 / math.Pi
}

// AzAltToTop converts horizontal coordinates in degrees to topocentric
// direction cosines. Azimuth is measured from north towards east, so x points
// east, y north and z to the zenith.
func AzAltToTop(azDeg, altDeg float64) (x, y, z float64) {
	az := DegToRad(azDeg)
	alt := DegToRad(altDeg)
	cosAlt := math.Cos(alt)
	return math.Sin(az) * cosAlt, math.Cos(az) * cosAlt, math.Sin(alt)
}

// TopToAzAlt is the inverse of AzAltToTop for a unit vector above or on the
// horizon. Azimuth is returned in [0, 360).
func TopToAzAlt(x, y, z float64) (azDeg, altDeg float64) {
	az := math.Atan2(x, y)
	if az < 0 {
		az += 2 * math.Pi
	}
	alt := math.Asin(math.Max(-1, math.Min(1, z)))
	return RadToDeg(az), RadToDeg(alt)
}
