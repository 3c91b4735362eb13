// Package catalog holds calibrator observations: per-polarization observed
// fluxes, horizontal positions per time sample, and catalog fluxes.
package catalog

import (
	"errors"
	"fmt"
	"math"
)

// Direction is a horizontal position in degrees.
type Direction struct {
	Az  float64 `json:"az"`
	Alt float64 `json:"alt"`
}

// Catalog is the in-memory observation set read by the beam builder.
// Data is indexed [polarization][source][time]; NaN marks a flagged sample.
type Catalog struct {
	Nsrcs int
	Nfits int

	Names       []string
	Data        [][][]float64
	AzAlt       [][]Direction // [source][time]
	CatalogFlux [][]float64   // [polarization][source]
}

// ErrShape is returned by Validate for inconsistent array sizes.
var ErrShape = errors.New("catalog shape mismatch")

// New allocates a catalog with every sample flagged.
func New(npol, nsrcs, nfits int) *Catalog {
	c := &Catalog{
		Nsrcs:       nsrcs,
		Nfits:       nfits,
		Names:       make([]string, nsrcs),
		Data:        make([][][]float64, npol),
		AzAlt:       make([][]Direction, nsrcs),
		CatalogFlux: make([][]float64, npol),
	}
	for p := range c.Data {
		c.Data[p] = make([][]float64, nsrcs)
		c.CatalogFlux[p] = make([]float64, nsrcs)
		for s := range c.Data[p] {
			row := make([]float64, nfits)
			for t := range row {
				row[t] = math.NaN()
			}
			c.Data[p][s] = row
		}
	}
	for s := range c.AzAlt {
		c.AzAlt[s] = make([]Direction, nfits)
		c.Names[s] = fmt.Sprintf("src%d", s)
	}
	return c
}

// NumPolarizations returns the number of data planes.
func (c *Catalog) NumPolarizations() int { return len(c.Data) }

// NumSources returns Nsrcs.
func (c *Catalog) NumSources() int { return c.Nsrcs }

// NumTimes returns Nfits.
func (c *Catalog) NumTimes() int { return c.Nfits }

// Observed returns the measured flux of src at time t.
func (c *Catalog) Observed(pol, src, t int) float64 {
	return c.Data[pol][src][t]
}

// Direction returns the azimuth and altitude of src at time t.
func (c *Catalog) Direction(src, t int) (azDeg, altDeg float64) {
	d := c.AzAlt[src][t]
	return d.Az, d.Alt
}

// Flux returns a copy of the catalog fluxes for pol.
func (c *Catalog) Flux(pol int) []float64 {
	out := make([]float64, len(c.CatalogFlux[pol]))
	copy(out, c.CatalogFlux[pol])
	return out
}

// Flag marks a sample as excluded in every polarization.
func (c *Catalog) Flag(src, t int) {
	for p := range c.Data {
		c.Data[p][src][t] = math.NaN()
	}
}

// Flagged counts excluded samples in pol.
func (c *Catalog) Flagged(pol int) int {
	n := 0
	for _, row := range c.Data[pol] {
		for _, v := range row {
			if math.IsNaN(v) {
				n++
			}
		}
	}
	return n
}

// Validate checks that every array matches Nsrcs and Nfits.
func (c *Catalog) Validate() error {
	if c.Nsrcs <= 0 || c.Nfits <= 0 {
		return fmt.Errorf("%w: %d sources, %d times", ErrShape, c.Nsrcs, c.Nfits)
	}
	if len(c.Data) == 0 {
		return fmt.Errorf("%w: no polarizations", ErrShape)
	}
	if len(c.CatalogFlux) != len(c.Data) {
		return fmt.Errorf("%w: %d catalog flux planes for %d polarizations", ErrShape, len(c.CatalogFlux), len(c.Data))
	}
	for p, plane := range c.Data {
		if len(plane) != c.Nsrcs {
			return fmt.Errorf("%w: polarization %d has %d sources", ErrShape, p, len(plane))
		}
		for s, row := range plane {
			if len(row) != c.Nfits {
				return fmt.Errorf("%w: polarization %d source %d has %d times", ErrShape, p, s, len(row))
			}
		}
		if len(c.CatalogFlux[p]) != c.Nsrcs {
			return fmt.Errorf("%w: polarization %d has %d catalog fluxes", ErrShape, p, len(c.CatalogFlux[p]))
		}
	}
	if len(c.AzAlt) != c.Nsrcs {
		return fmt.Errorf("%w: %d position tracks", ErrShape, len(c.AzAlt))
	}
	for s, track := range c.AzAlt {
		if len(track) != c.Nfits {
			return fmt.Errorf("%w: source %d track has %d times", ErrShape, s, len(track))
		}
	}
	if c.Names != nil && len(c.Names) != c.Nsrcs {
		return fmt.Errorf("%w: %d names", ErrShape, len(c.Names))
	}
	return nil
}
