package catalog

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
)

// fileVersion is written to and checked against catalog files.
const fileVersion = 1

// file is the on-disk form. JSON has no NaN, so flagged samples are null.
type file struct {
	Version     int            `json:"version"`
	Nsrcs       int            `json:"nsrcs"`
	Nfits       int            `json:"nfits"`
	Names       []string       `json:"names,omitempty"`
	Data        [][][]*float64 `json:"data"`
	AzAlt       [][]Direction  `json:"azalt"`
	CatalogFlux [][]float64    `json:"catalog_flux"`
}

// Load reads and validates a catalog file.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Decode(data)
}

// Decode parses catalog JSON.
func Decode(data []byte) (*Catalog, error) {
	var f file
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, err
	}
	if f.Version > fileVersion {
		return nil, fmt.Errorf("catalog file version %d is newer than supported %d", f.Version, fileVersion)
	}

	c := &Catalog{
		Nsrcs:       f.Nsrcs,
		Nfits:       f.Nfits,
		Names:       f.Names,
		AzAlt:       f.AzAlt,
		CatalogFlux: f.CatalogFlux,
		Data:        make([][][]float64, len(f.Data)),
	}
	for p, plane := range f.Data {
		c.Data[p] = make([][]float64, len(plane))
		for s, row := range plane {
			out := make([]float64, len(row))
			for t, v := range row {
				if v == nil {
					out[t] = math.NaN()
				} else {
					out[t] = *v
				}
			}
			c.Data[p][s] = out
		}
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Encode renders the catalog as indented JSON.
func (c *Catalog) Encode() ([]byte, error) {
	f := file{
		Version:     fileVersion,
		Nsrcs:       c.Nsrcs,
		Nfits:       c.Nfits,
		Names:       c.Names,
		AzAlt:       c.AzAlt,
		CatalogFlux: c.CatalogFlux,
		Data:        make([][][]*float64, len(c.Data)),
	}
	for p, plane := range c.Data {
		f.Data[p] = make([][]*float64, len(plane))
		for s, row := range plane {
			out := make([]*float64, len(row))
			for t := range row {
				if !math.IsNaN(row[t]) {
					v := row[t]
					out[t] = &v
				}
			}
			f.Data[p][s] = out
		}
	}
	return json.MarshalIndent(f, "", "  ")
}

// Save writes the catalog to path.
func (c *Catalog) Save(path string) error {
	data, err := c.Encode()
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
