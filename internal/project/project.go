// Package project provides solve run files (.beamrun) and their persistence.
package project

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	"beam-solver/internal/beam"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/mat"
)

// Extension is the file extension of run files.
const Extension = ".beamrun"

// fileVersion is bumped when the layout changes incompatibly.
const fileVersion = 1

// File records one beam solve: what went in, how the solver fared and the
// resulting beam and fluxes.
type File struct {
	Version  int       `json:"version"`
	RunID    string    `json:"run_id"`
	Name     string    `json:"name"`
	Created  time.Time `json:"created"`
	Modified time.Time `json:"modified"`

	Mode     string `json:"mode"`
	GridSize int    `json:"grid_size"`

	// Catalog path (relative to run file)
	CatalogPath string `json:"catalog,omitempty"`

	Passes     []PassRecord `json:"passes,omitempty"`
	Solve      SolveRecord  `json:"solve"`
	Degeneracy *ModeRecord  `json:"degeneracy,omitempty"`

	Beam [][]float64 `json:"beam"`
	Flux []float64   `json:"flux,omitempty"`
}

// PassRecord is the orientation layout of one polarization pass.
type PassRecord struct {
	Polarization int       `json:"polarization"`
	Rotations    []float64 `json:"rotations"`
	Flips        []int     `json:"flips"`
	Samples      int       `json:"samples"`
}

// SolveRecord holds the solver diagnostics.
type SolveRecord struct {
	Equations   int     `json:"equations"`
	Pixels      int     `json:"pixels"`
	Sources     int     `json:"sources"`
	Constrained bool    `json:"constrained"`
	Converged   bool    `json:"converged"`
	Iterations  int     `json:"iterations"`
	Metric      float64 `json:"metric"`
	ConvCrit    float64 `json:"conv_crit"`
	Residual    float64 `json:"residual"`
}

// ModeRecord summarises degenerate-mode removal.
type ModeRecord struct {
	Threshold float64   `json:"threshold"`
	Cutoff    int       `json:"cutoff"`
	Removed   int       `json:"removed"`
	Applied   bool      `json:"applied"`
	Singular  []float64 `json:"singular"`
}

// New creates a run file with a fresh run id.
func New(name, mode string, gridSize int) *File {
	now := time.Now()
	return &File{
		Version:  fileVersion,
		RunID:    uuid.NewString(),
		Name:     name,
		Created:  now,
		Modified: now,
		Mode:     mode,
		GridSize: gridSize,
	}
}

// Load loads a run from a .beamrun file.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var run File
	if err := json.Unmarshal(data, &run); err != nil {
		return nil, err
	}
	if run.Version > fileVersion {
		return nil, fmt.Errorf("run file version %d is newer than supported %d", run.Version, fileVersion)
	}
	return &run, nil
}

// Save saves the run to a file.
func (p *File) Save(path string) error {
	p.Modified = time.Now()

	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// SetCatalog sets the catalog path (relative to the run file).
func (p *File) SetCatalog(runPath, catalogPath string) {
	rel, err := filepath.Rel(filepath.Dir(runPath), catalogPath)
	if err != nil {
		p.CatalogPath = catalogPath
	} else {
		p.CatalogPath = rel
	}
	p.Modified = time.Now()
}

// GetCatalogPath returns the absolute path to the catalog.
func (p *File) GetCatalogPath(runPath string) string {
	if p.CatalogPath == "" {
		return ""
	}
	if filepath.IsAbs(p.CatalogPath) {
		return p.CatalogPath
	}
	return filepath.Join(filepath.Dir(runPath), p.CatalogPath)
}

// AddPass records a pass and how many samples it emitted.
func (p *File) AddPass(pass beam.Pass, samples int) {
	rec := PassRecord{Polarization: pass.Polarization, Samples: samples}
	for _, t := range pass.Transforms() {
		rec.Rotations = appendUnique(rec.Rotations, t.Rotation)
		rec.Flips = appendUniqueInt(rec.Flips, t.Flip)
	}
	p.Passes = append(p.Passes, rec)
}

// RecordSolve stores the solver diagnostics for sys.
func (p *File) RecordSolve(sys *beam.System, res *beam.Result) {
	_, constrained := sys.Constraint()
	p.Solve = SolveRecord{
		Equations:   sys.NumEquations(),
		Pixels:      len(sys.Pixels()),
		Sources:     len(sys.Sources()),
		Constrained: constrained,
		Converged:   res.Converged,
		Iterations:  res.Iterations,
		Metric:      finite(res.Metric),
		ConvCrit:    res.ConvCrit,
		Residual:    finite(res.Residual),
	}
}

// RecordModes stores a degenerate-mode report.
func (p *File) RecordModes(r *beam.ModeReport) {
	p.Degeneracy = &ModeRecord{
		Threshold: r.Threshold,
		Cutoff:    r.Cutoff,
		Removed:   r.Degenerate(),
		Applied:   r.Applied,
		Singular:  r.Singular,
	}
}

// SetBeam stores the beam grid row by row.
func (p *File) SetBeam(b mat.Matrix) {
	r, c := b.Dims()
	p.Beam = make([][]float64, r)
	for i := range p.Beam {
		p.Beam[i] = make([]float64, c)
		for j := range p.Beam[i] {
			p.Beam[i][j] = finite(b.At(i, j))
		}
	}
}

// BeamMatrix returns the stored beam as a matrix, or nil when none is stored.
// Rows of differing length are an error.
func (p *File) BeamMatrix() (*mat.Dense, error) {
	if len(p.Beam) == 0 || len(p.Beam[0]) == 0 {
		return nil, nil
	}
	cols := len(p.Beam[0])
	m := mat.NewDense(len(p.Beam), cols, nil)
	for i, row := range p.Beam {
		if len(row) != cols {
			return nil, fmt.Errorf("beam row %d has %d values, want %d", i, len(row), cols)
		}
		m.SetRow(i, row)
	}
	return m, nil
}

// finite maps NaN and infinities to zero; JSON cannot encode them.
func finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

func appendUnique(s []float64, v float64) []float64 {
	for _, x := range s {
		if x == v {
			return s
		}
	}
	return append(s, v)
}

func appendUniqueInt(s []int, v int) []int {
	for _, x := range s {
		if x == v {
			return s
		}
	}
	return append(s, v)
}
