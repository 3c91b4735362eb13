// Package config loads beam solve jobs from TOML or YAML files.
package config

import (
	"bytes"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"beam-solver/internal/beam"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Job describes one solve: inputs, how to fold polarizations onto the grid,
// solver settings and outputs.
type Job struct {
	GridSize int    `toml:"grid_size" yaml:"grid_size"`
	Mode     string `toml:"mode" yaml:"mode"` // "beam" or "joint"
	Catalog  string `toml:"catalog" yaml:"catalog"`

	Passes []PassConfig `toml:"pass" yaml:"pass"`

	Solve      SolveConfig      `toml:"solve" yaml:"solve"`
	Degeneracy DegeneracyConfig `toml:"degeneracy" yaml:"degeneracy"`
	Output     OutputConfig     `toml:"output" yaml:"output"`
}

// PassConfig selects a polarization and its orientations. Rotations are in radians.
type PassConfig struct {
	Polarization int       `toml:"polarization" yaml:"polarization"`
	Rotations    []float64 `toml:"rotations" yaml:"rotations"`
	Flips        []int     `toml:"flips" yaml:"flips"`
}

// SolveConfig mirrors beam.Options plus the scale constraint.
type SolveConfig struct {
	MaxIter   int     `toml:"max_iter" yaml:"max_iter"`
	ConvCrit  float64 `toml:"conv_crit" yaml:"conv_crit"`
	RCond     float64 `toml:"rcond" yaml:"rcond"`
	Constrain bool    `toml:"constrain" yaml:"constrain"`
	Multiply  float64 `toml:"multiply" yaml:"multiply"`
}

// DegeneracyConfig controls eigenmode removal after the solve.
type DegeneracyConfig struct {
	Enabled   bool    `toml:"enabled" yaml:"enabled"`
	Threshold float64 `toml:"threshold" yaml:"threshold"`
}

// OutputConfig names the files a job writes. Empty paths are skipped.
type OutputConfig struct {
	Run  string `toml:"run" yaml:"run"`
	Plot string `toml:"plot" yaml:"plot"`
	TIFF string `toml:"tiff" yaml:"tiff"`
}

// Default returns a single-polarization beam-only job.
func Default() Job {
	opts := beam.DefaultOptions()
	return Job{
		GridSize: beam.DefaultGridSize,
		Mode:     beam.BeamOnly.Name(),
		Passes: []PassConfig{
			{Polarization: 0, Rotations: []float64{0}, Flips: []int{1}},
		},
		Solve: SolveConfig{
			MaxIter:  opts.MaxIter,
			ConvCrit: opts.ConvCrit,
			RCond:    opts.RCond,
			Multiply: beam.DefaultMultiply,
		},
		Degeneracy: DegeneracyConfig{
			Enabled:   true,
			Threshold: beam.DefaultThreshold,
		},
	}
}

// Load reads path, choosing the decoder from its extension. Fields missing
// from the file keep their defaults.
func Load(path string) (Job, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Job{}, err
	}
	job, err := Decode(data, filepath.Ext(path))
	if err != nil {
		return Job{}, fmt.Errorf("%s: %w", path, err)
	}
	return job, nil
}

// Decode parses data in the format named by ext (".toml", ".yaml" or ".yml").
func Decode(data []byte, ext string) (Job, error) {
	job := Default()
	// A file that lists passes replaces the default pass instead of merging.
	job.Passes = nil

	switch strings.ToLower(ext) {
	case ".toml":
		if _, err := toml.NewDecoder(bytes.NewReader(data)).Decode(&job); err != nil {
			return Job{}, err
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &job); err != nil {
			return Job{}, err
		}
	default:
		return Job{}, fmt.Errorf("unsupported config format %q", ext)
	}

	if len(job.Passes) == 0 {
		job.Passes = Default().Passes
	}
	if err := job.Validate(); err != nil {
		return Job{}, err
	}
	return job, nil
}

// Validate rejects settings the solver cannot run with.
func (j Job) Validate() error {
	if j.GridSize < 2 {
		return fmt.Errorf("grid_size must be at least 2, got %d", j.GridSize)
	}
	if _, ok := beam.FormByName(j.Mode); !ok {
		return fmt.Errorf("unknown mode %q", j.Mode)
	}
	for i, p := range j.Passes {
		if p.Polarization < 0 {
			return fmt.Errorf("pass %d: negative polarization", i)
		}
		for _, f := range p.Flips {
			if f != 1 && f != -1 {
				return fmt.Errorf("pass %d: flip must be 1 or -1, got %d", i, f)
			}
		}
		for _, r := range p.Rotations {
			if math.IsNaN(r) || math.IsInf(r, 0) {
				return fmt.Errorf("pass %d: invalid rotation %g", i, r)
			}
		}
	}
	if err := j.Options().Validate(); err != nil {
		return err
	}
	if j.Solve.Constrain && !(j.Solve.Multiply > 0) {
		return fmt.Errorf("multiply must be positive when constrain is set, got %g", j.Solve.Multiply)
	}
	if j.Degeneracy.Enabled && !(j.Degeneracy.Threshold > 0) {
		return fmt.Errorf("degeneracy threshold must be positive, got %g", j.Degeneracy.Threshold)
	}
	return nil
}

// Form returns the equation form for Mode.
func (j Job) Form() beam.EquationForm {
	f, ok := beam.FormByName(j.Mode)
	if !ok {
		return beam.BeamOnly
	}
	return f
}

// Options returns the solver options.
func (j Job) Options() beam.Options {
	opts := beam.DefaultOptions()
	opts.MaxIter = j.Solve.MaxIter
	opts.ConvCrit = j.Solve.ConvCrit
	opts.RCond = j.Solve.RCond
	return opts
}

// BeamPasses converts the pass configs, attaching each polarization's catalog
// flux through fluxFor.
func (j Job) BeamPasses(fluxFor func(pol int) []float64) []beam.Pass {
	out := make([]beam.Pass, 0, len(j.Passes))
	for _, p := range j.Passes {
		out = append(out, beam.Pass{
			Polarization: p.Polarization,
			CatalogFlux:  fluxFor(p.Polarization),
			Rotations:    p.Rotations,
			Flips:        p.Flips,
		})
	}
	return out
}
