package config

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"beam-solver/internal/beam"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const jobTOML = `
grid_size = 40
mode = "joint"
catalog = "cat.json"

[[pass]]
polarization = 0
rotations = [0.0, 3.141592653589793]
flips = [1, -1]

[[pass]]
polarization = 1
rotations = [1.5707963267948966]

[solve]
max_iter = 200
constrain = true

[degeneracy]
enabled = false

[output]
run = "out.beamrun"
`

const jobYAML = `
grid_size: 24
catalog: cat.json
pass:
  - polarization: 0
    flips: [1, -1]
solve:
  rcond: 1.0e-12
degeneracy:
  threshold: 1.0e-3
output:
  plot: beam.png
`

func TestDecodeTOML(t *testing.T) {
	job, err := Decode([]byte(jobTOML), ".toml")
	require.NoError(t, err)

	assert.Equal(t, 40, job.GridSize)
	assert.Equal(t, beam.Joint, job.Form())
	require.Len(t, job.Passes, 2)
	assert.Equal(t, []int{1, -1}, job.Passes[0].Flips)
	assert.InDelta(t, math.Pi/2, job.Passes[1].Rotations[0], 1e-15)
	assert.Equal(t, 200, job.Solve.MaxIter)
	assert.True(t, job.Solve.Constrain)
	assert.False(t, job.Degeneracy.Enabled)
	assert.Equal(t, "out.beamrun", job.Output.Run)

	// Unset keys keep their defaults.
	def := Default()
	assert.Equal(t, def.Solve.ConvCrit, job.Solve.ConvCrit)
	assert.Equal(t, beam.DefaultMultiply, job.Solve.Multiply)
	assert.Equal(t, beam.DefaultThreshold, job.Degeneracy.Threshold)
}

func TestDecodeYAML(t *testing.T) {
	job, err := Decode([]byte(jobYAML), ".yml")
	require.NoError(t, err)

	assert.Equal(t, 24, job.GridSize)
	assert.Equal(t, beam.BeamOnly, job.Form())
	require.Len(t, job.Passes, 1)
	assert.Equal(t, []int{1, -1}, job.Passes[0].Flips)
	assert.Equal(t, 1e-12, job.Solve.RCond)
	assert.Equal(t, 1e-3, job.Degeneracy.Threshold)
	assert.True(t, job.Degeneracy.Enabled)
	assert.Equal(t, "beam.png", job.Output.Plot)
}

func TestDecodeDefaultsPass(t *testing.T) {
	job, err := Decode([]byte(`catalog = "c.json"`), ".toml")
	require.NoError(t, err)
	assert.Equal(t, Default().Passes, job.Passes)
}

func TestDecodeRejects(t *testing.T) {
	tests := []struct {
		name string
		body string
		ext  string
	}{
		{"format", `grid_size = 10`, ".ini"},
		{"mode", `mode = "both"`, ".toml"},
		{"grid", `grid_size = 1`, ".toml"},
		{"flip", "[[pass]]\nflips = [2]", ".toml"},
		{"max iter", "[solve]\nmax_iter = 0", ".toml"},
		{"multiply", "[solve]\nconstrain = true\nmultiply = 0.0", ".toml"},
		{"threshold", "degeneracy:\n  threshold: -1", ".yaml"},
		{"syntax", `grid_size = `, ".toml"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode([]byte(tt.body), tt.ext)
			assert.Error(t, err)
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "job.toml")
	require.NoError(t, os.WriteFile(path, []byte(jobTOML), 0644))
	job, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "cat.json", job.Catalog)

	_, err = Load(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)
}

func TestBeamPasses(t *testing.T) {
	job, err := Decode([]byte(jobTOML), ".toml")
	require.NoError(t, err)

	flux := map[int][]float64{0: {1, 2}, 1: {3, 4}}
	passes := job.BeamPasses(func(pol int) []float64 { return flux[pol] })
	require.Len(t, passes, 2)
	assert.Equal(t, []float64{3, 4}, passes[1].CatalogFlux)
	assert.Len(t, passes[0].Transforms(), 4)

	opts := job.Options()
	assert.Equal(t, 200, opts.MaxIter)
	assert.NoError(t, opts.Validate())
}
