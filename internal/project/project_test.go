package project

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"beam-solver/internal/beam"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func solvedSystem(t *testing.T) (*beam.System, *beam.Result) {
	t.Helper()
	g, err := beam.NewGrid(4)
	require.NoError(t, err)
	b := beam.NewBuilder(g, beam.BeamOnly)
	b.AddSample(beam.WeightedPixels{Pixels: [4]int{0, 1, 4, 5}, Weights: [4]float64{0.4, 0.3, 0.2, 0.1}}, 3, 1, 0, 0)
	b.Constrain(beam.DefaultMultiply)
	sys, err := b.Build()
	require.NoError(t, err)
	res, err := beam.Solve(sys, beam.DefaultOptions())
	require.NoError(t, err)
	return sys, res
}

func TestNewRun(t *testing.T) {
	run := New("test", "beam", 60)
	_, err := uuid.Parse(run.RunID)
	assert.NoError(t, err)
	assert.Equal(t, fileVersion, run.Version)
	assert.NotEqual(t, run.RunID, New("test", "beam", 60).RunID)
}

func TestCatalogPathIsRelative(t *testing.T) {
	dir := t.TempDir()
	runPath := filepath.Join(dir, "runs", "a"+Extension)
	catPath := filepath.Join(dir, "data", "cat.json")

	run := New("a", "beam", 60)
	run.SetCatalog(runPath, catPath)
	assert.Equal(t, filepath.Join("..", "data", "cat.json"), run.CatalogPath)
	assert.Equal(t, catPath, run.GetCatalogPath(runPath))

	assert.Empty(t, New("b", "beam", 60).GetCatalogPath(runPath))
}

func TestSaveLoadRoundTrip(t *testing.T) {
	sys, res := solvedSystem(t)
	report, err := beam.DegenerateModes(sys, res.Solution, beam.DefaultThreshold)
	require.NoError(t, err)

	run := New("roundtrip", "beam", 4)
	run.AddPass(beam.Pass{Rotations: []float64{0, math.Pi}, Flips: []int{1, -1}}, 12)
	run.RecordSolve(sys, res)
	run.RecordModes(report)

	b := mat.NewDense(4, 4, nil)
	b.Set(1, 2, 0.75)
	b.Set(3, 3, math.NaN())
	run.SetBeam(b)

	path := filepath.Join(t.TempDir(), "roundtrip"+Extension)
	require.NoError(t, run.Save(path))

	back, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, run.RunID, back.RunID)
	require.Len(t, back.Passes, 1)
	assert.Equal(t, []float64{0, math.Pi}, back.Passes[0].Rotations)
	assert.Equal(t, []int{1, -1}, back.Passes[0].Flips)
	assert.Equal(t, 12, back.Passes[0].Samples)

	assert.True(t, back.Solve.Constrained)
	assert.True(t, back.Solve.Converged)
	assert.Equal(t, 1, back.Solve.Equations)
	assert.Equal(t, 5, back.Solve.Pixels)

	require.NotNil(t, back.Degeneracy)
	assert.Equal(t, report.Cutoff, back.Degeneracy.Cutoff)
	assert.Equal(t, report.Degenerate(), back.Degeneracy.Removed)

	m, err := back.BeamMatrix()
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Equal(t, 0.75, m.At(1, 2))
	assert.Equal(t, 0.0, m.At(3, 3), "NaN is stored as zero")
}

func TestLoadRejectsNewerVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "future"+Extension)
	require.NoError(t, os.WriteFile(path, []byte(`{"version": 42}`), 0644))
	_, err := Load(path)
	assert.Error(t, err)
}

func TestBeamMatrixEmpty(t *testing.T) {
	m, err := New("x", "beam", 4).BeamMatrix()
	require.NoError(t, err)
	assert.Nil(t, m)
}

func TestBeamMatrixRejectsRaggedRows(t *testing.T) {
	p := New("x", "beam", 3)
	p.Beam = [][]float64{{1, 2, 3}, {4, 5}, {6, 7, 8}}
	_, err := p.BeamMatrix()
	assert.ErrorContains(t, err, "row 1")
}
