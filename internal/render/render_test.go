package render

import (
	"bytes"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"beam-solver/pkg/colorutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/tiff"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/plot/vg"
)

// ramp is 2x3: beam(x, y) = x*3 + y.
func ramp() *mat.Dense {
	return mat.NewDense(2, 3, []float64{0, 1, 2, 3, 4, 5})
}

func TestRange(t *testing.T) {
	lo, hi := Range(ramp())
	assert.Equal(t, 0.0, lo)
	assert.Equal(t, 5.0, hi)

	lo, hi = Range(mat.NewDense(1, 1, nil))
	assert.Equal(t, lo, hi)
}

func TestGray16NorthUp(t *testing.T) {
	img := Gray16(ramp())
	assert.Equal(t, 2, img.Bounds().Dx())
	assert.Equal(t, 3, img.Bounds().Dy())
	// beam(0, 0) is the south-west corner, bottom-left in the image.
	assert.Equal(t, uint16(0), img.Gray16At(0, 2).Y)
	assert.Equal(t, uint16(65535), img.Gray16At(1, 0).Y)
}

func TestGray16Flat(t *testing.T) {
	m := mat.NewDense(2, 2, []float64{3, 3, 3, 3})
	img := Gray16(m)
	assert.Equal(t, uint16(0), img.Gray16At(1, 1).Y)
}

func TestWriteTIFF(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteTIFF(&buf, ramp()))

	img, err := tiff.Decode(&buf)
	require.NoError(t, err)
	assert.Equal(t, 2, img.Bounds().Dx())
	assert.Equal(t, 3, img.Bounds().Dy())
	top := color.Gray16Model.Convert(img.At(1, 0)).(color.Gray16)
	assert.Equal(t, uint16(65535), top.Y)
}

func TestQuicklook(t *testing.T) {
	img := Quicklook(ramp(), 4)
	assert.Equal(t, 8, img.Bounds().Dx())
	assert.Equal(t, 12, img.Bounds().Dy())
	assert.Equal(t, colorutil.Heat(0), img.RGBAAt(0, 11))
	assert.Equal(t, colorutil.Heat(1), img.RGBAAt(7, 0))

	var buf bytes.Buffer
	require.NoError(t, WriteQuicklook(&buf, ramp(), 1))
	assert.NotZero(t, buf.Len())
}

func TestHeatMap(t *testing.T) {
	path := filepath.Join(t.TempDir(), "beam.png")
	require.NoError(t, HeatMap(ramp(), "test beam", path, 3*vg.Inch))
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.NotZero(t, info.Size())
}
