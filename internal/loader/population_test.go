package loader

import (
	"context"
	"errors"
	"math"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/geopop/ingest/pkg/grid"
)

// fakeRaster serves in-memory pixel rows through the raster source
// interface.
type fakeRaster struct {
	geo  grid.Geometry
	rows [][]float64

	readErr error
}

func (f *fakeRaster) Geometry() grid.Geometry { return f.geo }

func (f *fakeRaster) ReadRow(row int, dst []float64) error {
	if f.readErr != nil {
		return f.readErr
	}
	copy(dst, f.rows[row])
	return nil
}

func (f *fakeRaster) Close() error { return nil }

// northUpGeometry builds a raster geometry with the top-left corner at
// (west, north) and square pixels of the given size in degrees.
func northUpGeometry(width, height int, west, north, pixel float64) grid.Geometry {
	return grid.Geometry{
		Width:  width,
		Height: height,
		Transform: grid.Affine{
			OriginX:     west,
			OriginY:     north,
			PixelWidth:  pixel,
			PixelHeight: -pixel,
		},
	}
}

func runStream(t *testing.T, src *fakeRaster, exec *fakeCopyExecutor) PopulationStats {
	t.Helper()
	buf := NewCopyBuffer(exec, populationCopySQL, DefaultPopulationBatch)
	stats, err := streamPopulation(context.Background(), src, buf, NewTracker(), NewReporter(zap.NewNop(), 0))
	require.NoError(t, err)
	return stats
}

func TestStreamPopulationSinglePixel(t *testing.T) {
	// One grid-aligned 30-arc-second pixel: its center (89.9958..,
	// -179.9958..) lies inside canonical row 0, column 0, cell 0.
	src := &fakeRaster{
		geo:  northUpGeometry(1, 1, -180, 90, 1.0/120),
		rows: [][]float64{{100}},
	}
	exec := &fakeCopyExecutor{}

	stats := runStream(t, src, exec)

	assert.Equal(t, int64(1), stats.Accepted)
	assert.Equal(t, int64(0), stats.OutOfBounds)
	assert.Equal(t, int64(0), stats.Duplicates)
	require.Len(t, exec.payloads, 1)
	assert.Equal(t, "0\t100\n", exec.payloads[0])
}

func TestStreamPopulationCollapsingPixels(t *testing.T) {
	// Two pixels in one raster row whose centers fall inside the same
	// canonical cell: the first is persisted, the second is a counted
	// duplicate.
	src := &fakeRaster{
		geo:  northUpGeometry(2, 1, -180, 90, 0.002),
		rows: [][]float64{{5, 7}},
	}
	exec := &fakeCopyExecutor{}

	stats := runStream(t, src, exec)

	assert.Equal(t, int64(1), stats.Accepted)
	assert.Equal(t, int64(1), stats.Duplicates)
	require.Len(t, exec.payloads, 1)
	assert.Equal(t, "0\t5\n", exec.payloads[0], "first writer wins")
}

func TestStreamPopulationValidityFilter(t *testing.T) {
	nodata := -9999.0
	geo := northUpGeometry(6, 1, -180, 90, 0.002)
	geo.NoData = nodata
	geo.HasNoData = true
	src := &fakeRaster{
		geo:  geo,
		rows: [][]float64{{0, -1, math.NaN(), math.Inf(1), nodata, 3.5}},
	}
	exec := &fakeCopyExecutor{}

	stats := runStream(t, src, exec)

	// Invalid values are excluded silently, not counted as anomalies.
	assert.Equal(t, int64(1), stats.Accepted)
	assert.Equal(t, int64(0), stats.OutOfBounds)
	assert.Equal(t, int64(0), stats.Duplicates)
	require.Len(t, exec.payloads, 1)
	assert.True(t, strings.HasSuffix(exec.payloads[0], "\t3.5\n"))
}

func TestStreamPopulationOutOfBoundsRow(t *testing.T) {
	// The raster extends north of the grid: the first pixel row's center
	// latitude is above 90, so the whole row is skipped without a read.
	src := &fakeRaster{
		geo:  northUpGeometry(1, 2, -180, 90+1.0/120, 1.0/120),
		rows: [][]float64{nil, {100}},
	}
	exec := &fakeCopyExecutor{}

	stats := runStream(t, src, exec)

	assert.Equal(t, int64(1), stats.OutOfBounds)
	assert.Equal(t, int64(1), stats.Accepted)
	assert.Equal(t, "0\t100\n", exec.payloads[0])
}

func TestStreamPopulationOutOfBoundsColumn(t *testing.T) {
	// The raster extends west of -180: the first pixel's center longitude
	// is out of grid, the second maps to column 0.
	src := &fakeRaster{
		geo:  northUpGeometry(2, 1, -180-1.0/120, 90, 1.0/120),
		rows: [][]float64{{1, 2}},
	}
	exec := &fakeCopyExecutor{}

	stats := runStream(t, src, exec)

	assert.Equal(t, int64(1), stats.OutOfBounds)
	assert.Equal(t, int64(1), stats.Accepted)
	assert.Equal(t, "0\t2\n", exec.payloads[0])
}

func TestStreamPopulationReadError(t *testing.T) {
	src := &fakeRaster{
		geo:     northUpGeometry(1, 1, -180, 90, 0.02),
		rows:    [][]float64{{1}},
		readErr: errors.New("I/O error"),
	}
	buf := NewCopyBuffer(&fakeCopyExecutor{}, populationCopySQL, 10)

	_, err := streamPopulation(context.Background(), src, buf, NewTracker(), NewReporter(zap.NewNop(), 0))
	require.Error(t, err)
}

func TestStreamPopulationIdentifierRange(t *testing.T) {
	// A full-extent low-resolution raster: every emitted identifier must be
	// a valid canonical cell.
	const n = 18
	geo := northUpGeometry(2*n, n, -180, 90, 180.0/n)
	rows := make([][]float64, n)
	for r := range rows {
		rows[r] = make([]float64, 2*n)
		for c := range rows[r] {
			rows[r][c] = 1
		}
	}
	exec := &fakeCopyExecutor{}

	stats := runStream(t, &fakeRaster{geo: geo, rows: rows}, exec)

	assert.Equal(t, int64(n*2*n), stats.Accepted)
	for _, payload := range exec.payloads {
		for _, line := range strings.Split(strings.TrimSuffix(payload, "\n"), "\n") {
			id := line[:strings.IndexByte(line, '\t')]
			v, err := strconv.ParseInt(id, 10, 64)
			require.NoError(t, err)
			assert.GreaterOrEqual(t, v, int64(0))
			assert.Less(t, v, grid.NumCells)
		}
	}
}
