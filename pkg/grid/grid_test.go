package grid

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCellID(t *testing.T) {
	tests := []struct {
		name string
		lat  float64
		lon  float64
		want int64
		ok   bool
	}{
		{"northwest corner cell", 89.9999, -179.9999, 0, true},
		{"one cell in from the corner", 89.99, -179.99, 1*int64(NCols) + 1, true},
		{"greenwich equator", 0.0, 0.0, 10800*int64(NCols) + 21600, true},
		{"southeast extreme", -89.999, 179.999, NumCells - 1, true},
		{"north pole edge maps to row 0", 89.9999, -180.0, 0, true},
		{"above north pole", 90.5, 0, 0, false},
		{"below south pole", -90.5, 0, 0, false},
		{"east of antimeridian", 0, 180.5, 0, false},
		{"west of antimeridian", 0, -180.5, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, ok := CellID(tt.lat, tt.lon)
			require.Equal(t, tt.ok, ok)
			if ok {
				assert.Equal(t, tt.want, id)
			}
		})
	}
}

func TestCellIDDeterminism(t *testing.T) {
	coords := []struct{ lat, lon float64 }{
		{52.52, 13.405},
		{-33.8688, 151.2093},
		{0.0001, -0.0001},
		{89.99, -179.99},
	}
	for _, c := range coords {
		first, ok1 := CellID(c.lat, c.lon)
		second, ok2 := CellID(c.lat, c.lon)
		require.True(t, ok1)
		require.True(t, ok2)
		assert.Equal(t, first, second)
	}
}

func TestCellIDRange(t *testing.T) {
	// Sweep a coarse lattice of valid coordinates; every identifier must
	// stay inside [0, NumCells).
	for lat := -89.9; lat < 90.0; lat += 7.3 {
		for lon := -179.9; lon < 180.0; lon += 11.7 {
			id, ok := CellID(lat, lon)
			require.True(t, ok, "lat=%f lon=%f", lat, lon)
			assert.GreaterOrEqual(t, id, int64(0))
			assert.Less(t, id, NumCells)
		}
	}
}

func TestCellRowColInverts(t *testing.T) {
	for lat := -89.9; lat < 90.0; lat += 13.1 {
		for lon := -179.9; lon < 180.0; lon += 17.9 {
			id, ok := CellID(lat, lon)
			require.True(t, ok)

			row, col := CellRowCol(id)
			assert.Equal(t, RowIndex(lat), row)
			assert.Equal(t, ColIndex(lon), col)
			assert.Equal(t, row*NCols+col, id)
		}
	}
}

func TestAffineCenters(t *testing.T) {
	// A 1km-ish global raster: 0.0083333.. degrees per pixel, north-up.
	step := 1.0 / 120.0
	a := Affine{
		OriginX:     -180.0,
		OriginY:     90.0,
		PixelWidth:  step,
		PixelHeight: -step,
	}

	assert.InDelta(t, 90.0-step/2, a.CenterLat(0), 1e-12)
	assert.InDelta(t, -180.0+step/2, a.CenterLon(0), 1e-12)
	assert.InDelta(t, 90.0-1.5*step, a.CenterLat(1), 1e-12)
}

func TestAffineValidate(t *testing.T) {
	valid := Affine{OriginX: -180, OriginY: 90, PixelWidth: 0.5, PixelHeight: -0.5}
	assert.NoError(t, valid.Validate())

	rotated := valid
	rotated.RowRotation = 0.1
	assert.Error(t, rotated.Validate())

	degenerate := valid
	degenerate.PixelWidth = 0
	assert.Error(t, degenerate.Validate())
}

func TestGeometryIndex(t *testing.T) {
	step := 1.0 / 120.0
	g := Geometry{
		Width:  NCols,
		Height: NRows,
		Transform: Affine{
			OriginX:     -180.0,
			OriginY:     90.0,
			PixelWidth:  step,
			PixelHeight: -step,
		},
	}

	t.Run("top-left pixel is cell zero", func(t *testing.T) {
		id, ok := g.Index(0, 0)
		require.True(t, ok)
		assert.Equal(t, int64(0), id)
	})

	t.Run("pixel grid aligns one-to-one", func(t *testing.T) {
		id, ok := g.Index(123, 456)
		require.True(t, ok)
		assert.Equal(t, int64(123)*NCols+456, id)
	})

	t.Run("repeated calls agree", func(t *testing.T) {
		a, okA := g.Index(5000, 20000)
		b, okB := g.Index(5000, 20000)
		require.True(t, okA)
		require.True(t, okB)
		assert.Equal(t, a, b)
	})
}

func TestGeometryIndexOutOfBounds(t *testing.T) {
	// A raster whose footprint extends past the grid edge: rows above 90N
	// must report out of bounds rather than wrap.
	g := Geometry{
		Width:  10,
		Height: 10,
		Transform: Affine{
			OriginX:     -180.0,
			OriginY:     91.0,
			PixelWidth:  0.1,
			PixelHeight: -0.1,
		},
	}

	_, ok := g.Index(0, 0) // center latitude 90.95
	assert.False(t, ok)

	id, ok := g.Index(15, 0) // back inside the grid
	require.True(t, ok)
	assert.GreaterOrEqual(t, id, int64(0))
}
