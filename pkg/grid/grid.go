// Package grid implements the canonical 30-arc-second global grid used as
// the spatial index for every dataset in the system. The grid partitions the
// Earth into NRows x NCols cells; a cell identifier is the row-major index
// of a cell, and the mapping from a geographic coordinate to an identifier
// is a pure function shared with the query API and the SQL layer.
package grid

import (
	"math"

	"github.com/geopop/ingest/pkg/geoperrors"
)

const (
	// NRows is the number of grid rows (180 degrees x 120 cells/degree).
	NRows = 21600
	// NCols is the number of grid columns (360 degrees x 120 cells/degree).
	NCols = 43200
	// CellsPerDegree is the grid resolution: 120 cells per degree,
	// i.e. 30 arc seconds per cell.
	CellsPerDegree = 120

	// NumCells is the total cell count; every valid identifier is in
	// [0, NumCells).
	NumCells = int64(NRows) * int64(NCols)
)

// CellID maps a geographic coordinate to its canonical cell identifier.
// The second return value is false when the coordinate falls outside the
// grid; callers are expected to count and skip such inputs rather than
// abort.
func CellID(lat, lon float64) (int64, bool) {
	row := int64(math.Floor((90.0 - lat) * CellsPerDegree))
	col := int64(math.Floor((lon + 180.0) * CellsPerDegree))
	if row < 0 || row >= NRows || col < 0 || col >= NCols {
		return 0, false
	}
	return row*NCols + col, true
}

// RowIndex maps a latitude to a canonical grid row. The result may be out
// of range; Valid reports on complete identifiers instead.
func RowIndex(lat float64) int64 {
	return int64(math.Floor((90.0 - lat) * CellsPerDegree))
}

// ColIndex maps a longitude to a canonical grid column.
func ColIndex(lon float64) int64 {
	return int64(math.Floor((lon + 180.0) * CellsPerDegree))
}

// CellRowCol recovers the row and column a cell identifier was computed
// from.
func CellRowCol(id int64) (row, col int64) {
	return id / NCols, id % NCols
}

// Affine is the affine transform of a north-up raster: the coordinate of
// the top-left corner and the per-pixel step along each axis. PixelHeight
// is negative for the usual north-up orientation. Rotated rasters carry
// non-zero cross terms and are rejected by Validate.
type Affine struct {
	OriginX     float64 // west edge of the top-left pixel
	OriginY     float64 // north edge of the top-left pixel
	PixelWidth  float64 // step per column, degrees
	PixelHeight float64 // step per row, degrees (negative when north-up)
	RowRotation float64 // cross term, must be zero
	ColRotation float64 // cross term, must be zero
}

// Validate rejects transforms this pipeline cannot index.
func (a Affine) Validate() error {
	if a.RowRotation != 0 || a.ColRotation != 0 {
		return geoperrors.New(geoperrors.ErrorTypeData, "rotated rasters are not supported")
	}
	if a.PixelWidth == 0 || a.PixelHeight == 0 {
		return geoperrors.New(geoperrors.ErrorTypeData, "degenerate affine transform: zero pixel step")
	}
	return nil
}

// CenterLat returns the latitude of the center of pixel row r.
func (a Affine) CenterLat(r int) float64 {
	return a.OriginY + (float64(r)+0.5)*a.PixelHeight
}

// CenterLon returns the longitude of the center of pixel column c.
func (a Affine) CenterLon(c int) float64 {
	return a.OriginX + (float64(c)+0.5)*a.PixelWidth
}

// Geometry is the immutable description of a source raster, derived once
// per run.
type Geometry struct {
	Width     int
	Height    int
	Transform Affine
	NoData    float64
	HasNoData bool
}

// Index maps a pixel position to a canonical cell identifier through the
// raster geometry. Pure; the boolean mirrors CellID's out-of-bounds
// reporting.
func (g Geometry) Index(pixelRow, pixelCol int) (int64, bool) {
	return CellID(g.Transform.CenterLat(pixelRow), g.Transform.CenterLon(pixelCol))
}
