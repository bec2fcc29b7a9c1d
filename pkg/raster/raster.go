// Package raster exposes gridded sources as row-addressable pixel streams.
// Decoding of the container format is delegated to GDAL; the pipeline only
// sees the Source interface, which keeps the loaders testable without
// raster fixtures.
package raster

import (
	"github.com/geopop/ingest/pkg/grid"
)

// Source is a decoded single-band raster. Implementations return pixel
// values in raster row order; a full row fits in memory by construction.
type Source interface {
	// Geometry returns the immutable description of the raster.
	Geometry() grid.Geometry
	// ReadRow fills dst with the pixel values of the given row. dst must
	// have length Geometry().Width.
	ReadRow(row int, dst []float64) error
	// Close releases the underlying dataset.
	Close() error
}
