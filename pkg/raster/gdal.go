package raster

import (
	"github.com/lukeroth/gdal"

	"github.com/geopop/ingest/pkg/geoperrors"
	"github.com/geopop/ingest/pkg/grid"
)

// gdalSource adapts a GDAL dataset to the Source interface.
type gdalSource struct {
	ds   gdal.Dataset
	band gdal.RasterBand
	geo  grid.Geometry
}

// Open opens a single-band raster (typically a GeoTIFF) read-only and
// derives its grid geometry. Rotated rasters are rejected here, before any
// pixel is read.
func Open(path string) (Source, error) {
	ds, err := gdal.Open(path, gdal.ReadOnly)
	if err != nil {
		return nil, geoperrors.Wrap(err, geoperrors.ErrorTypeFile, "failed to open raster").
			WithDetail("path", path)
	}

	if ds.RasterCount() < 1 {
		ds.Close()
		return nil, geoperrors.New(geoperrors.ErrorTypeData, "raster has no bands").
			WithDetail("path", path)
	}

	gt := ds.GeoTransform()
	transform := grid.Affine{
		OriginX:     gt[0],
		PixelWidth:  gt[1],
		RowRotation: gt[2],
		OriginY:     gt[3],
		ColRotation: gt[4],
		PixelHeight: gt[5],
	}
	if err := transform.Validate(); err != nil {
		ds.Close()
		return nil, err
	}

	band := ds.RasterBand(1)
	nodata, hasNoData := band.NoDataValue()

	return &gdalSource{
		ds:   ds,
		band: band,
		geo: grid.Geometry{
			Width:     ds.RasterXSize(),
			Height:    ds.RasterYSize(),
			Transform: transform,
			NoData:    nodata,
			HasNoData: hasNoData,
		},
	}, nil
}

func (s *gdalSource) Geometry() grid.Geometry {
	return s.geo
}

func (s *gdalSource) ReadRow(row int, dst []float64) error {
	if len(dst) != s.geo.Width {
		return geoperrors.Newf(geoperrors.ErrorTypeData,
			"row buffer length %d does not match raster width %d", len(dst), s.geo.Width)
	}
	if row < 0 || row >= s.geo.Height {
		return geoperrors.Newf(geoperrors.ErrorTypeData, "row %d outside raster height %d", row, s.geo.Height)
	}

	err := s.band.IO(gdal.Read, 0, row, s.geo.Width, 1, dst, s.geo.Width, 1, 0, 0)
	if err != nil {
		return geoperrors.Wrap(err, geoperrors.ErrorTypeData, "raster row read failed").
			WithDetail("row", row)
	}
	return nil
}

func (s *gdalSource) Close() error {
	s.ds.Close()
	return nil
}
