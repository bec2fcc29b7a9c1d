// Package ewkt encodes geometries as extended well-known text with an
// explicit SRID prefix (SRID=4326;...), the wire form PostGIS accepts in
// both COPY streams and ST_GeomFromEWKT. Only the shapes this pipeline
// emits are supported: points and multi-polygons.
package ewkt

import (
	"strconv"
	"strings"

	"github.com/ctessum/geom"

	"github.com/geopop/ingest/pkg/geoperrors"
)

// SRID is the spatial reference of every geometry in the system (WGS 84).
const SRID = 4326

// Point encodes a longitude/latitude pair as an EWKT point.
func Point(lon, lat float64) string {
	var b strings.Builder
	b.WriteString("SRID=4326;POINT(")
	b.WriteString(formatCoord(lon))
	b.WriteByte(' ')
	b.WriteString(formatCoord(lat))
	b.WriteByte(')')
	return b.String()
}

// MultiPolygon encodes a multi-polygon as EWKT.
func MultiPolygon(mp geom.MultiPolygon) (string, error) {
	if len(mp) == 0 {
		return "", geoperrors.New(geoperrors.ErrorTypeData, "empty multi-polygon")
	}

	var b strings.Builder
	b.WriteString("SRID=4326;MULTIPOLYGON(")
	for i, poly := range mp {
		if len(poly) == 0 {
			return "", geoperrors.New(geoperrors.ErrorTypeData, "multi-polygon contains an empty polygon")
		}
		if i > 0 {
			b.WriteByte(',')
		}
		writePolygonBody(&b, poly)
	}
	b.WriteByte(')')
	return b.String(), nil
}

// Normalize coerces a decoded feature geometry into a multi-polygon. A bare
// polygon is wrapped into a one-element collection; any other shape is
// rejected so the caller can count and skip the feature.
func Normalize(g geom.Geom) (geom.MultiPolygon, error) {
	switch t := g.(type) {
	case geom.Polygon:
		return geom.MultiPolygon{t}, nil
	case geom.MultiPolygon:
		return t, nil
	default:
		return nil, geoperrors.Newf(geoperrors.ErrorTypeData, "unsupported geometry type %T", g)
	}
}

func writePolygonBody(b *strings.Builder, poly geom.Polygon) {
	b.WriteByte('(')
	for i, ring := range poly {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteByte('(')
		for j, pt := range ring {
			if j > 0 {
				b.WriteByte(',')
			}
			b.WriteString(formatCoord(pt.X))
			b.WriteByte(' ')
			b.WriteString(formatCoord(pt.Y))
		}
		// WKT rings are closed; shapefile rings repeat the first vertex
		// already, so only close when the source did not.
		if len(ring) > 0 && ring[0] != ring[len(ring)-1] {
			b.WriteByte(',')
			b.WriteString(formatCoord(ring[0].X))
			b.WriteByte(' ')
			b.WriteString(formatCoord(ring[0].Y))
		}
		b.WriteByte(')')
	}
	b.WriteByte(')')
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
