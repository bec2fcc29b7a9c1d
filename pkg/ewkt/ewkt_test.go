package ewkt

import (
	"testing"

	"github.com/ctessum/geom"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func square() geom.Polygon {
	return geom.Polygon{geom.Path{
		{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 1, Y: 1}, {X: 0, Y: 1}, {X: 0, Y: 0},
	}}
}

func TestPoint(t *testing.T) {
	assert.Equal(t, "SRID=4326;POINT(13.405 52.52)", Point(13.405, 52.52))
	assert.Equal(t, "SRID=4326;POINT(-179.99 89.99)", Point(-179.99, 89.99))
	assert.Equal(t, "SRID=4326;POINT(0 0)", Point(0, 0))
}

func TestMultiPolygon(t *testing.T) {
	got, err := MultiPolygon(geom.MultiPolygon{square()})
	require.NoError(t, err)
	assert.Equal(t, "SRID=4326;MULTIPOLYGON(((0 0,1 0,1 1,0 1,0 0)))", got)
}

func TestMultiPolygonWithHole(t *testing.T) {
	poly := geom.Polygon{
		geom.Path{{X: 0, Y: 0}, {X: 4, Y: 0}, {X: 4, Y: 4}, {X: 0, Y: 4}, {X: 0, Y: 0}},
		geom.Path{{X: 1, Y: 1}, {X: 2, Y: 1}, {X: 2, Y: 2}, {X: 1, Y: 2}, {X: 1, Y: 1}},
	}
	got, err := MultiPolygon(geom.MultiPolygon{poly})
	require.NoError(t, err)
	assert.Equal(t,
		"SRID=4326;MULTIPOLYGON(((0 0,4 0,4 4,0 4,0 0),(1 1,2 1,2 2,1 2,1 1)))",
		got)
}

func TestMultiPolygonClosesOpenRings(t *testing.T) {
	open := geom.Polygon{geom.Path{{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 1, Y: 1}}}
	got, err := MultiPolygon(geom.MultiPolygon{open})
	require.NoError(t, err)
	assert.Equal(t, "SRID=4326;MULTIPOLYGON(((0 0,1 0,1 1,0 0)))", got)
}

func TestMultiPolygonMultipleParts(t *testing.T) {
	shifted := geom.Polygon{geom.Path{
		{X: 10, Y: 10}, {X: 11, Y: 10}, {X: 11, Y: 11}, {X: 10, Y: 10},
	}}
	got, err := MultiPolygon(geom.MultiPolygon{square(), shifted})
	require.NoError(t, err)
	assert.Equal(t,
		"SRID=4326;MULTIPOLYGON(((0 0,1 0,1 1,0 1,0 0)),((10 10,11 10,11 11,10 10)))",
		got)
}

func TestMultiPolygonRejectsEmpty(t *testing.T) {
	_, err := MultiPolygon(geom.MultiPolygon{})
	assert.Error(t, err)

	_, err = MultiPolygon(geom.MultiPolygon{geom.Polygon{}})
	assert.Error(t, err)
}

func TestNormalize(t *testing.T) {
	t.Run("polygon wrapped into one-element multi-polygon", func(t *testing.T) {
		mp, err := Normalize(square())
		require.NoError(t, err)
		require.Len(t, mp, 1)
		assert.Equal(t, square(), mp[0])
	})

	t.Run("multi-polygon passes through", func(t *testing.T) {
		in := geom.MultiPolygon{square(), square()}
		mp, err := Normalize(in)
		require.NoError(t, err)
		assert.Equal(t, in, mp)
	})

	t.Run("other shapes rejected", func(t *testing.T) {
		_, err := Normalize(geom.Point{X: 1, Y: 2})
		assert.Error(t, err)

		_, err = Normalize(geom.LineString{{X: 0, Y: 0}, {X: 1, Y: 1}})
		assert.Error(t, err)
	})
}
