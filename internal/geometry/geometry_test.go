package geometry

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jonas-p/go-shp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"
)

func assertPoint(t *testing.T, row Row, wantType string, lat, lon float64) {
	t.Helper()
	require.NotNil(t, row.GeometryType)
	assert.Equal(t, wantType, *row.GeometryType)
	require.True(t, row.HasCoordinates())
	assert.InDelta(t, lat, *row.Latitude, 1e-9)
	assert.InDelta(t, lon, *row.Longitude, 1e-9)
}

func TestReduce_Point(t *testing.T) {
	p := geom.NewPointFlat(geom.XY, []float64{-77.03, 38.89})
	assertPoint(t, Reduce(p), TypePoint, 38.89, -77.03)
}

func TestReduce_SquarePolygon(t *testing.T) {
	square := geom.NewPolygonFlat(geom.XY, []float64{0, 0, 2, 0, 2, 2, 0, 2}, []int{8})
	assertPoint(t, Reduce(square), TypePolygon, 1, 1)
}

func TestReduce_PolygonHoleIgnored(t *testing.T) {
	withHole := geom.NewPolygonFlat(geom.XY,
		[]float64{
			0, 0, 2, 0, 2, 2, 0, 2, // outer ring
			10, 10, 11, 10, 11, 11, // hole with distant vertices
		},
		[]int{8, 14},
	)
	assertPoint(t, Reduce(withHole), TypePolygon, 1, 1)
}

func TestReduce_ClosedRingCountsClosingVertex(t *testing.T) {
	closed := geom.NewPolygonFlat(geom.XY, []float64{0, 0, 2, 0, 2, 2, 0, 2, 0, 0}, []int{10})
	// Unweighted mean over all five vertices: (4/5, 4/5).
	assertPoint(t, Reduce(closed), TypePolygon, 0.8, 0.8)
}

func TestReduce_MultiPolygonFirstOnly(t *testing.T) {
	mp := geom.NewMultiPolygonFlat(geom.XY,
		[]float64{
			-77.0, 38.0, -76.0, 38.0, -76.0, 39.0, -77.0, 39.0,
			0, 0, 1, 0, 1, 1,
		},
		[][]int{{8}, {14}},
	)
	assertPoint(t, Reduce(mp), TypeMultiPolygon, 38.5, -76.5)
}

func TestReduce_XYZLayout(t *testing.T) {
	poly := geom.NewPolygonFlat(geom.XYZ, []float64{0, 0, 100, 4, 0, 100, 4, 4, 100, 0, 4, 100}, []int{12})
	assertPoint(t, Reduce(poly), TypePolygon, 2, 2)
}

func TestReduce_Unsupported(t *testing.T) {
	ls := geom.NewLineStringFlat(geom.XY, []float64{0, 0, 1, 1})
	row := Reduce(ls)
	require.NotNil(t, row.GeometryType)
	assert.Equal(t, TypeLineString, *row.GeometryType)
	assert.Nil(t, row.Latitude)
	assert.Nil(t, row.Longitude)
	assert.False(t, row.HasCoordinates())
}

func TestReduce_NilGeometry(t *testing.T) {
	row := Reduce(nil)
	assert.Nil(t, row.GeometryType)
	assert.Nil(t, row.Latitude)
	assert.Nil(t, row.Longitude)
}

func TestReduce_EmptyPolygon(t *testing.T) {
	row := Reduce(geom.NewPolygon(geom.XY))
	require.NotNil(t, row.GeometryType)
	assert.Equal(t, TypePolygon, *row.GeometryType)
	assert.False(t, row.HasCoordinates())

	row = Reduce(geom.NewMultiPolygon(geom.XY))
	assert.Equal(t, TypeMultiPolygon, *row.GeometryType)
	assert.False(t, row.HasCoordinates())
}

const mixedCollection = `{
  "type": "FeatureCollection",
  "features": [
    {"type": "Feature", "properties": {"SSL": "0001"}, "geometry": {"type": "Point", "coordinates": [-77.03, 38.89]}},
    {"type": "Feature", "properties": {}, "geometry": {"type": "LineString", "coordinates": [[0, 0], [1, 1]]}},
    {"type": "Feature", "properties": {}, "geometry": null},
    {"type": "Feature", "properties": {}, "geometry": {"type": "Polygon", "coordinates": [[[0, 0], [2, 0], [2, 2], [0, 2]], [[5, 5], [6, 5], [6, 6]]]}},
    {"type": "Feature", "properties": {}, "geometry": {"type": "MultiPolygon", "coordinates": [[[[-77, 38], [-76, 38], [-76, 39], [-77, 39]]], [[[0, 0], [1, 0], [1, 1]]]]}}
  ]
}`

func TestDecodeGeoJSON_OrderPreserved(t *testing.T) {
	rows, err := DecodeGeoJSON(strings.NewReader(mixedCollection))
	require.NoError(t, err)
	require.Len(t, rows, 5)

	assertPoint(t, rows[0], TypePoint, 38.89, -77.03)

	require.NotNil(t, rows[1].GeometryType)
	assert.Equal(t, TypeLineString, *rows[1].GeometryType)
	assert.False(t, rows[1].HasCoordinates())

	assert.Nil(t, rows[2].GeometryType)
	assert.False(t, rows[2].HasCoordinates())

	assertPoint(t, rows[3], TypePolygon, 1, 1)
	assertPoint(t, rows[4], TypeMultiPolygon, 38.5, -76.5)
}

func TestDecodeGeoJSON_Empty(t *testing.T) {
	rows, err := DecodeGeoJSON(strings.NewReader(`{"type": "FeatureCollection", "features": []}`))
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestDecodeGeoJSON_Invalid(t *testing.T) {
	cases := map[string]string{
		"not json":      `not json`,
		"wrong type":    `{"type": "Feature", "geometry": null, "properties": {}}`,
		"truncated":     `{"type": "FeatureCollection", "features": [`,
		"bad geometry":  `{"type": "FeatureCollection", "features": [{"type": "Feature", "geometry": {"type": "Blob", "coordinates": []}}]}`,
		"missing type":  `{"features": []}`,
		"array payload": `[]`,
	}
	for name, doc := range cases {
		_, err := DecodeGeoJSON(strings.NewReader(doc))
		assert.Error(t, err, name)
	}
}

func TestLoadGeoJSON_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dc_lots.geojson")
	require.NoError(t, os.WriteFile(path, []byte(mixedCollection), 0o644))

	rows, err := Load(path)
	require.NoError(t, err)
	assert.Len(t, rows, 5)
}

func TestLoadGeoJSON_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.geojson"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "geometry: open")
}

func writePolygonShapefile(t *testing.T, path string, polys ...[][]shp.Point) {
	t.Helper()
	w, err := shp.Create(path, shp.POLYGON)
	require.NoError(t, err)
	for _, parts := range polys {
		poly := shp.Polygon(*shp.NewPolyLine(parts))
		w.Write(&poly)
	}
	w.Close()
}

func TestLoadShapefile_Polygons(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fairfax_parcels.shp")
	writePolygonShapefile(t, path,
		[][]shp.Point{
			{{X: 0, Y: 0}, {X: 2, Y: 0}, {X: 2, Y: 2}, {X: 0, Y: 2}},
			{{X: 50, Y: 50}, {X: 51, Y: 50}, {X: 51, Y: 51}},
		},
		[][]shp.Point{
			{{X: -77.4, Y: 38.8}, {X: -77.2, Y: 38.8}, {X: -77.2, Y: 39.0}, {X: -77.4, Y: 39.0}},
		},
	)

	rows, err := Load(path)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assertPoint(t, rows[0], TypePolygon, 1, 1)
	assertPoint(t, rows[1], TypePolygon, 38.9, -77.3)
}

func TestLoadShapefile_Points(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lots.shp")
	w, err := shp.Create(path, shp.POINT)
	require.NoError(t, err)
	w.Write(&shp.Point{X: -77.03, Y: 38.89})
	w.Write(&shp.Point{X: -77.1, Y: 38.95})
	w.Close()

	rows, err := LoadShapefile(path)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assertPoint(t, rows[0], TypePoint, 38.89, -77.03)
	assertPoint(t, rows[1], TypePoint, 38.95, -77.1)
}

func TestLoadShapefile_Missing(t *testing.T) {
	_, err := LoadShapefile(filepath.Join(t.TempDir(), "missing.shp"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "open shapefile")
}

func TestReduceShape(t *testing.T) {
	assert.Equal(t, Row{}, ReduceShape(nil))
	assert.Equal(t, Row{}, ReduceShape(&shp.Null{}))

	assertPoint(t, ReduceShape(&shp.PointZ{X: 1, Y: 2, Z: 3}), TypePoint, 2, 1)

	line := ReduceShape(shp.NewPolyLine([][]shp.Point{{{X: 0, Y: 0}, {X: 1, Y: 1}}}))
	require.NotNil(t, line.GeometryType)
	assert.Equal(t, TypeLineString, *line.GeometryType)
	assert.False(t, line.HasCoordinates())

	empty := ReduceShape(&shp.Polygon{})
	assert.Equal(t, TypePolygon, *empty.GeometryType)
	assert.False(t, empty.HasCoordinates())
}
