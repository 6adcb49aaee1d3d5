// Package geometry reduces parcel and lot features to one representative
// coordinate each. Polygons use the unweighted vertex mean of their first
// ring only; holes, extra rings, and extra polygons are ignored.
package geometry

import (
	"path/filepath"
	"strings"

	"github.com/twpayne/go-geom"
)

// Geometry type tags written to the geometry_type column.
const (
	TypePoint              = "Point"
	TypeLineString         = "LineString"
	TypePolygon            = "Polygon"
	TypeMultiPoint         = "MultiPoint"
	TypeMultiLineString    = "MultiLineString"
	TypeMultiPolygon       = "MultiPolygon"
	TypeGeometryCollection = "GeometryCollection"
)

// Row is one feature reduced to a representative point. Rows are index
// aligned with the source features.
type Row struct {
	GeometryType *string
	Latitude     *float64
	Longitude    *float64
}

// HasCoordinates reports whether both coordinates are set.
func (r Row) HasCoordinates() bool {
	return r.Latitude != nil && r.Longitude != nil
}

// Reduce maps a decoded geometry to a Row. A nil geometry yields an all-nil
// row; unsupported kinds keep their type tag with nil coordinates.
func Reduce(g geom.T) Row {
	if g == nil {
		return Row{}
	}

	tag := TypeName(g)
	row := Row{GeometryType: &tag}

	switch v := g.(type) {
	case *geom.Point:
		flat := v.FlatCoords()
		if len(flat) < 2 {
			return row
		}
		return withPoint(row, flat[0], flat[1])
	case *geom.Polygon:
		if v.NumLinearRings() == 0 {
			return row
		}
		return withRingMean(row, v.LinearRing(0).FlatCoords(), v.Stride())
	case *geom.MultiPolygon:
		if v.NumPolygons() == 0 {
			return row
		}
		first := v.Polygon(0)
		if first.NumLinearRings() == 0 {
			return row
		}
		return withRingMean(row, first.LinearRing(0).FlatCoords(), first.Stride())
	default:
		return row
	}
}

// TypeName returns the GeoJSON type name of g.
func TypeName(g geom.T) string {
	switch g.(type) {
	case *geom.Point:
		return TypePoint
	case *geom.LineString, *geom.LinearRing:
		return TypeLineString
	case *geom.Polygon:
		return TypePolygon
	case *geom.MultiPoint:
		return TypeMultiPoint
	case *geom.MultiLineString:
		return TypeMultiLineString
	case *geom.MultiPolygon:
		return TypeMultiPolygon
	case *geom.GeometryCollection:
		return TypeGeometryCollection
	default:
		return "Unknown"
	}
}

// withPoint stores a source [lon, lat] pair as (lat, lon).
func withPoint(row Row, lon, lat float64) Row {
	row.Latitude = &lat
	row.Longitude = &lon
	return row
}

// withRingMean averages every vertex in flat, including a repeated closing
// vertex. An empty ring leaves the coordinates nil.
func withRingMean(row Row, flat []float64, stride int) Row {
	if stride < 2 || len(flat) < stride {
		return row
	}
	var sumLon, sumLat, count float64
	for i := 0; i+1 < len(flat); i += stride {
		sumLon += flat[i]
		sumLat += flat[i+1]
		count++
	}
	return withPoint(row, sumLon/count, sumLat/count)
}

// Load reads a geometry source, choosing the decoder by file extension:
// ".shp" is read as an ESRI shapefile, anything else as GeoJSON.
func Load(path string) ([]Row, error) {
	if strings.EqualFold(filepath.Ext(path), ".shp") {
		return LoadShapefile(path)
	}
	return LoadGeoJSON(path)
}
