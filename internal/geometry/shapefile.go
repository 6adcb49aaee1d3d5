package geometry

import (
	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// LoadShapefile reads an ESRI shapefile and returns one Row per record.
// Shapefile polygons are reduced through their first part, which is the
// outer ring of the first polygon.
func LoadShapefile(path string) ([]Row, error) {
	reader, err := shp.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "geometry: open shapefile %s", path)
	}
	defer func() { _ = reader.Close() }()

	var rows []Row
	for reader.Next() {
		_, shape := reader.Shape()
		rows = append(rows, ReduceShape(shape))
	}
	if err := reader.Err(); err != nil {
		return nil, eris.Wrapf(err, "geometry: read shapefile %s", path)
	}

	zap.L().Debug("geometry: loaded shapefile",
		zap.String("path", path),
		zap.Int("records", len(rows)),
	)
	return rows, nil
}

// ReduceShape maps a go-shp shape to a Row with the same rules as Reduce.
func ReduceShape(shape shp.Shape) Row {
	switch s := shape.(type) {
	case nil, *shp.Null:
		return Row{}
	case *shp.Point:
		return withPoint(tagged(TypePoint), s.X, s.Y)
	case *shp.PointZ:
		return withPoint(tagged(TypePoint), s.X, s.Y)
	case *shp.PointM:
		return withPoint(tagged(TypePoint), s.X, s.Y)
	case *shp.Polygon:
		return firstPartMean(tagged(TypePolygon), s.Parts, s.Points)
	case *shp.PolygonZ:
		return firstPartMean(tagged(TypePolygon), s.Parts, s.Points)
	case *shp.PolygonM:
		return firstPartMean(tagged(TypePolygon), s.Parts, s.Points)
	case *shp.PolyLine, *shp.PolyLineZ, *shp.PolyLineM:
		return tagged(TypeLineString)
	case *shp.MultiPoint, *shp.MultiPointZ, *shp.MultiPointM:
		return tagged(TypeMultiPoint)
	default:
		return tagged("Unknown")
	}
}

func tagged(tag string) Row {
	return Row{GeometryType: &tag}
}

// firstPartMean averages the vertices of the first part of a multi-part shape.
func firstPartMean(row Row, parts []int32, points []shp.Point) Row {
	if len(parts) == 0 || len(points) == 0 {
		return row
	}
	start := int(parts[0])
	end := len(points)
	if len(parts) > 1 {
		end = int(parts[1])
	}
	if start < 0 || start >= end || end > len(points) {
		return row
	}

	flat := make([]float64, 0, (end-start)*2)
	for _, p := range points[start:end] {
		flat = append(flat, p.X, p.Y)
	}
	return withRingMean(row, flat, 2)
}
