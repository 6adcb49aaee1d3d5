package spatial

import "github.com/sells-group/dmv-price-tracker/internal/dataset"

// FromTable indexes the rows of a combined dataset that carry non-zero
// latitude and longitude. Ref is the row position in t.
func FromTable(t *dataset.Table) *Index {
	if t == nil {
		return Build(nil)
	}
	lat, lon := t.ColumnIndex(dataset.ColLatitude), t.ColumnIndex(dataset.ColLongitude)
	if lat < 0 || lon < 0 {
		return Build(nil)
	}

	points := make([]Point, 0, t.Len())
	for i := range t.Rows {
		la, okLat := t.Float(i, lat)
		lo, okLon := t.Float(i, lon)
		if !okLat || !okLon || la == 0 || lo == 0 {
			continue
		}
		points = append(points, Point{Lon: lo, Lat: la, Ref: i})
	}
	return Build(points)
}
