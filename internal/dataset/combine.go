package dataset

import (
	"github.com/rotisserie/eris"

	"github.com/sells-group/dmv-price-tracker/internal/geometry"
	"github.com/sells-group/dmv-price-tracker/internal/listing"
)

// Output column names.
const (
	ColID           = "id"
	ColAddress      = "address"
	ColLatitude     = "latitude"
	ColLongitude    = "longitude"
	ColPrice        = "price"
	ColBedrooms     = "bedrooms"
	ColBathrooms    = "bathrooms"
	ColPropertyType = "property_type"
	ColStatus       = "status"
	ColZipCode      = "zip_code"
	ColGeometryType = "geometry_type"
)

// ListingColumns is the fixed listing projection, in output order.
var ListingColumns = []Column{
	{Name: ColID, Kind: KindString},
	{Name: ColAddress, Kind: KindString},
	{Name: ColLatitude, Kind: KindFloat},
	{Name: ColLongitude, Kind: KindFloat},
	{Name: ColPrice, Kind: KindFloat},
	{Name: ColBedrooms, Kind: KindFloat},
	{Name: ColBathrooms, Kind: KindFloat},
	{Name: ColPropertyType, Kind: KindString},
	{Name: ColStatus, Kind: KindString},
	{Name: ColZipCode, Kind: KindString},
}

// GeometryColumns is the schema of a normalized geometry set.
var GeometryColumns = []Column{
	{Name: ColGeometryType, Kind: KindString},
	{Name: ColLatitude, Kind: KindFloat},
	{Name: ColLongitude, Kind: KindFloat},
}

// ProjectListings projects records onto ListingColumns. Rows with a null
// coordinate are dropped. Listing coordinates are never null, since an
// absent coordinate carries 0.0, so sentinel rows are kept.
func ProjectListings(records []listing.Record) *Table {
	t := NewTable(ListingColumns...)
	t.Rows = make([][]any, 0, len(records))
	for _, r := range records {
		t.Rows = append(t.Rows, []any{
			r.ID,
			r.Address,
			r.Lat(),
			r.Lon(),
			floatCell(r.Price),
			floatCell(r.Bedrooms),
			floatCell(r.Bathrooms),
			stringCell(r.PropertyType),
			stringCell(r.Status),
			stringCell(r.ZipCode),
		})
	}
	return dropNullCoordinates(t)
}

// FromGeometry converts normalized geometry rows to a table, one row per
// input row in order.
func FromGeometry(rows []geometry.Row) *Table {
	t := NewTable(GeometryColumns...)
	t.Rows = make([][]any, 0, len(rows))
	for _, r := range rows {
		t.Rows = append(t.Rows, []any{
			stringCell(r.GeometryType),
			floatCell(r.Latitude),
			floatCell(r.Longitude),
		})
	}
	return t
}

// Combine unions the listing projection with each geometry set, listings
// first and geometry sets in the order given. Geometry rows with a null
// coordinate are dropped before the union so every output row is placed on
// the map. With no geometry sets the listing table is returned as is.
func Combine(listings *Table, geoms ...*Table) (*Table, error) {
	if listings == nil {
		listings = NewTable(ListingColumns...)
	}
	if len(geoms) == 0 {
		return listings, nil
	}

	parts := make([]*Table, 0, len(geoms)+1)
	parts = append(parts, listings)
	for _, g := range geoms {
		parts = append(parts, dropNullCoordinates(g))
	}

	out, err := Union(parts...)
	if err != nil {
		return nil, eris.Wrap(err, "dataset: combine")
	}
	return out, nil
}

// dropNullCoordinates returns t without rows whose latitude or longitude
// cell is nil. Tables without coordinate columns are returned unchanged.
func dropNullCoordinates(t *Table) *Table {
	if t == nil {
		return nil
	}
	lat, lon := t.ColumnIndex(ColLatitude), t.ColumnIndex(ColLongitude)
	if lat < 0 || lon < 0 {
		return t
	}

	out := &Table{Columns: t.Columns, Rows: make([][]any, 0, len(t.Rows))}
	for _, r := range t.Rows {
		if r[lat] == nil || r[lon] == nil {
			continue
		}
		out.Rows = append(out.Rows, r)
	}
	return out
}

func floatCell(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}

func stringCell(v *string) any {
	if v == nil {
		return nil
	}
	return *v
}
