// Package spatial holds the in-memory R-tree over listing coordinates.
package spatial

import (
	"math"
	"sort"

	"github.com/dhconnelly/rtreego"

	"github.com/sells-group/dmv-price-tracker/internal/listing"
)

const (
	dims        = 2
	minChildren = 8
	maxChildren = 32

	// pointTolerance gives each indexed point a non-degenerate box.
	pointTolerance = 1e-9
)

// Point is one indexed coordinate. Ref is the position of the point in the
// sequence it was built from.
type Point struct {
	Lon float64 `json:"lon"`
	Lat float64 `json:"lat"`
	Ref int     `json:"ref"`
}

// Bounds implements rtreego.Spatial.
func (p Point) Bounds() rtreego.Rect {
	return rtreego.Point{p.Lon, p.Lat}.ToRect(pointTolerance)
}

// Entry is a query hit.
type Entry struct {
	Point
	// Distance is the planar distance in degrees from the query point. It is
	// zero for bounding box queries.
	Distance float64 `json:"distance"`
}

// BBox is a lon/lat bounding box.
type BBox struct {
	MinLng float64 `json:"min_lng"`
	MinLat float64 `json:"min_lat"`
	MaxLng float64 `json:"max_lng"`
	MaxLat float64 `json:"max_lat"`
}

// Contains reports whether p lies inside the box, edges included.
func (b BBox) Contains(p Point) bool {
	return p.Lon >= b.MinLng && p.Lon <= b.MaxLng && p.Lat >= b.MinLat && p.Lat <= b.MaxLat
}

// Index is built once and is read-only afterwards, so concurrent queries
// need no locking.
type Index struct {
	tree *rtreego.Rtree
	size int
}

// Build bulk-loads an index over points.
func Build(points []Point) *Index {
	objs := make([]rtreego.Spatial, len(points))
	for i, p := range points {
		objs[i] = p
	}
	return &Index{
		tree: rtreego.NewTree(dims, minChildren, maxChildren, objs...),
		size: len(points),
	}
}

// FromListings indexes every record whose longitude and latitude are both
// non-zero. A zero on either axis is the missing-coordinate sentinel. Ref is
// the record's position in records.
func FromListings(records []listing.Record) *Index {
	points := make([]Point, 0, len(records))
	for i, rec := range records {
		if rec.IsSentinel() {
			continue
		}
		points = append(points, Point{Lon: rec.Lon(), Lat: rec.Lat(), Ref: i})
	}
	return Build(points)
}

// Size returns the number of indexed points.
func (x *Index) Size() int {
	if x == nil {
		return 0
	}
	return x.size
}

// Nearest returns up to k points closest to (lon, lat), nearest first. Ties
// are broken by Ref.
func (x *Index) Nearest(lon, lat float64, k int) []Entry {
	if x.Size() == 0 || k <= 0 {
		return nil
	}
	if k > x.size {
		k = x.size
	}

	hits := x.tree.NearestNeighbors(k, rtreego.Point{lon, lat})
	out := make([]Entry, 0, len(hits))
	for _, h := range hits {
		p, ok := h.(Point)
		if !ok {
			continue
		}
		out = append(out, Entry{Point: p, Distance: math.Hypot(p.Lon-lon, p.Lat-lat)})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Distance != out[j].Distance {
			return out[i].Distance < out[j].Distance
		}
		return out[i].Ref < out[j].Ref
	})
	return out
}

// Within returns every point inside box, ordered by Ref. An inverted box
// matches nothing.
func (x *Index) Within(box BBox) []Entry {
	if x.Size() == 0 || box.MinLng > box.MaxLng || box.MinLat > box.MaxLat {
		return nil
	}

	rect, err := rtreego.NewRectFromPoints(
		rtreego.Point{box.MinLng - pointTolerance, box.MinLat - pointTolerance},
		rtreego.Point{box.MaxLng + pointTolerance, box.MaxLat + pointTolerance},
	)
	if err != nil {
		return nil
	}

	hits := x.tree.SearchIntersect(rect)
	out := make([]Entry, 0, len(hits))
	for _, h := range hits {
		p, ok := h.(Point)
		if !ok || !box.Contains(p) {
			continue
		}
		out = append(out, Entry{Point: p})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Ref < out[j].Ref })
	return out
}
