// Package listing models RentCast property listings and normalizes raw API
// objects into strict records with explicit null semantics.
package listing

import (
	"encoding/json"
	"io"

	"github.com/rotisserie/eris"
)

// RawListing is one listing object as returned by the RentCast API. Every
// field is optional; pointers distinguish "absent" from a zero value.
type RawListing struct {
	ID               *string  `json:"id,omitempty"`
	Address          *string  `json:"address,omitempty"`
	FormattedAddress *string  `json:"formattedAddress,omitempty"`
	Latitude         *float64 `json:"latitude,omitempty"`
	Longitude        *float64 `json:"longitude,omitempty"`
	Price            *float64 `json:"price,omitempty"`
	Bedrooms         *float64 `json:"bedrooms,omitempty"`
	Bathrooms        *float64 `json:"bathrooms,omitempty"`
	SquareFootage    *float64 `json:"squareFootage,omitempty"`
	PropertyType     *string  `json:"propertyType,omitempty"`
	Status           *string  `json:"status,omitempty"`
	ZipCode          *string  `json:"zipCode,omitempty"`
}

// CoordState records where a coordinate value came from.
type CoordState int

const (
	// CoordAbsent means the source omitted the field; the value is 0.0.
	CoordAbsent CoordState = iota
	// CoordSentinel means the source sent an explicit 0.0.
	CoordSentinel
	// CoordPresent means the source sent a non-zero reading.
	CoordPresent
)

// String returns the state name used in logs.
func (s CoordState) String() string {
	switch s {
	case CoordAbsent:
		return "absent"
	case CoordSentinel:
		return "sentinel"
	case CoordPresent:
		return "present"
	default:
		return "unknown"
	}
}

// Coordinate is a required coordinate that keeps the legacy 0.0 default
// while recording whether that 0.0 was sent or defaulted.
type Coordinate struct {
	value float64
	state CoordState
}

// NewCoordinate builds a Coordinate from an optional source value.
func NewCoordinate(v *float64) Coordinate {
	switch {
	case v == nil:
		return Coordinate{state: CoordAbsent}
	case *v == 0:
		return Coordinate{state: CoordSentinel}
	default:
		return Coordinate{value: *v, state: CoordPresent}
	}
}

// Value returns the coordinate as the downstream float (0.0 unless present).
func (c Coordinate) Value() float64 { return c.value }

// State returns where the value came from.
func (c Coordinate) State() CoordState { return c.state }

// Record is one normalized listing. Records are immutable after Normalize.
type Record struct {
	ID            string
	Address       string
	Latitude      Coordinate
	Longitude     Coordinate
	Price         *float64
	Bedrooms      *float64
	Bathrooms     *float64
	SquareFootage *float64
	PropertyType  *string
	Status        *string
	ZipCode       *string
}

// Lat returns the latitude as written downstream.
func (r Record) Lat() float64 { return r.Latitude.Value() }

// Lon returns the longitude as written downstream.
func (r Record) Lon() float64 { return r.Longitude.Value() }

// IsSentinel reports whether either coordinate equals 0.0. Such records are
// kept in the combined dataset but excluded from the spatial index.
func (r Record) IsSentinel() bool {
	return r.Lat() == 0 || r.Lon() == 0
}

// Normalize converts raw listings into records, one per input, in order.
func Normalize(raw []RawListing) []Record {
	out := make([]Record, len(raw))
	for i, r := range raw {
		out[i] = normalizeOne(r)
	}
	return out
}

func normalizeOne(r RawListing) Record {
	address := deref(r.Address)
	if r.Address == nil {
		address = deref(r.FormattedAddress)
	}
	return Record{
		ID:            deref(r.ID),
		Address:       address,
		Latitude:      NewCoordinate(r.Latitude),
		Longitude:     NewCoordinate(r.Longitude),
		Price:         r.Price,
		Bedrooms:      r.Bedrooms,
		Bathrooms:     r.Bathrooms,
		SquareFootage: r.SquareFootage,
		PropertyType:  r.PropertyType,
		Status:        r.Status,
		ZipCode:       r.ZipCode,
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// Decode reads a JSON array of raw listings. Any structural error fails the
// whole batch.
func Decode(r io.Reader) ([]RawListing, error) {
	var raw []RawListing
	dec := json.NewDecoder(r)
	if err := dec.Decode(&raw); err != nil {
		return nil, eris.Wrap(err, "listing: decode batch")
	}
	if raw == nil {
		raw = []RawListing{}
	}
	return raw, nil
}

// CoordStats counts records per latitude/longitude state.
type CoordStats struct {
	Present  int
	Sentinel int
	Absent   int
}

// Stats tallies the weakest coordinate state of each record, so a record
// with one absent and one present coordinate counts as absent.
func Stats(records []Record) CoordStats {
	var s CoordStats
	for _, r := range records {
		state := min(r.Latitude.State(), r.Longitude.State())
		switch state {
		case CoordPresent:
			s.Present++
		case CoordSentinel:
			s.Sentinel++
		default:
			s.Absent++
		}
	}
	return s
}
