package geometry

import (
	"encoding/json"
	"io"
	"os"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom/encoding/geojson"
)

// LoadGeoJSON reads a FeatureCollection file and returns one Row per feature.
func LoadGeoJSON(path string) ([]Row, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "geometry: open %s", path)
	}
	defer f.Close() //nolint:errcheck

	rows, err := DecodeGeoJSON(f)
	if err != nil {
		return nil, eris.Wrapf(err, "geometry: load %s", path)
	}
	return rows, nil
}

// DecodeGeoJSON parses a FeatureCollection document from r.
func DecodeGeoJSON(r io.Reader) ([]Row, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, eris.Wrap(err, "geometry: read geojson")
	}

	var header struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &header); err != nil {
		return nil, eris.Wrap(err, "geometry: parse geojson")
	}
	if header.Type != "FeatureCollection" {
		return nil, eris.Errorf("geometry: expected FeatureCollection, got %q", header.Type)
	}

	var fc geojson.FeatureCollection
	if err := json.Unmarshal(data, &fc); err != nil {
		return nil, eris.Wrap(err, "geometry: parse feature collection")
	}

	rows := make([]Row, len(fc.Features))
	for i, feat := range fc.Features {
		if feat == nil {
			continue
		}
		rows[i] = Reduce(feat.Geometry)
	}
	return rows, nil
}
