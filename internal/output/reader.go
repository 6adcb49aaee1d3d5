package output

import (
	"bufio"
	"encoding/json"
	"io"
	"os"

	"github.com/rotisserie/eris"

	"github.com/sells-group/dmv-price-tracker/internal/dataset"
)

type field struct {
	key string
	val any
}

// Read loads an artifact written by Write. Both formats are accepted; the
// format is detected from the first non-space byte.
func Read(path string) (*dataset.Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "output: open %s", path)
	}
	defer f.Close() //nolint:errcheck

	t, err := Decode(f)
	if err != nil {
		return nil, eris.Wrapf(err, "output: read %s", path)
	}
	return t, nil
}

// Decode parses a JSON array of records or newline-delimited records into a
// table. Columns appear in first-seen key order; a column whose only values
// are null is typed as a string column.
func Decode(r io.Reader) (*dataset.Table, error) {
	br := bufio.NewReader(r)
	first, err := peekNonSpace(br)
	if err == io.EOF {
		return &dataset.Table{}, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "output: peek")
	}

	dec := json.NewDecoder(br)
	var records [][]field
	if first == '[' {
		if _, err := dec.Token(); err != nil {
			return nil, eris.Wrap(err, "output: open array")
		}
		for dec.More() {
			rec, err := decodeObject(dec)
			if err != nil {
				return nil, err
			}
			records = append(records, rec)
		}
		if _, err := dec.Token(); err != nil {
			return nil, eris.Wrap(err, "output: close array")
		}
	} else {
		for {
			rec, err := decodeObject(dec)
			if err == io.EOF {
				break
			}
			if err != nil {
				return nil, err
			}
			records = append(records, rec)
		}
	}
	return build(records)
}

func peekNonSpace(br *bufio.Reader) (byte, error) {
	for {
		b, err := br.ReadByte()
		if err != nil {
			return 0, err
		}
		switch b {
		case ' ', '\t', '\r', '\n':
			continue
		}
		return b, br.UnreadByte()
	}
}

func decodeObject(dec *json.Decoder) ([]field, error) {
	tok, err := dec.Token()
	if err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}
		return nil, eris.Wrap(err, "output: decode record")
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, eris.Errorf("output: expected object, got %v", tok)
	}

	var rec []field
	for dec.More() {
		kt, err := dec.Token()
		if err != nil {
			return nil, eris.Wrap(err, "output: decode key")
		}
		key, ok := kt.(string)
		if !ok {
			return nil, eris.Errorf("output: expected key, got %v", kt)
		}
		vt, err := dec.Token()
		if err != nil {
			return nil, eris.Wrapf(err, "output: decode value for %q", key)
		}
		switch v := vt.(type) {
		case nil, string, float64:
			rec = append(rec, field{key: key, val: v})
		default:
			return nil, eris.Errorf("output: unsupported value for %q: %v", key, vt)
		}
	}
	if _, err := dec.Token(); err != nil {
		return nil, eris.Wrap(err, "output: close record")
	}
	return rec, nil
}

func build(records [][]field) (*dataset.Table, error) {
	pos := make(map[string]int)
	var cols []dataset.Column
	typed := make(map[string]bool)

	for _, rec := range records {
		for _, f := range rec {
			i, seen := pos[f.key]
			if !seen {
				i = len(cols)
				pos[f.key] = i
				cols = append(cols, dataset.Column{Name: f.key, Kind: dataset.KindString})
			}
			var kind dataset.Kind
			switch f.val.(type) {
			case string:
				kind = dataset.KindString
			case float64:
				kind = dataset.KindFloat
			default:
				continue
			}
			if !typed[f.key] {
				cols[i].Kind = kind
				typed[f.key] = true
			} else if cols[i].Kind != kind {
				return nil, eris.Wrapf(dataset.ErrSchemaMismatch, "column %q mixes kinds", f.key)
			}
		}
	}

	t := &dataset.Table{Columns: cols, Rows: make([][]any, 0, len(records))}
	for _, rec := range records {
		row := make([]any, len(cols))
		for _, f := range rec {
			row[pos[f.key]] = f.val
		}
		t.Rows = append(t.Rows, row)
	}
	return t, nil
}
