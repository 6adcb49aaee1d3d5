// Package output writes the combined dataset artifact the viewer reads and
// loads it back for the serve and nearby commands.
package output

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/dmv-price-tracker/internal/dataset"
)

// Artifact formats.
const (
	FormatJSON   = "json"   // one JSON array of records
	FormatNDJSON = "ndjson" // one record per line
)

// Write serializes t to path in the given format. The parent directory is
// created if needed. Bytes go to a temp file in the same directory that is
// then renamed over path, so a failed write never leaves a partial artifact.
func Write(path string, t *dataset.Table, format string) error {
	data, err := Encode(t, format)
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return eris.Wrapf(err, "output: create directory %s", dir)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return eris.Wrapf(err, "output: create temp file in %s", dir)
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return eris.Wrapf(err, "output: write %s", tmpName)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return eris.Wrapf(err, "output: sync %s", tmpName)
	}
	if err := tmp.Close(); err != nil {
		return eris.Wrapf(err, "output: close %s", tmpName)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return eris.Wrapf(err, "output: chmod %s", tmpName)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return eris.Wrapf(err, "output: rename to %s", path)
	}
	committed = true

	zap.L().Info("output: artifact written",
		zap.String("path", path),
		zap.String("format", format),
		zap.Int("rows", t.Len()),
		zap.Int("bytes", len(data)),
	)
	return nil
}

// Encode renders t in the given format. Keys follow column order and null
// cells are written as null, so equal tables always encode to equal bytes.
func Encode(t *dataset.Table, format string) ([]byte, error) {
	if t == nil {
		t = &dataset.Table{}
	}

	keys := make([][]byte, len(t.Columns))
	for i, c := range t.Columns {
		k, err := json.Marshal(c.Name)
		if err != nil {
			return nil, eris.Wrapf(err, "output: encode column %q", c.Name)
		}
		keys[i] = k
	}

	var buf bytes.Buffer
	switch format {
	case FormatJSON, "":
		buf.WriteByte('[')
		for i, row := range t.Rows {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := encodeRow(&buf, keys, row); err != nil {
				return nil, eris.Wrapf(err, "output: encode row %d", i)
			}
		}
		buf.WriteString("]\n")
	case FormatNDJSON:
		for i, row := range t.Rows {
			if err := encodeRow(&buf, keys, row); err != nil {
				return nil, eris.Wrapf(err, "output: encode row %d", i)
			}
			buf.WriteByte('\n')
		}
	default:
		return nil, eris.Errorf("output: unknown format %q", format)
	}
	return buf.Bytes(), nil
}

func encodeRow(buf *bytes.Buffer, keys [][]byte, row []any) error {
	if len(row) != len(keys) {
		return eris.Errorf("row has %d cells, want %d", len(row), len(keys))
	}
	buf.WriteByte('{')
	for i, v := range row {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.Write(keys[i])
		buf.WriteByte(':')
		val, err := json.Marshal(v)
		if err != nil {
			return err
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return nil
}
