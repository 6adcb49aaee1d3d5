package output

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/dmv-price-tracker/internal/dataset"
)

func sampleTable(t *testing.T) *dataset.Table {
	t.Helper()
	tbl := dataset.NewTable(
		dataset.Column{Name: "id", Kind: dataset.KindString},
		dataset.Column{Name: "latitude", Kind: dataset.KindFloat},
		dataset.Column{Name: "longitude", Kind: dataset.KindFloat},
		dataset.Column{Name: "price", Kind: dataset.KindFloat},
		dataset.Column{Name: "geometry_type", Kind: dataset.KindString},
	)
	require.NoError(t, tbl.Append("a", 38.9, -77.01, 650000.0, nil))
	require.NoError(t, tbl.Append(nil, 38.5, -76.5, nil, "Polygon"))
	return tbl
}

func TestEncode_JSON(t *testing.T) {
	data, err := Encode(sampleTable(t), FormatJSON)
	require.NoError(t, err)
	assert.Equal(t,
		`[{"id":"a","latitude":38.9,"longitude":-77.01,"price":650000,"geometry_type":null},`+
			`{"id":null,"latitude":38.5,"longitude":-76.5,"price":null,"geometry_type":"Polygon"}]`+"\n",
		string(data))
}

func TestEncode_NDJSON(t *testing.T) {
	data, err := Encode(sampleTable(t), FormatNDJSON)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSuffix(string(data), "\n"), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, `{"id":"a","latitude":38.9,"longitude":-77.01,"price":650000,"geometry_type":null}`, lines[0])
}

func TestEncode_Empty(t *testing.T) {
	data, err := Encode(dataset.NewTable(), FormatJSON)
	require.NoError(t, err)
	assert.Equal(t, "[]\n", string(data))

	data, err = Encode(nil, FormatNDJSON)
	require.NoError(t, err)
	assert.Empty(t, data)
}

func TestEncode_UnknownFormat(t *testing.T) {
	_, err := Encode(sampleTable(t), "csv")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown format")
}

func TestWrite_CreatesDirectoryAndOverwrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "output", "aggregated_data.json")

	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("stale"), 0o644))

	require.NoError(t, Write(path, sampleTable(t), FormatJSON))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), `[{"id":"a"`))

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp file must not be left behind")
}

func TestWrite_Deterministic(t *testing.T) {
	dir := t.TempDir()
	a, b := filepath.Join(dir, "a.json"), filepath.Join(dir, "b.json")
	require.NoError(t, Write(a, sampleTable(t), FormatJSON))
	require.NoError(t, Write(b, sampleTable(t), FormatJSON))

	da, err := os.ReadFile(a)
	require.NoError(t, err)
	db, err := os.ReadFile(b)
	require.NoError(t, err)
	assert.Equal(t, da, db)
}

func TestWrite_FailureLeavesPriorArtifact(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.json")
	require.NoError(t, os.WriteFile(path, []byte("prior"), 0o644))

	bad := dataset.NewTable(dataset.Column{Name: "a", Kind: dataset.KindString})
	bad.Rows = [][]any{{"x", "extra"}}
	require.Error(t, Write(path, bad, FormatJSON))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "prior", string(data))
}

func TestWrite_UnwritableDirectory(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(blocker, nil, 0o644))

	err := Write(filepath.Join(blocker, "out.json"), sampleTable(t), FormatJSON)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "output:")
}

func TestRead_RoundTripBothFormats(t *testing.T) {
	for _, format := range []string{FormatJSON, FormatNDJSON} {
		t.Run(format, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "out."+format)
			want := sampleTable(t)
			require.NoError(t, Write(path, want, format))

			got, err := Read(path)
			require.NoError(t, err)
			assert.Equal(t, want.ColumnNames(), got.ColumnNames())
			assert.Equal(t, want.Rows, got.Rows)
			assert.Equal(t, dataset.KindFloat, got.Columns[1].Kind)
			assert.Equal(t, dataset.KindString, got.Columns[4].Kind)
		})
	}
}

func TestDecode_VaryingKeys(t *testing.T) {
	got, err := Decode(strings.NewReader("{\"a\":1}\n{\"b\":\"x\",\"a\":2}\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, got.ColumnNames())
	assert.Equal(t, [][]any{{1.0, nil}, {2.0, "x"}}, got.Rows)
}

func TestDecode_Errors(t *testing.T) {
	_, err := Decode(strings.NewReader(`[{"a":{"nested":true}}]`))
	require.Error(t, err)

	_, err = Decode(strings.NewReader(`[{"a":1},{"a":"x"}]`))
	require.Error(t, err)
	assert.True(t, errors.Is(err, dataset.ErrSchemaMismatch))

	_, err = Decode(strings.NewReader(`[1]`))
	require.Error(t, err)

	got, err := Decode(strings.NewReader("  "))
	require.NoError(t, err)
	assert.Equal(t, 0, got.Len())
}

func TestRead_Missing(t *testing.T) {
	_, err := Read(filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "output: open")
}

func TestPostgresSink_Write(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS "listings_combined" \("id" TEXT, "latitude" DOUBLE PRECISION, "longitude" DOUBLE PRECISION, "price" DOUBLE PRECISION, "geometry_type" TEXT\)`).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectExec(`TRUNCATE "listings_combined"`).WillReturnResult(pgxmock.NewResult("TRUNCATE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"listings_combined"}, []string{"id", "latitude", "longitude", "price", "geometry_type"}).
		WillReturnResult(2)
	mock.ExpectCommit()

	sink := NewPostgresSink(mock, "")
	n, err := sink.Write(context.Background(), sampleTable(t))
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresSink_Error(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin().WillReturnError(errors.New("no route to host"))

	_, err = NewPostgresSink(mock, "tracker.listings").Write(context.Background(), sampleTable(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "postgres sink")
	assert.NoError(t, mock.ExpectationsWereMet())
}
