package output

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/dmv-price-tracker/internal/dataset"
	"github.com/sells-group/dmv-price-tracker/internal/db"
)

// DefaultTable is the sink table used when none is configured.
const DefaultTable = "listings_combined"

// PostgresSink mirrors the combined dataset into a Postgres table.
type PostgresSink struct {
	pool  db.Pool
	table string
}

// NewPostgresSink returns a sink writing to table through pool.
func NewPostgresSink(pool db.Pool, table string) *PostgresSink {
	if table == "" {
		table = DefaultTable
	}
	return &PostgresSink{pool: pool, table: table}
}

// Write replaces the sink table's contents with t.
func (s *PostgresSink) Write(ctx context.Context, t *dataset.Table) (int64, error) {
	cfg := db.ReplaceConfig{Table: s.table, Columns: make([]db.ColumnDef, len(t.Columns))}
	for i, c := range t.Columns {
		cfg.Columns[i] = db.ColumnDef{Name: c.Name, Type: sqlType(c.Kind)}
	}

	n, err := db.ReplaceTable(ctx, s.pool, cfg, t.Rows)
	if err != nil {
		return 0, eris.Wrap(err, "output: postgres sink")
	}
	return n, nil
}

func sqlType(k dataset.Kind) string {
	if k == dataset.KindFloat {
		return "DOUBLE PRECISION"
	}
	return "TEXT"
}
