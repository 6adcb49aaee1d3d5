package main

import (
	"os"
	"sync"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/dmv-price-tracker/internal/dataset"
	"github.com/sells-group/dmv-price-tracker/internal/output"
	"github.com/sells-group/dmv-price-tracker/internal/spatial"
)

// artifact loads the combined dataset from disk and rebuilds the spatial
// index whenever the file changes.
type artifact struct {
	path string

	mu      sync.RWMutex
	modTime time.Time
	table   *dataset.Table
	index   *spatial.Index
}

func newArtifact(path string) *artifact {
	return &artifact{path: path}
}

func (a *artifact) load() (*dataset.Table, *spatial.Index, error) {
	info, err := os.Stat(a.path)
	if err != nil {
		return nil, nil, eris.Wrapf(err, "artifact: stat %s", a.path)
	}

	a.mu.RLock()
	if a.table != nil && info.ModTime().Equal(a.modTime) {
		t, idx := a.table, a.index
		a.mu.RUnlock()
		return t, idx, nil
	}
	a.mu.RUnlock()

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.table != nil && info.ModTime().Equal(a.modTime) {
		return a.table, a.index, nil
	}

	t, err := output.Read(a.path)
	if err != nil {
		return nil, nil, err
	}
	a.table, a.index, a.modTime = t, spatial.FromTable(t), info.ModTime()
	return a.table, a.index, nil
}

// selectRows copies the rows named by hits into a new table, in hit order.
// When withDistance is set a trailing distance column is added.
func selectRows(t *dataset.Table, hits []spatial.Entry, withDistance bool) *dataset.Table {
	cols := append([]dataset.Column(nil), t.Columns...)
	if withDistance {
		cols = append(cols, dataset.Column{Name: "distance", Kind: dataset.KindFloat})
	}

	out := dataset.NewTable(cols...)
	out.Rows = make([][]any, 0, len(hits))
	for _, h := range hits {
		row := append([]any(nil), t.Rows[h.Ref]...)
		if withDistance {
			row = append(row, h.Distance)
		}
		out.Rows = append(out.Rows, row)
	}
	return out
}
