package dashboard

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"

	"github.com/rulings-explorer/backend/internal/filter"
	"github.com/rulings-explorer/backend/internal/metrics"
)

// ExportFileName is the attachment name offered for downloads.
const ExportFileName = "sentencias_filtradas.csv"

// Export writes the filtered rows restricted to columns as CSV, headed by
// the source column names, and returns the number of data rows written.
func (e *Engine) Export(ctx context.Context, w io.Writer, state filter.State, columns []string) (int, error) {
	cols, err := e.ResolveColumns(columns)
	if err != nil {
		return 0, err
	}

	rows := e.Filtered(ctx, state)
	cw := csv.NewWriter(w)
	if err := cw.Write(cols); err != nil {
		return 0, fmt.Errorf("write header: %w", err)
	}
	if err := cw.WriteAll(e.ds.Project(rows, cols)); err != nil {
		return 0, fmt.Errorf("write rows: %w", err)
	}

	metrics.ExportsTotal.Inc()
	metrics.ExportedRows.Add(float64(len(rows)))
	return len(rows), nil
}
