package core

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/JonMunkholm/shipimport/internal/sheet"
	"github.com/jackc/pgx/v5"
)

// DirectLoader appends every row of a source into a table whose columns the
// source header names.
type DirectLoader struct {
	Table string
}

// Load copies src into l.Table and reports how many rows were written.
// Nothing is written if any cell fails conversion.
func (l *DirectLoader) Load(ctx context.Context, db DBTX, src *sheet.Table) (StageResult, error) {
	start := time.Now()
	result := StageResult{Stage: "direct", Table: l.Table, SourceRows: src.Len()}

	cols, err := describeTable(ctx, db, l.Table)
	if err != nil {
		return result, err
	}

	aligned, err := alignColumns(src.Name, src.Header, cols)
	if err != nil {
		return result, err
	}

	rows, err := convertRows(src, aligned)
	if err != nil {
		return result, err
	}

	if len(rows) > 0 {
		names := make([]string, len(aligned))
		for i, c := range aligned {
			names[i] = c.Name
		}

		n, err := db.CopyFrom(ctx, tableIdentifier(l.Table), names, pgx.CopyFromRows(rows))
		if err != nil {
			return result, classifyDBError("copy into "+l.Table, err)
		}
		result.Inserted = n
	}

	result.Duration = time.Since(start)
	slog.Debug("direct load finished",
		"table", l.Table,
		"rows", result.Inserted,
		"duration_ms", result.Duration.Milliseconds(),
	)
	return result, nil
}

// convertRows turns every data row into values typed for its column.
// A blank cell in a NOT NULL column is rejected here rather than by COPY so
// the error names the row.
func convertRows(src *sheet.Table, cols []Column) ([][]any, error) {
	out := make([][]any, 0, src.Len())
	for i, row := range src.Rows {
		vals := make([]any, len(cols))
		for j, c := range cols {
			var raw string
			if j < len(row) {
				raw = row[j]
			}
			v, err := cellValue(raw, c.Type)
			if err != nil {
				return nil, fmt.Errorf("%s row %d column %q: %w", src.Name, i+1, c.Name, err)
			}
			if v == nil && c.NotNull {
				return nil, fmt.Errorf("%s row %d column %q: %w: blank cell in NOT NULL column",
					src.Name, i+1, c.Name, ErrInvalidCell)
			}
			vals[j] = v
		}
		out = append(out, vals)
	}
	return out, nil
}
