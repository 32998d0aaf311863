package core

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
)

// describeTableSQL lists the live columns of a relation in declaration order.
// to_regclass yields NULL for a missing relation, so a missing table returns
// no rows instead of an error.
const describeTableSQL = `SELECT a.attname, format_type(a.atttypid, a.atttypmod), a.attnotnull
FROM pg_catalog.pg_attribute a
WHERE a.attrelid = to_regclass($1::text)
  AND a.attnum > 0
  AND NOT a.attisdropped
ORDER BY a.attnum`

// tableIdentifier splits an optionally schema-qualified table name.
func tableIdentifier(name string) pgx.Identifier {
	return pgx.Identifier(strings.Split(name, "."))
}

// describeTable returns the columns of table, or ErrSchemaMismatch if the
// table does not exist.
func describeTable(ctx context.Context, db DBTX, table string) ([]Column, error) {
	rows, err := db.Query(ctx, describeTableSQL, tableIdentifier(table).Sanitize())
	if err != nil {
		return nil, classifyDBError("describe "+table, err)
	}

	cols, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Column, error) {
		var c Column
		err := row.Scan(&c.Name, &c.PgType, &c.NotNull)
		c.Type = fieldTypeForPg(c.PgType)
		return c, err
	})
	if err != nil {
		return nil, classifyDBError("describe "+table, err)
	}

	if len(cols) == 0 {
		return nil, fmt.Errorf("%w: table %s does not exist", ErrSchemaMismatch, table)
	}
	return cols, nil
}

// alignColumns maps each source header cell to a destination column.
// Matching is case-insensitive. Every header cell must name a distinct
// column; columns absent from the header keep their defaults.
func alignColumns(source string, header []string, cols []Column) ([]Column, error) {
	byName := make(map[string]Column, len(cols))
	for _, c := range cols {
		byName[strings.ToLower(c.Name)] = c
	}

	var (
		aligned = make([]Column, 0, len(header))
		seen    = make(map[string]bool, len(header))
		unknown []string
		dups    []string
	)
	for i, h := range header {
		key := strings.ToLower(CleanCell(h))
		if key == "" {
			unknown = append(unknown, fmt.Sprintf("(unnamed column %d)", i+1))
			continue
		}
		c, ok := byName[key]
		if !ok {
			unknown = append(unknown, fmt.Sprintf("%q", h))
			continue
		}
		if seen[key] {
			dups = append(dups, fmt.Sprintf("%q", h))
			continue
		}
		seen[key] = true
		aligned = append(aligned, c)
	}

	var problems []string
	if len(unknown) > 0 {
		problems = append(problems, "column not found in destination: "+strings.Join(unknown, ", "))
	}
	if len(dups) > 0 {
		problems = append(problems, "duplicate column: "+strings.Join(dups, ", "))
	}
	if len(problems) > 0 {
		return nil, fmt.Errorf("%w: %s: %s", ErrSchemaMismatch, source, strings.Join(problems, "; "))
	}
	return aligned, nil
}

// requireColumns resolves specs against a source header.
// Missing required columns are reported together as ErrSchemaMismatch.
func requireColumns(source string, header []string, specs []FieldSpec) (HeaderIndex, error) {
	idx := MakeHeaderIndex(header)

	var missing []string
	for _, spec := range specs {
		if _, ok := idx[strings.ToLower(spec.Name)]; !ok && spec.Required {
			missing = append(missing, spec.Name)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s: missing required column %s",
			ErrSchemaMismatch, source, strings.Join(missing, ", "))
	}
	return idx, nil
}

// RowCount returns the number of rows in table.
func RowCount(ctx context.Context, db DBTX, table string) (int64, error) {
	var n int64
	sql := "SELECT count(*) FROM " + tableIdentifier(table).Sanitize()
	if err := db.QueryRow(ctx, sql).Scan(&n); err != nil {
		return 0, classifyDBError("count "+table, err)
	}
	return n, nil
}
