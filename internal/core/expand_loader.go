package core

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/JonMunkholm/shipimport/internal/sheet"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

// DefaultBatchSize is used when ExpandLoader.BatchSize is not positive.
const DefaultBatchSize = 1000

// ExpandLoader joins product lines with shipments and writes one row per
// (shipment, product) pair.
type ExpandLoader struct {
	Table     string
	BatchSize int
	Policy    Policy
}

// Load parses, joins, groups and expands the two sources, then inserts the
// expanded rows in batches.
func (l *ExpandLoader) Load(ctx context.Context, db DBTX, shipments, lines *sheet.Table) (StageResult, error) {
	start := time.Now()
	result := StageResult{
		Stage:      "expand",
		Table:      l.Table,
		SourceRows: lines.Len(),
	}

	ships, err := ParseShipments(shipments)
	if err != nil {
		return result, err
	}
	products, err := ParseProductLines(lines)
	if err != nil {
		return result, err
	}

	joined := Join(ships, products)
	groups := GroupByShipment(joined)
	result.Groups = len(groups)

	rows, err := Expand(groups, l.Policy)
	if err != nil {
		return result, err
	}

	slog.Debug("expanded shipments",
		"shipments", len(ships),
		"product_lines", len(products),
		"joined", len(joined),
		"groups", len(groups),
	)

	n, err := l.insert(ctx, db, rows)
	result.Inserted = n
	if err != nil {
		return result, err
	}

	result.Duration = time.Since(start)
	return result, nil
}

func (l *ExpandLoader) insertSQL() string {
	return "INSERT INTO " + tableIdentifier(l.Table).Sanitize() +
		" (shipment_identifier, origin, destination, product, quantity) VALUES ($1, $2, $3, $4, $5)"
}

// insert queues rows into pipelined batches and checks every result.
// The first failing row aborts the stage.
func (l *ExpandLoader) insert(ctx context.Context, db DBTX, rows []ExpandedRow) (int64, error) {
	size := l.BatchSize
	if size <= 0 {
		size = DefaultBatchSize
	}
	sql := l.insertSQL()

	var inserted int64
	for start := 0; start < len(rows); start += size {
		if err := ctx.Err(); err != nil {
			return inserted, err
		}

		end := min(start+size, len(rows))
		batch := &pgx.Batch{}
		for _, r := range rows[start:end] {
			batch.Queue(sql, nullText(r.ShipmentID), nullText(r.Origin), nullText(r.Destination),
				nullText(r.Product), quantityValue(r))
		}

		br := db.SendBatch(ctx, batch)
		for i := start; i < end; i++ {
			if _, err := br.Exec(); err != nil {
				br.Close()
				op := fmt.Sprintf("insert into %s row %d (shipment %q)", l.Table, i+1, rows[i].ShipmentID)
				return inserted, classifyDBError(op, err)
			}
			inserted++
		}
		if err := br.Close(); err != nil {
			return inserted, classifyDBError("insert into "+l.Table, err)
		}

		slog.Debug("expanded batch inserted", "table", l.Table, "rows", inserted, "total", len(rows))
	}
	return inserted, nil
}

// nullText stores an empty cell as NULL and anything else verbatim.
func nullText(s string) pgtype.Text {
	if s == "" {
		return pgtype.Text{}
	}
	return pgtype.Text{String: s, Valid: true}
}

func quantityValue(r ExpandedRow) pgtype.Numeric {
	if !r.Quantity.Valid {
		return pgtype.Numeric{}
	}
	return DecimalToPg(r.Quantity.Decimal)
}
