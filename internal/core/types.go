package core

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
)

// DBTX is the interface for database operations used by the loaders.
// Satisfied by pgx.Tx, *pgx.Conn and *pgxpool.Pool.
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
	CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error)
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

// DB is the destination store handle owned by the orchestrator.
// Satisfied by *pgxpool.Pool and *pgx.Conn.
type DB interface {
	DBTX
	Begin(ctx context.Context) (pgx.Tx, error)
}

// FieldType represents the storage type of a destination column.
type FieldType int

const (
	FieldText FieldType = iota
	FieldInteger
	FieldNumeric
	FieldBool
	FieldDate
	FieldTimestamp
)

func (f FieldType) String() string {
	switch f {
	case FieldInteger:
		return "integer"
	case FieldNumeric:
		return "numeric"
	case FieldBool:
		return "bool"
	case FieldDate:
		return "date"
	case FieldTimestamp:
		return "timestamp"
	default:
		return "text"
	}
}

// FieldSpec defines a column a source must provide.
type FieldSpec struct {
	Name     string    // Header name, matched case-insensitively
	Type     FieldType // Expected data type
	Required bool      // Column must exist in the source header
}

// HeaderIndex maps column names (lowercase) to their position in a source row.
type HeaderIndex map[string]int

// Column is one destination table column as reported by the catalog.
type Column struct {
	Name    string    // Column name as stored in the catalog
	PgType  string    // format_type() output, e.g. "character varying(64)"
	Type    FieldType // Mapped conversion type
	NotNull bool      // Blank cells are rejected before COPY
}

// Shipment is one row of the shipment source.
type Shipment struct {
	ShipmentID  string
	Origin      string
	Destination string
}

// ProductLine is one row of the product-line source.
// A blank quantity cell is carried as an invalid NullDecimal and stored as NULL.
type ProductLine struct {
	ShipmentID string
	Product    string
	Quantity   decimal.NullDecimal
}

// JoinedRow is one row of the inner join of shipments and product lines.
type JoinedRow struct {
	Shipment      Shipment
	Line          ProductLine
	ShipmentIndex int // Position of Shipment in the shipment source
}

// ShipmentGroup holds every joined row for one shipment identifier together
// with the origin/destination chosen for the whole group.
type ShipmentGroup struct {
	ShipmentID  string
	Rows        []JoinedRow
	Origin      string
	Destination string
}

// ExpandedRow is one destination row of the expanded table.
type ExpandedRow struct {
	ShipmentID  string
	Origin      string
	Destination string
	Product     string
	Quantity    decimal.NullDecimal
}

// StageResult reports what one loader wrote.
type StageResult struct {
	Stage      string // "direct" or "expand"
	Table      string // Destination table
	SourceRows int    // Rows read from the source(s)
	Inserted   int64  // Rows written
	Groups     int    // Shipment groups (expand stage only)
	Duration   time.Duration
}

// RunResult is the outcome of one committed import run.
type RunResult struct {
	RunID    uuid.UUID
	Direct   StageResult
	Expand   StageResult
	Duration time.Duration
}

// Sources names the three input files of a run.
type Sources struct {
	Direct    string // Appended verbatim
	Products  string // shipment_identifier, product, quantity
	Shipments string // shipment_identifier, origin, destination
}
