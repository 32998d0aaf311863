// Package core provides the business logic for the shipment import run.
//
// This package holds all domain logic independent of the CLI. It can be
// driven by cmd/populate or by tests without modification.
//
// # Architecture
//
// A run loads three tabular sources into two pre-provisioned tables:
//
//   - Direct load: the direct source is appended verbatim. The destination
//     table is introspected and every source header must name one of its
//     columns. Rows are written with COPY.
//   - Join-and-expand load: product lines are inner-joined with shipments on
//     shipment_identifier, grouped per shipment, given one representative
//     origin/destination (see [Policy]) and written one row per
//     (shipment, product) with pipelined batches.
//   - Service: [Service.Run] reads all sources first, then performs both
//     loads in a single transaction. Any failure rolls back both tables.
//
// The join-and-expand steps are exposed as pure functions ([Join],
// [GroupByShipment], [SelectRepresentative], [Expand]) so they can be tested
// without a database.
//
// # Error Handling
//
// Failures are tagged with one of the sentinels in errors.go and mapped to a
// process exit code by [ExitCodeForError]. [MapError] turns any error into a
// short operator message with a support code:
//
//   - SRC001-SRC003: source files (missing, unsupported, no header)
//   - SCH001: schema mismatch
//   - VAL001-VAL002: invalid cells, representative conflicts
//   - DB001-DB006: constraints, connection, timeouts
//
// Nothing is retried; a failed run leaves both tables as they were.
package core
