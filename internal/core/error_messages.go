// Package core provides the business logic for the shipment import run.
//
// # Error Codes Reference
//
// This file maps import failures to short operator-facing messages with a
// code that can be quoted when reporting a failed run.
//
// Store errors are recognized by their SQLSTATE, source and timeout errors by
// identity, then the taxonomy sentinels apply. Error text is never matched, so
// cell data quoted in a message cannot change the reported cause.
//
// # Source Errors (SRC001-SRC099)
//
//	SRC001 - Source unreadable: A source file is missing or could not be read
//	         Action: Check the SOURCE_* paths and file permissions
//	         Sentinel: ErrIO
//
//	SRC002 - Unsupported format: Source is not a workbook or CSV file
//	         Action: Export the sheet as .xlsx or .csv
//	         Match: sheet.ErrUnsupportedFormat
//
//	SRC003 - No header: Source has no header row
//	         Action: Ensure the first non-blank row holds column names
//	         Match: sheet.ErrNoHeader
//
// # Schema Errors (SCH001-SCH099)
//
//	SCH001 - Schema mismatch: Columns do not match the destination table
//	         Action: Compare the sheet header with the table definition
//	         Sentinel: ErrSchemaMismatch
//
// # Validation Errors (VAL001-VAL099)
//
//	VAL001 - Invalid cell: A cell cannot be stored in its column
//	         Action: Fix the reported cell and run again
//	         Sentinel: ErrInvalidCell
//
//	VAL002 - Representative conflict: Shipment rows disagree on origin/destination
//	         Action: Fix the shipment sheet or choose IMPORT_REPRESENTATIVE_POLICY=first-wins
//	         Sentinel: ErrRepresentativeConflict
//
// # Database Errors (DB001-DB099)
//
//	DB001 - Duplicate key: A row with this key already exists
//	        Action: Rows already loaded by an earlier run; run reset first
//	        Match: SQLSTATE 23505
//
//	DB002 - Foreign key: Referenced record does not exist
//	        Match: SQLSTATE 23503
//
//	DB003 - Not null: A required column received an empty cell
//	        Match: SQLSTATE 23502
//
//	DB004 - Constraint: Destination table rejected a row
//	        Sentinel: ErrConstraintViolation
//
//	DB005 - Connection: Unable to connect to database
//	        Sentinel: ErrConnection
//
//	DB006 - Timeout: Operation timed out
//	        Match: context.DeadlineExceeded, pgconn.Timeout
//
// # Default Error (ERR000)
//
// Fallback when nothing matches; the log carries the technical error.
package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/JonMunkholm/shipimport/internal/sheet"
	"github.com/jackc/pgx/v5/pgconn"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string // What happened (user-friendly)
	Action  string // What to do about it
	Code    string // Error code for support reference
}

// errorRule pairs a matcher with its user message. Rules are tried in order.
type errorRule struct {
	match func(error) bool
	msg   UserMessage
}

type sentinelMessage struct {
	err error
	msg UserMessage
}

// pgCode matches a store error by SQLSTATE.
func pgCode(code string) func(error) bool {
	return func(err error) bool {
		var pgErr *pgconn.PgError
		return errors.As(err, &pgErr) && pgErr.Code == code
	}
}

func is(target error) func(error) bool {
	return func(err error) bool { return errors.Is(err, target) }
}

func isTimeout(err error) bool {
	return errors.Is(err, context.DeadlineExceeded) || pgconn.Timeout(err)
}

var timeoutMessage = UserMessage{
	Message: "Operation timed out",
	Action:  "Raise IMPORT_TIMEOUT or try again later",
	Code:    "DB006",
}

// errorRules run before sentinels so a duplicate key reports DB001 rather
// than the generic constraint message.
var errorRules = []errorRule{
	// =========================================================================
	// Database Constraint Errors (DB001-DB003)
	// =========================================================================
	{
		match: pgCode("23505"),
		msg: UserMessage{
			Message: "A row with this key already exists",
			Action:  "Rows may already be loaded by an earlier run; run reset first",
			Code:    "DB001",
		},
	},
	{
		match: pgCode("23503"),
		msg: UserMessage{
			Message: "Referenced record does not exist",
			Action:  "Load the referenced rows first",
			Code:    "DB002",
		},
	},
	{
		match: pgCode("23502"),
		msg: UserMessage{
			Message: "A required column received an empty cell",
			Action:  "Fill the empty cells for NOT NULL columns",
			Code:    "DB003",
		},
	},

	// =========================================================================
	// Source Errors (SRC002-SRC003)
	// =========================================================================
	{
		match: is(sheet.ErrUnsupportedFormat),
		msg: UserMessage{
			Message: "Source is not a workbook or CSV file",
			Action:  "Export the sheet as .xlsx or .csv",
			Code:    "SRC002",
		},
	},
	{
		match: is(sheet.ErrNoHeader),
		msg: UserMessage{
			Message: "Source has no header row",
			Action:  "Ensure the first non-blank row holds column names",
			Code:    "SRC003",
		},
	},

	// =========================================================================
	// Timeouts (DB006)
	// =========================================================================
	{match: isTimeout, msg: timeoutMessage},
}

var sentinelMessages = []sentinelMessage{
	{
		err: ErrIO,
		msg: UserMessage{
			Message: "A source file is missing or could not be read",
			Action:  "Check the SOURCE_* paths and file permissions",
			Code:    "SRC001",
		},
	},
	{
		err: ErrSchemaMismatch,
		msg: UserMessage{
			Message: "Columns do not match the destination table",
			Action:  "Compare the sheet header with the table definition",
			Code:    "SCH001",
		},
	},
	{
		err: ErrInvalidCell,
		msg: UserMessage{
			Message: "A cell cannot be stored in its column",
			Action:  "Fix the reported cell and run again",
			Code:    "VAL001",
		},
	},
	{
		err: ErrRepresentativeConflict,
		msg: UserMessage{
			Message: "Shipment rows disagree on origin or destination",
			Action:  "Fix the shipment sheet or set IMPORT_REPRESENTATIVE_POLICY=first-wins",
			Code:    "VAL002",
		},
	},
	{
		err: ErrConstraintViolation,
		msg: UserMessage{
			Message: "The destination table rejected a row",
			Action:  "Review the constraint named in the log",
			Code:    "DB004",
		},
	},
	{
		err: ErrConnection,
		msg: UserMessage{
			Message: "Unable to connect to database",
			Action:  "Check DATABASE_URL and that the server is running",
			Code:    "DB005",
		},
	},
}

// defaultMessage is returned when nothing matches (ERR000).
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Check the log for the technical error",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message.
// Specific rules win, then taxonomy sentinels, then the ERR000 fallback.
//
// Example:
//
//	msg := MapError(err)
//	// msg.Code == "DB001" for a duplicate key
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	for _, r := range errorRules {
		if r.match(err) {
			return r.msg
		}
	}

	for _, sm := range sentinelMessages {
		if errors.Is(err, sm.err) {
			return sm.msg
		}
	}

	return defaultMessage
}

// FormatUserError creates a formatted error string for display.
// The format is: "Message (Code: XXX). Action"
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}
