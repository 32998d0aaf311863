package core

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

// Sentinel errors for the import failure taxonomy.
// Callers distinguish them with errors.Is; none are retried.
var (
	// ErrIO indicates a source file is missing or unreadable.
	ErrIO = errors.New("source unreadable")

	// ErrSchemaMismatch indicates a required column is absent, or a source's
	// columns do not line up with its destination table.
	ErrSchemaMismatch = errors.New("schema mismatch")

	// ErrInvalidCell indicates a cell that cannot be converted to its column type.
	ErrInvalidCell = errors.New("invalid cell value")

	// ErrConstraintViolation indicates the destination store rejected a row.
	ErrConstraintViolation = errors.New("constraint violation")

	// ErrConnection indicates the destination store is unreachable.
	ErrConnection = errors.New("connection failed")

	// ErrRepresentativeConflict indicates a shipment group whose rows disagree
	// on origin/destination under a policy that forbids it.
	ErrRepresentativeConflict = errors.New("representative conflict")
)

// Exit codes returned by the CLI.
const (
	ExitSuccess                = 0
	ExitGeneralError           = 1
	ExitIOError                = 10
	ExitSchemaMismatch         = 11
	ExitInvalidCell            = 12
	ExitConstraintViolation    = 13
	ExitConnectionError        = 14
	ExitRepresentativeConflict = 15
)

// ExitCodeForError returns the process exit code for err.
func ExitCodeForError(err error) int {
	switch {
	case err == nil:
		return ExitSuccess
	case errors.Is(err, ErrIO):
		return ExitIOError
	case errors.Is(err, ErrSchemaMismatch):
		return ExitSchemaMismatch
	case errors.Is(err, ErrInvalidCell):
		return ExitInvalidCell
	case errors.Is(err, ErrConstraintViolation):
		return ExitConstraintViolation
	case errors.Is(err, ErrConnection):
		return ExitConnectionError
	case errors.Is(err, ErrRepresentativeConflict):
		return ExitRepresentativeConflict
	}
	return ExitGeneralError
}

// classifyDBError tags a store error with its taxonomy sentinel.
// Integrity violations (SQLSTATE class 23) become ErrConstraintViolation;
// missing tables or columns (42P01, 42703) become ErrSchemaMismatch;
// connect failures become ErrConnection. Anything else is returned wrapped
// with op only.
func classifyDBError(op string, err error) error {
	if err == nil {
		return nil
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case strings.HasPrefix(pgErr.Code, "23"):
			return fmt.Errorf("%s: %w: %w", op, ErrConstraintViolation, err)
		case pgErr.Code == "42P01", pgErr.Code == "42703":
			return fmt.Errorf("%s: %w: %w", op, ErrSchemaMismatch, err)
		}
		return fmt.Errorf("%s: %w", op, err)
	}

	var connErr *pgconn.ConnectError
	if errors.As(err, &connErr) {
		return fmt.Errorf("%s: %w: %w", op, ErrConnection, err)
	}

	return fmt.Errorf("%s: %w", op, err)
}
