package core

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
)

func TestExitCodeForError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, ExitSuccess},
		{"io", fmt.Errorf("read: %w", ErrIO), ExitIOError},
		{"schema", fmt.Errorf("x: %w", ErrSchemaMismatch), ExitSchemaMismatch},
		{"invalid cell", fmt.Errorf("x: %w", ErrInvalidCell), ExitInvalidCell},
		{"constraint", fmt.Errorf("x: %w", ErrConstraintViolation), ExitConstraintViolation},
		{"connection", fmt.Errorf("x: %w", ErrConnection), ExitConnectionError},
		{"representative", fmt.Errorf("x: %w", ErrRepresentativeConflict), ExitRepresentativeConflict},
		{"other", errors.New("boom"), ExitGeneralError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExitCodeForError(tt.err))
		})
	}
}

func TestClassifyDBError(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		wantErr error
	}{
		{"unique violation", &pgconn.PgError{Code: "23505", Message: "duplicate key value"}, ErrConstraintViolation},
		{"not null violation", &pgconn.PgError{Code: "23502"}, ErrConstraintViolation},
		{"undefined table", &pgconn.PgError{Code: "42P01"}, ErrSchemaMismatch},
		{"undefined column", &pgconn.PgError{Code: "42703"}, ErrSchemaMismatch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classifyDBError("op", fmt.Errorf("wrapped: %w", tt.err))
			assert.ErrorIs(t, got, tt.wantErr)
			assert.ErrorIs(t, got, tt.err)
		})
	}
}

func TestClassifyDBError_Unclassified(t *testing.T) {
	assert.NoError(t, classifyDBError("op", nil))

	err := classifyDBError("op", &pgconn.PgError{Code: "22P02"})
	assert.Equal(t, ExitGeneralError, ExitCodeForError(err))
	assert.Contains(t, err.Error(), "op: ")
}
