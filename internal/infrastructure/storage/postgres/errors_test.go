package postgres

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
)

func TestUniqueViolation(t *testing.T) {
	err := fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505", ConstraintName: "uq_inv_sessions_reference"})
	name, ok := UniqueViolation(err)
	assert.True(t, ok)
	assert.Equal(t, "uq_inv_sessions_reference", name)

	_, ok = UniqueViolation(errors.New("boom"))
	assert.False(t, ok)

	assert.True(t, IsForeignKeyViolation(&pgconn.PgError{Code: "23503"}))
	assert.False(t, IsForeignKeyViolation(&pgconn.PgError{Code: "23505"}))
}
