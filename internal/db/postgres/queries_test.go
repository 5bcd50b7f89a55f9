package postgres

import (
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
)

func TestIsForeignKeyViolation(t *testing.T) {
	err := fmt.Errorf("sync petition: %w", &pgconn.PgError{Code: "23503"})
	assert.True(t, IsForeignKeyViolation(err))
	assert.False(t, IsForeignKeyViolation(&pgconn.PgError{Code: "23505"}))
	assert.False(t, IsForeignKeyViolation(fmt.Errorf("plain")))
	assert.False(t, IsForeignKeyViolation(nil))
}

func TestIsNoRows(t *testing.T) {
	assert.True(t, IsNoRows(fmt.Errorf("get member: %w", pgx.ErrNoRows)))
	assert.False(t, IsNoRows(fmt.Errorf("timeout")))
}
