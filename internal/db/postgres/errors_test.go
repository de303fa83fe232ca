package postgres

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
)

func TestIsOperational(t *testing.T) {
	assert.False(t, IsOperational(nil))
	assert.False(t, IsOperational(errors.New("boom")))
	assert.False(t, IsOperational(fmt.Errorf("insert offer: %w", &pgconn.PgError{Code: "23505"})))
	assert.True(t, IsOperational(fmt.Errorf("find offer: %w", &pgconn.PgError{Code: "08006"})))
	assert.True(t, IsOperational(&pgconn.PgError{Code: "57P01"}))
	assert.True(t, IsOperational(errors.New("closed pool")))
}
