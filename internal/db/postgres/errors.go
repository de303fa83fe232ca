package postgres

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

// IsOperational reports whether err means the database itself is unusable
// (lost connection, server shutting down, out of resources). Such errors
// end the process so the supervisor can restart it.
func IsOperational(err error) bool {
	if err == nil {
		return false
	}
	var connectErr *pgconn.ConnectError
	if errors.As(err, &connectErr) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case strings.HasPrefix(pgErr.Code, "08"): // connection exception
			return true
		case strings.HasPrefix(pgErr.Code, "53"): // insufficient resources
			return true
		case strings.HasPrefix(pgErr.Code, "57"): // operator intervention
			return true
		}
		return false
	}
	return strings.Contains(err.Error(), "closed pool") || pgconn.Timeout(err)
}
