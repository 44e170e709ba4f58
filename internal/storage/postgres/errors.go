package postgres

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"pricepoint-intel/internal/storage"
)

// SQLSTATE codes the stores react to.
const (
	sqlstateUniqueViolation     = "23505"
	sqlstateForeignKeyViolation = "23503"
	sqlstateCheckViolation      = "23514"
	sqlstateNotNullViolation    = "23502"
)

// translate maps driver errors onto the shared storage errors.
// Constraint failures other than uniqueness mean the caller sent a bad record.
func translate(err error, op string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return storage.ErrNotFound
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case sqlstateUniqueViolation:
			return storage.ErrDuplicateKey
		case sqlstateCheckViolation, sqlstateForeignKeyViolation, sqlstateNotNullViolation:
			return storage.Invalid("%s: %s (%s)", op, pgErr.Message, pgErr.ConstraintName)
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}
