package postgres

import (
	"errors"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"pricepoint-intel/internal/storage"
)

func TestTranslate(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"no rows", pgx.ErrNoRows, storage.ErrNotFound},
		{"unique", &pgconn.PgError{Code: sqlstateUniqueViolation}, storage.ErrDuplicateKey},
		{"check", &pgconn.PgError{Code: sqlstateCheckViolation, ConstraintName: "unit_price_positive"}, storage.ErrInvalidInput},
		{"foreign key", &pgconn.PgError{Code: sqlstateForeignKeyViolation}, storage.ErrInvalidInput},
		{"not null", &pgconn.PgError{Code: sqlstateNotNullViolation}, storage.ErrInvalidInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := translate(tt.err, "insert observations"); !errors.Is(got, tt.want) {
				t.Errorf("translate() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestTranslate_WrapsUnknownErrors(t *testing.T) {
	cause := errors.New("connection reset")
	got := translate(cause, "insert anomalies")
	if !errors.Is(got, cause) {
		t.Errorf("expected wrapped cause, got %v", got)
	}
	if !strings.HasPrefix(got.Error(), "insert anomalies: ") {
		t.Errorf("expected op prefix, got %q", got.Error())
	}
	if translate(&pgconn.PgError{Code: "40001"}, "op") == nil {
		t.Error("expected serialization failure to pass through")
	}
}
