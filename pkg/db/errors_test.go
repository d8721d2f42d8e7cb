package db

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

func TestIsUniqueViolation(t *testing.T) {
	pgxDup := &pgconn.PgError{Code: "23505", ConstraintName: "ux_payments_gateway_ref"}
	pqDup := &pq.Error{Code: "23505", Constraint: "ux_driver_offers_order_driver"}

	tests := []struct {
		name       string
		err        error
		constraint string
		want       bool
	}{
		{"nil", nil, "", false},
		{"pgx unique", pgxDup, "", true},
		{"pgx wrapped", fmt.Errorf("create payment: %w", pgxDup), "", true},
		{"pgx constraint match", pgxDup, "ux_payments_gateway_ref", true},
		{"pgx constraint mismatch", pgxDup, "ux_driver_offers_order_driver", false},
		{"pgx other sqlstate", &pgconn.PgError{Code: "23503"}, "", false},
		{"pq unique", pqDup, "", true},
		{"pq constraint match", pqDup, "ux_driver_offers_order_driver", true},
		{"postgres message fallback", errors.New(`duplicate key value violates unique constraint "ux_orders_number"`), "", true},
		{"sqlite message fallback", errors.New("UNIQUE constraint failed: payments.gateway_ref"), "", true},
		{"unrelated error", errors.New("connection refused"), "", false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := IsUniqueViolation(tc.err, tc.constraint); got != tc.want {
				t.Fatalf("IsUniqueViolation(%v, %q) = %v, want %v", tc.err, tc.constraint, got, tc.want)
			}
		})
	}
}
