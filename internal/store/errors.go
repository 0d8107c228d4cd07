package store

import (
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/aegishq/controlplane/internal/obs"
)

// classify maps a pgx/pgconn error into the store's typed error taxonomy:
// NotFound, Conflict (optimistic concurrency / unique violation), or
// Transient (connection loss). Callers retry only Transient.
func classify(err error, op string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return obs.Wrap(err, obs.NotFound, "store.not_found", op)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505": // unique_violation
			return obs.Wrap(err, obs.Conflict, "store.conflict", op)
		case "40001", "40P01": // serialization_failure, deadlock_detected
			return obs.Wrap(err, obs.Transient, "store.conflict_retry", op)
		}
	}

	return obs.Wrap(err, obs.Transient, "store.transient", op)
}
