// Package postgres implements store.Store on pgx. Multi-row writes run in a
// transaction carried on the context by db.WithTx.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/postcare/postcare/internal/platform/db"
	"github.com/postcare/postcare/internal/store"
)

// Store is the Postgres backend.
type Store struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) Users() store.UserRepository                   { return &userRepo{s} }
func (s *Store) Hospitals() store.HospitalRepository           { return &hospitalRepo{s} }
func (s *Store) Patients() store.PatientRepository             { return &patientRepo{s} }
func (s *Store) Plans() store.PlanRepository                   { return &planRepo{s} }
func (s *Store) Medications() store.MedicationRepository       { return &medicationRepo{s} }
func (s *Store) Vitals() store.VitalRepository                 { return &vitalRepo{s} }
func (s *Store) MedicationLogs() store.MedicationLogRepository { return &logRepo{s} }

func (s *Store) Ping(ctx context.Context) error { return s.pool.Ping(ctx) }
func (s *Store) Close()                         { s.pool.Close() }

// Pool exposes the underlying pool for health reporting.
func (s *Store) Pool() *pgxpool.Pool { return s.pool }

func (s *Store) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, s.pool)
}

func (s *Store) inTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return db.WithTx(ctx, s.pool, fn)
}

const (
	uniqueViolation     = "23505"
	foreignKeyViolation = "23503"
	checkViolation      = "23514"
)

// mapError converts driver errors into store sentinels.
func mapError(err error, op string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return store.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case uniqueViolation:
			if pgErr.ConstraintName == "users_email_key" {
				return store.ErrDuplicateEmail
			}
			return fmt.Errorf("%s: %w (%s)", op, store.ErrConflict, pgErr.ConstraintName)
		case foreignKeyViolation:
			return fmt.Errorf("%s: %w (%s)", op, store.ErrMissingParent, pgErr.ConstraintName)
		case checkViolation:
			if pgErr.ConstraintName == "medications_origin_check" {
				return store.ErrInvalidOrigin
			}
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}

func notFoundIfNone(tag pgconn.CommandTag) error {
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}
