// Package memory is an in-process store.Store. It enforces the same
// uniqueness and referential rules as the Postgres schema and hands out
// copies so callers never alias stored rows.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/postcare/postcare/internal/store"
)

type logKey struct {
	patientID    uuid.UUID
	medicationID uuid.UUID
	day          string
}

// Store keeps all entities in maps guarded by a single RWMutex.
type Store struct {
	mu sync.RWMutex

	now  func() time.Time
	last time.Time

	users       map[uuid.UUID]*store.User
	emails      map[string]uuid.UUID
	hospitals   map[uuid.UUID]*store.Hospital
	patients    map[uuid.UUID]*store.Patient
	plans       map[uuid.UUID]*store.DischargePlan
	medications map[uuid.UUID]*store.Medication
	vitals      map[uuid.UUID]*store.VitalLog
	logs        map[uuid.UUID]*store.MedicationLog
	logIndex    map[logKey]uuid.UUID
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// New returns an empty store.
func New(opts ...Option) *Store {
	s := &Store{
		now:         time.Now,
		users:       make(map[uuid.UUID]*store.User),
		emails:      make(map[string]uuid.UUID),
		hospitals:   make(map[uuid.UUID]*store.Hospital),
		patients:    make(map[uuid.UUID]*store.Patient),
		plans:       make(map[uuid.UUID]*store.DischargePlan),
		medications: make(map[uuid.UUID]*store.Medication),
		vitals:      make(map[uuid.UUID]*store.VitalLog),
		logs:        make(map[uuid.UUID]*store.MedicationLog),
		logIndex:    make(map[logKey]uuid.UUID),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) Users() store.UserRepository                   { return userRepo{s} }
func (s *Store) Hospitals() store.HospitalRepository           { return hospitalRepo{s} }
func (s *Store) Patients() store.PatientRepository             { return patientRepo{s} }
func (s *Store) Plans() store.PlanRepository                   { return planRepo{s} }
func (s *Store) Medications() store.MedicationRepository       { return medicationRepo{s} }
func (s *Store) Vitals() store.VitalRepository                 { return vitalRepo{s} }
func (s *Store) MedicationLogs() store.MedicationLogRepository { return logRepo{s} }

func (s *Store) Ping(context.Context) error { return nil }
func (s *Store) Close()                     {}

// stamp returns a strictly increasing microsecond timestamp. Callers hold mu.
func (s *Store) stamp() time.Time {
	t := s.now().UTC().Truncate(time.Microsecond)
	if !t.After(s.last) {
		t = s.last.Add(time.Microsecond)
	}
	s.last = t
	return t
}

func newID(id uuid.UUID) uuid.UUID {
	if id == uuid.Nil {
		return uuid.New()
	}
	return id
}

func ptrCopy[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func copyMedication(m *store.Medication) *store.Medication {
	c := *m
	c.EndDate = ptrCopy(m.EndDate)
	c.DischargePlanID = ptrCopy(m.DischargePlanID)
	c.PatientID = ptrCopy(m.PatientID)
	return &c
}
