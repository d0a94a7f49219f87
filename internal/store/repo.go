package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrNotFound is returned when a row does not exist.
	ErrNotFound = errors.New("store: not found")
	// ErrDuplicateEmail is returned when a user email is already taken.
	ErrDuplicateEmail = errors.New("store: duplicate email")
	// ErrConflict is returned for any other uniqueness violation.
	ErrConflict = errors.New("store: unique constraint violated")
	// ErrMissingParent is returned when a referenced row does not exist.
	ErrMissingParent = errors.New("store: referenced row does not exist")
	// ErrInvalidOrigin is returned when a medication does not have exactly one origin.
	ErrInvalidOrigin = errors.New("store: medication must belong to exactly one of plan or patient")
)

// UserRepository creates accounts. Account creation writes the user and its
// role profile atomically.
type UserRepository interface {
	CreateHospitalAccount(ctx context.Context, u *User, h *Hospital) error
	CreatePatientAccount(ctx context.Context, u *User, p *Patient) error
	GetByID(ctx context.Context, id uuid.UUID) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
}

type HospitalRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Hospital, error)
	GetByUserID(ctx context.Context, userID uuid.UUID) (*Hospital, error)
}

// PatientSearch filters a hospital's patient list. Query matches the name
// case-insensitively or the phone number as a substring.
type PatientSearch struct {
	HospitalID uuid.UUID
	Query      string
	Limit      int
	Offset     int
}

type PatientRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Patient, error)
	GetByUserID(ctx context.Context, userID uuid.UUID) (*Patient, error)
	AssignHospital(ctx context.Context, patientID, hospitalID uuid.UUID) (*Patient, error)
	Search(ctx context.Context, s PatientSearch) ([]*PatientListItem, int, error)
	CountByHospital(ctx context.Context, hospitalID uuid.UUID) (int, error)
}

// PlanFilter scopes plan listings. Exactly one field is normally set.
type PlanFilter struct {
	HospitalID *uuid.UUID
	PatientID  *uuid.UUID
}

// PlanRepository stores plans together with their medications. Create writes
// the plan and all medications atomically.
type PlanRepository interface {
	Create(ctx context.Context, p *DischargePlan) error
	GetByID(ctx context.Context, id uuid.UUID) (*DischargePlan, error)
	Update(ctx context.Context, p *DischargePlan) error
	List(ctx context.Context, f PlanFilter, limit, offset int) ([]*DischargePlan, int, error)
	CountByHospital(ctx context.Context, hospitalID uuid.UUID) (int, error)
	NextFollowUp(ctx context.Context, patientID uuid.UUID, from time.Time) (*time.Time, error)
}

// MedicationRepository manages medications outside of plan creation. Update
// and DeleteSelfAdded only touch self-added rows; DeleteSelfAdded removes the
// medication's logs in the same transaction.
type MedicationRepository interface {
	Create(ctx context.Context, m *Medication) error
	GetByID(ctx context.Context, id uuid.UUID) (*Medication, error)
	Update(ctx context.Context, m *Medication) error
	DeleteSelfAdded(ctx context.Context, id uuid.UUID) error
	ListSelfAdded(ctx context.Context, patientID uuid.UUID) ([]*Medication, error)
	// ListForPatient returns self-added medications plus those on any plan
	// issued to the patient.
	ListForPatient(ctx context.Context, patientID uuid.UUID) ([]*Medication, error)
}

type VitalRepository interface {
	Create(ctx context.Context, v *VitalLog) error
	GetByID(ctx context.Context, id uuid.UUID) (*VitalLog, error)
	Update(ctx context.Context, v *VitalLog) error
	Delete(ctx context.Context, id uuid.UUID) error
	// ListByPatient returns the newest measurements first.
	ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*VitalLog, int, error)
}

// LogFilter narrows medication log listings.
type LogFilter struct {
	MedicationID *uuid.UUID
	From         *time.Time
	To           *time.Time
}

// MedicationLogRepository stores adherence rows. Upsert is the only creation
// path and never produces a second row for the same key.
type MedicationLogRepository interface {
	Upsert(ctx context.Context, l *MedicationLog) (created bool, err error)
	GetByID(ctx context.Context, id uuid.UUID) (*MedicationLog, error)
	Update(ctx context.Context, l *MedicationLog) error
	Delete(ctx context.Context, id uuid.UUID) error
	// ListByPatient returns logs newest day first with the medication summary attached.
	ListByPatient(ctx context.Context, patientID uuid.UUID, f LogFilter, limit, offset int) ([]*MedicationLog, int, error)
	ListForDay(ctx context.Context, patientID uuid.UUID, day time.Time) ([]*MedicationLog, error)
}

// Store groups the repositories behind one backend.
type Store interface {
	Users() UserRepository
	Hospitals() HospitalRepository
	Patients() PatientRepository
	Plans() PlanRepository
	Medications() MedicationRepository
	Vitals() VitalRepository
	MedicationLogs() MedicationLogRepository
	Ping(ctx context.Context) error
	Close()
}
