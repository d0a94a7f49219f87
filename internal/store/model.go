package store

import (
	"time"

	"github.com/google/uuid"
)

// Role is the kind of account a user holds.
type Role string

const (
	RoleHospital Role = "HOSPITAL"
	RolePatient  Role = "PATIENT"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleHospital || r == RolePatient
}

// User is a login identity.
type User struct {
	ID           uuid.UUID `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         Role      `json:"role"`
	Name         string    `json:"name"`
	Phone        *string   `json:"phone,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Hospital is the tenant owning discharge plans.
type Hospital struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"user_id"`
	Name      string    `json:"name"`
	Address   *string   `json:"address,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Patient is the clinical profile of a PATIENT user. HospitalID is nil until
// a hospital links the patient.
type Patient struct {
	ID          uuid.UUID  `json:"id"`
	UserID      uuid.UUID  `json:"user_id"`
	HospitalID  *uuid.UUID `json:"hospital_id,omitempty"`
	Name        string     `json:"name"`
	Phone       *string    `json:"phone,omitempty"`
	DateOfBirth *time.Time `json:"date_of_birth,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// BelongsTo reports whether the patient is linked to hospitalID.
func (p *Patient) BelongsTo(hospitalID uuid.UUID) bool {
	return p.HospitalID != nil && *p.HospitalID == hospitalID
}

// DischargePlan is issued by one hospital to one patient.
type DischargePlan struct {
	ID                   uuid.UUID    `json:"id"`
	PatientID            uuid.UUID    `json:"patient_id"`
	HospitalID           uuid.UUID    `json:"hospital_id"`
	DischargeDate        time.Time    `json:"discharge_date"`
	Diagnosis            string       `json:"diagnosis"`
	Instructions         string       `json:"instructions"`
	ActivityRestrictions *string      `json:"activity_restrictions,omitempty"`
	FollowUpDate         *time.Time   `json:"follow_up_date,omitempty"`
	CreatedAt            time.Time    `json:"created_at"`
	UpdatedAt            time.Time    `json:"updated_at"`
	Medications          []Medication `json:"medications"`
}

// Medication originates from exactly one of a discharge plan or a patient
// adding it to their own list.
type Medication struct {
	ID              uuid.UUID  `json:"id"`
	Name            string     `json:"name"`
	Dosage          string     `json:"dosage"`
	Frequency       string     `json:"frequency"`
	StartDate       time.Time  `json:"start_date"`
	EndDate         *time.Time `json:"end_date,omitempty"`
	DischargePlanID *uuid.UUID `json:"discharge_plan_id,omitempty"`
	PatientID       *uuid.UUID `json:"patient_id,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// SelfAdded reports whether the patient created this medication.
func (m *Medication) SelfAdded() bool {
	return m.PatientID != nil && m.DischargePlanID == nil
}

// ValidOrigin checks that exactly one origin reference is set.
func (m *Medication) ValidOrigin() bool {
	return (m.PatientID == nil) != (m.DischargePlanID == nil)
}

// ActiveOn reports whether day lies within [StartDate, EndDate], comparing
// calendar days and treating a nil EndDate as open ended.
func (m *Medication) ActiveOn(day time.Time) bool {
	d := truncate(day)
	if d.Before(truncate(m.StartDate)) {
		return false
	}
	return m.EndDate == nil || !d.After(truncate(*m.EndDate))
}

func truncate(t time.Time) time.Time {
	y, mo, d := t.Date()
	return time.Date(y, mo, d, 0, 0, 0, 0, time.UTC)
}

// VitalLog is a patient-entered set of measurements. All measurements are
// optional.
type VitalLog struct {
	ID                     uuid.UUID `json:"id"`
	PatientID              uuid.UUID `json:"patient_id"`
	RecordedAt             time.Time `json:"date"`
	BloodPressureSystolic  *int      `json:"blood_pressure_systolic,omitempty"`
	BloodPressureDiastolic *int      `json:"blood_pressure_diastolic,omitempty"`
	Weight                 *float64  `json:"weight,omitempty"`
	Glucose                *float64  `json:"glucose,omitempty"`
	Temperature            *float64  `json:"temperature,omitempty"`
	Notes                  *string   `json:"notes,omitempty"`
	CreatedAt              time.Time `json:"created_at"`
	UpdatedAt              time.Time `json:"updated_at"`
}

// MedicationLog records whether a medication was taken on a calendar day.
// At most one row exists per (PatientID, MedicationID, Day).
type MedicationLog struct {
	ID           uuid.UUID          `json:"id"`
	PatientID    uuid.UUID          `json:"patient_id"`
	MedicationID uuid.UUID          `json:"medication_id"`
	Day          time.Time          `json:"date"`
	Taken        bool               `json:"taken"`
	Notes        *string            `json:"notes,omitempty"`
	CreatedAt    time.Time          `json:"created_at"`
	UpdatedAt    time.Time          `json:"updated_at"`
	Medication   *MedicationSummary `json:"medication,omitempty"`
}

// MedicationSummary is the medication detail embedded in log listings.
type MedicationSummary struct {
	Name      string `json:"name"`
	Dosage    string `json:"dosage"`
	Frequency string `json:"frequency"`
}

// PlanSummary is the latest-plan excerpt shown in patient searches.
type PlanSummary struct {
	ID            uuid.UUID  `json:"id"`
	Diagnosis     string     `json:"diagnosis"`
	DischargeDate time.Time  `json:"discharge_date"`
	FollowUpDate  *time.Time `json:"follow_up_date,omitempty"`
}

// PatientListItem is one row of a hospital patient search.
type PatientListItem struct {
	Patient
	Email      string       `json:"email"`
	LatestPlan *PlanSummary `json:"latest_plan,omitempty"`
	PlanCount  int          `json:"plan_count"`
	VitalCount int          `json:"vital_count"`
}
