package store

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/postcare/postcare/pkg/dates"
)

// Calendar-day fields are held as midnight UTC but render as YYYY-MM-DD.

func calendarDay(t *time.Time) *dates.Date {
	if t == nil {
		return nil
	}
	d := dates.NewDate(*t)
	return &d
}

type patientJSON struct {
	ID          uuid.UUID   `json:"id"`
	UserID      uuid.UUID   `json:"user_id"`
	HospitalID  *uuid.UUID  `json:"hospital_id,omitempty"`
	Name        string      `json:"name"`
	Phone       *string     `json:"phone,omitempty"`
	DateOfBirth *dates.Date `json:"date_of_birth,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

func (p Patient) wire() patientJSON {
	return patientJSON{
		ID:          p.ID,
		UserID:      p.UserID,
		HospitalID:  p.HospitalID,
		Name:        p.Name,
		Phone:       p.Phone,
		DateOfBirth: calendarDay(p.DateOfBirth),
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}

func (p Patient) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.wire())
}

// MarshalJSON is spelled out because the embedded Patient would otherwise
// promote its own encoder and drop the list columns.
func (i PatientListItem) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		patientJSON
		Email      string       `json:"email"`
		LatestPlan *PlanSummary `json:"latest_plan,omitempty"`
		PlanCount  int          `json:"plan_count"`
		VitalCount int          `json:"vital_count"`
	}{i.Patient.wire(), i.Email, i.LatestPlan, i.PlanCount, i.VitalCount})
}

func (p DischargePlan) MarshalJSON() ([]byte, error) {
	type plain DischargePlan
	return json.Marshal(struct {
		plain
		DischargeDate dates.Date  `json:"discharge_date"`
		FollowUpDate  *dates.Date `json:"follow_up_date,omitempty"`
	}{plain(p), dates.NewDate(p.DischargeDate), calendarDay(p.FollowUpDate)})
}

func (m Medication) MarshalJSON() ([]byte, error) {
	type plain Medication
	return json.Marshal(struct {
		plain
		StartDate dates.Date  `json:"start_date"`
		EndDate   *dates.Date `json:"end_date,omitempty"`
	}{plain(m), dates.NewDate(m.StartDate), calendarDay(m.EndDate)})
}

func (l MedicationLog) MarshalJSON() ([]byte, error) {
	type plain MedicationLog
	return json.Marshal(struct {
		plain
		Day dates.Date `json:"date"`
	}{plain(l), dates.NewDate(l.Day)})
}

func (s PlanSummary) MarshalJSON() ([]byte, error) {
	type plain PlanSummary
	return json.Marshal(struct {
		plain
		DischargeDate dates.Date  `json:"discharge_date"`
		FollowUpDate  *dates.Date `json:"follow_up_date,omitempty"`
	}{plain(s), dates.NewDate(s.DischargeDate), calendarDay(s.FollowUpDate)})
}
