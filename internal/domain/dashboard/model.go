package dashboard

import (
	"github.com/postcare/postcare/internal/domain/adherence"
	"github.com/postcare/postcare/internal/domain/medication"
	"github.com/postcare/postcare/internal/store"
	"github.com/postcare/postcare/pkg/dates"
)

const (
	bundleVitals   = 30
	bundleLogs     = 50
	recentPlans    = 5
	recentPatients = 5
	allPlans       = 200
)

// PatientBundle is everything a hospital sees on one patient's page.
type PatientBundle struct {
	Patient        *store.Patient         `json:"patient"`
	Email          string                 `json:"email"`
	HospitalName   *string                `json:"hospital_name,omitempty"`
	Plans          []*store.DischargePlan `json:"discharge_plans"`
	Vitals         []*store.VitalLog      `json:"vitals"`
	MedicationLogs []*store.MedicationLog `json:"medication_logs"`
	Adherence      adherence.Summary      `json:"adherence"`
}

// HospitalOverview is the hospital landing page.
type HospitalOverview struct {
	Role           store.Role               `json:"role"`
	HospitalName   string                   `json:"hospital_name"`
	PatientCount   int                      `json:"patient_count"`
	PlanCount      int                      `json:"plan_count"`
	RecentPlans    []*store.DischargePlan   `json:"recent_plans"`
	RecentPatients []*store.PatientListItem `json:"recent_patients"`
}

// PatientOverview is the patient landing page.
type PatientOverview struct {
	Role         store.Role           `json:"role"`
	Patient      *store.Patient       `json:"patient"`
	Today        *medication.Schedule `json:"today"`
	LatestVital  *store.VitalLog      `json:"latest_vital,omitempty"`
	NextFollowUp *dates.Date          `json:"next_follow_up,omitempty"`
	Adherence    adherence.Summary    `json:"adherence"`
}
