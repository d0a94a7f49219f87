package discharge

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/postcare/postcare/internal/domain/medication"
	"github.com/postcare/postcare/internal/platform/apperror"
	"github.com/postcare/postcare/internal/platform/httpx"
	"github.com/postcare/postcare/internal/store"
	"github.com/postcare/postcare/pkg/patch"
)

// CreatePlanRequest is a new discharge plan with its prescribed medications.
type CreatePlanRequest struct {
	PatientID            string             `json:"patient_id"`
	DischargeDate        string             `json:"discharge_date"`
	Diagnosis            string             `json:"diagnosis"`
	Instructions         string             `json:"instructions"`
	ActivityRestrictions *string            `json:"activity_restrictions"`
	FollowUpDate         *string            `json:"follow_up_date"`
	Medications          []medication.Input `json:"medications"`
}

// ToPlan validates the request and returns the plan without its hospital.
// The first offending field wins.
func (r CreatePlanRequest) ToPlan() (*store.DischargePlan, error) {
	plan := &store.DischargePlan{}

	raw, err := httpx.Required("patient_id", r.PatientID)
	if err != nil {
		return nil, err
	}
	if plan.PatientID, err = uuid.Parse(raw); err != nil {
		return nil, apperror.Validation("patient_id", "patient_id must be a UUID")
	}
	if plan.DischargeDate, err = httpx.Day("discharge_date", r.DischargeDate); err != nil {
		return nil, err
	}
	if plan.Diagnosis, err = httpx.Required("diagnosis", r.Diagnosis); err != nil {
		return nil, err
	}
	if plan.Instructions, err = httpx.Required("instructions", r.Instructions); err != nil {
		return nil, err
	}
	plan.ActivityRestrictions = trimOptional(r.ActivityRestrictions)
	if plan.FollowUpDate, err = httpx.OptionalDay("follow_up_date", r.FollowUpDate); err != nil {
		return nil, err
	}

	plan.Medications = make([]store.Medication, 0, len(r.Medications))
	for i, in := range r.Medications {
		m, err := in.ToMedication(fmt.Sprintf("medications[%d].", i))
		if err != nil {
			return nil, err
		}
		plan.Medications = append(plan.Medications, m)
	}
	return plan, nil
}

// UpdatePlanRequest patches the hospital-editable plan fields. Medications
// cannot be changed once issued.
type UpdatePlanRequest struct {
	Diagnosis            patch.Field[string] `json:"diagnosis"`
	Instructions         patch.Field[string] `json:"instructions"`
	ActivityRestrictions patch.Field[string] `json:"activity_restrictions"`
	FollowUpDate         patch.Field[string] `json:"follow_up_date"`
}

// Apply validates the patch and writes it into plan.
func (r UpdatePlanRequest) Apply(plan *store.DischargePlan) error {
	if r.Diagnosis.Set {
		v, err := httpx.Required("diagnosis", r.Diagnosis.Value)
		if err != nil {
			return err
		}
		plan.Diagnosis = v
	}
	if r.Instructions.Set {
		v, err := httpx.Required("instructions", r.Instructions.Value)
		if err != nil {
			return err
		}
		plan.Instructions = v
	}
	if r.ActivityRestrictions.Set {
		plan.ActivityRestrictions = nil
		if !r.ActivityRestrictions.Null {
			plan.ActivityRestrictions = trimOptional(&r.ActivityRestrictions.Value)
		}
	}
	if r.FollowUpDate.Set {
		plan.FollowUpDate = nil
		if !r.FollowUpDate.Null {
			d, err := httpx.Day("follow_up_date", r.FollowUpDate.Value)
			if err != nil {
				return err
			}
			plan.FollowUpDate = &d
		}
	}
	return nil
}

func trimOptional(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}
