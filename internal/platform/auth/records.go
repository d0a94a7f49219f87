package auth

import (
	"context"

	"github.com/google/uuid"

	"github.com/postcare/postcare/internal/platform/apperror"
	"github.com/postcare/postcare/internal/store"
)

// TargetPatient resolves whose records a list call reads. Patients default
// to themselves; a hospital must name the patient.
func TargetPatient(p Principal, patientID *uuid.UUID) (uuid.UUID, error) {
	switch pr := p.(type) {
	case PatientPrincipal:
		if patientID != nil {
			return *patientID, nil
		}
		return pr.PatientID, nil
	case HospitalPrincipal:
		if patientID == nil {
			return uuid.Nil, apperror.Validation("patientId", "patientId is required")
		}
		return *patientID, nil
	}
	return uuid.Nil, apperror.Unauthenticated("authentication required")
}

// LoadRecordResource describes a record owned by patientID. An unknown
// patient is reported as NotFound for kind.
func LoadRecordResource(ctx context.Context, patients store.PatientRepository, kind string, patientID uuid.UUID) (PatientRecordResource, error) {
	patient, err := patients.GetByID(ctx, patientID)
	if err != nil {
		return PatientRecordResource{}, apperror.FromStore(err, kind)
	}
	return PatientRecordResource{Kind: kind, PatientID: patient.ID, PatientHospitalID: patient.HospitalID}, nil
}
