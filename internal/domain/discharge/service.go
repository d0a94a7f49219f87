package discharge

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/postcare/postcare/internal/platform/apperror"
	"github.com/postcare/postcare/internal/platform/auth"
	"github.com/postcare/postcare/internal/store"
)

type Service struct {
	store  store.Store
	logger zerolog.Logger
}

func NewService(st store.Store, logger zerolog.Logger) *Service {
	return &Service{store: st, logger: logger}
}

// Create issues a plan and its medications to a patient of the calling
// hospital.
func (s *Service) Create(ctx context.Context, p auth.Principal, req CreatePlanRequest) (*store.DischargePlan, error) {
	h, err := auth.AsHospital(p)
	if err != nil {
		return nil, err
	}
	plan, err := req.ToPlan()
	if err != nil {
		return nil, err
	}

	patient, err := s.store.Patients().GetByID(ctx, plan.PatientID)
	if err != nil {
		return nil, apperror.FromStore(err, "patient")
	}
	if err := auth.Check(p, auth.ActionCreate, auth.PlanResource{
		HospitalID:        h.HospitalID,
		PatientID:         patient.ID,
		PatientHospitalID: patient.HospitalID,
	}); err != nil {
		return nil, err
	}

	plan.HospitalID = h.HospitalID
	if err := s.store.Plans().Create(ctx, plan); err != nil {
		return nil, apperror.FromStore(err, "patient")
	}
	s.logger.Info().
		Str("plan_id", plan.ID.String()).
		Str("hospital_id", plan.HospitalID.String()).
		Str("patient_id", plan.PatientID.String()).
		Int("medications", len(plan.Medications)).
		Msg("discharge plan created")
	return plan, nil
}

func (s *Service) Get(ctx context.Context, p auth.Principal, id uuid.UUID) (*store.DischargePlan, error) {
	return s.load(ctx, p, auth.ActionRead, id)
}

// Update patches the plan's editable fields. Only the issuing hospital may
// write.
func (s *Service) Update(ctx context.Context, p auth.Principal, id uuid.UUID, req UpdatePlanRequest) (*store.DischargePlan, error) {
	plan, err := s.load(ctx, p, auth.ActionUpdate, id)
	if err != nil {
		return nil, err
	}
	if err := req.Apply(plan); err != nil {
		return nil, err
	}
	if err := s.store.Plans().Update(ctx, plan); err != nil {
		return nil, apperror.FromStore(err, "discharge plan")
	}
	return plan, nil
}

// List returns plans scoped to the caller: a hospital sees the plans it
// issued, optionally narrowed to one patient; a patient sees their own.
func (s *Service) List(ctx context.Context, p auth.Principal, patientID *uuid.UUID, limit, offset int) ([]*store.DischargePlan, int, error) {
	var f store.PlanFilter
	switch pr := p.(type) {
	case auth.HospitalPrincipal:
		hospitalID := pr.HospitalID
		f.HospitalID = &hospitalID
		f.PatientID = patientID
	case auth.PatientPrincipal:
		own := pr.PatientID
		f.PatientID = &own
	default:
		return nil, 0, apperror.Unauthenticated("authentication required")
	}

	plans, total, err := s.store.Plans().List(ctx, f, limit, offset)
	if err != nil {
		return nil, 0, apperror.Internal(err)
	}
	return plans, total, nil
}

func (s *Service) load(ctx context.Context, p auth.Principal, action auth.Action, id uuid.UUID) (*store.DischargePlan, error) {
	if p == nil {
		return nil, apperror.Unauthenticated("authentication required")
	}
	plan, err := s.store.Plans().GetByID(ctx, id)
	if err != nil {
		return nil, apperror.FromStore(err, "discharge plan")
	}
	if err := auth.Check(p, action, auth.PlanResource{HospitalID: plan.HospitalID, PatientID: plan.PatientID}); err != nil {
		return nil, err
	}
	return plan, nil
}
