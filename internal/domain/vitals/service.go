package vitals

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/postcare/postcare/internal/platform/apperror"
	"github.com/postcare/postcare/internal/platform/auth"
	"github.com/postcare/postcare/internal/store"
	"github.com/postcare/postcare/pkg/dates"
)

const resourceKind = "vital log"

type Service struct {
	store store.Store
	loc   *time.Location
	now   func() time.Time
}

// NewService returns the vitals service. loc is used to read timestamps
// submitted without an offset.
func NewService(st store.Store, loc *time.Location) *Service {
	if loc == nil {
		loc = time.UTC
	}
	return &Service{store: st, loc: loc, now: time.Now}
}

func (s *Service) Create(ctx context.Context, p auth.Principal, req CreateRequest) (*store.VitalLog, error) {
	pp, err := auth.AsPatient(p)
	if err != nil {
		return nil, err
	}
	if err := auth.Check(p, auth.ActionCreate, auth.PatientRecordResource{Kind: resourceKind, PatientID: pp.PatientID}); err != nil {
		return nil, err
	}
	if err := req.validate(); err != nil {
		return nil, err
	}
	recordedAt, err := s.timestamp(req.Date)
	if err != nil {
		return nil, err
	}

	v := &store.VitalLog{
		PatientID:              pp.PatientID,
		RecordedAt:             recordedAt,
		BloodPressureSystolic:  req.BloodPressureSystolic,
		BloodPressureDiastolic: req.BloodPressureDiastolic,
		Weight:                 req.Weight,
		Glucose:                req.Glucose,
		Temperature:            req.Temperature,
		Notes:                  notes(req.Notes),
	}
	if err := s.store.Vitals().Create(ctx, v); err != nil {
		return nil, apperror.FromStore(err, "patient")
	}
	return v, nil
}

func (s *Service) Get(ctx context.Context, p auth.Principal, id uuid.UUID) (*store.VitalLog, error) {
	return s.load(ctx, p, auth.ActionRead, id)
}

func (s *Service) Update(ctx context.Context, p auth.Principal, id uuid.UUID, req UpdateRequest) (*store.VitalLog, error) {
	v, err := s.load(ctx, p, auth.ActionUpdate, id)
	if err != nil {
		return nil, err
	}
	if err := req.apply(v); err != nil {
		return nil, err
	}
	if req.Date.HasValue() {
		t, err := s.timestamp(&req.Date.Value)
		if err != nil {
			return nil, err
		}
		v.RecordedAt = t
	}
	if err := s.store.Vitals().Update(ctx, v); err != nil {
		return nil, apperror.FromStore(err, resourceKind)
	}
	return v, nil
}

func (s *Service) Delete(ctx context.Context, p auth.Principal, id uuid.UUID) error {
	if _, err := s.load(ctx, p, auth.ActionDelete, id); err != nil {
		return err
	}
	if err := s.store.Vitals().Delete(ctx, id); err != nil {
		return apperror.FromStore(err, resourceKind)
	}
	return nil
}

// List returns a patient's vitals newest first. Patients default to their
// own record; hospitals must name a patient they manage.
func (s *Service) List(ctx context.Context, p auth.Principal, patientID *uuid.UUID, limit, offset int) ([]*store.VitalLog, int, error) {
	target, err := auth.TargetPatient(p, patientID)
	if err != nil {
		return nil, 0, err
	}
	res, err := auth.LoadRecordResource(ctx, s.store.Patients(), resourceKind, target)
	if err != nil {
		return nil, 0, err
	}
	if err := auth.Check(p, auth.ActionRead, res); err != nil {
		return nil, 0, err
	}
	out, total, err := s.store.Vitals().ListByPatient(ctx, target, limit, offset)
	if err != nil {
		return nil, 0, apperror.Internal(err)
	}
	return out, total, nil
}

func (s *Service) load(ctx context.Context, p auth.Principal, action auth.Action, id uuid.UUID) (*store.VitalLog, error) {
	if p == nil {
		return nil, apperror.Unauthenticated("authentication required")
	}
	v, err := s.store.Vitals().GetByID(ctx, id)
	if err != nil {
		return nil, apperror.FromStore(err, resourceKind)
	}
	res, err := auth.LoadRecordResource(ctx, s.store.Patients(), resourceKind, v.PatientID)
	if err != nil {
		return nil, err
	}
	if err := auth.Check(p, action, res); err != nil {
		return nil, err
	}
	return v, nil
}

func (s *Service) timestamp(raw *string) (time.Time, error) {
	if raw == nil || *raw == "" {
		return s.now().UTC(), nil
	}
	t, err := dates.ParseTimestamp(*raw, s.loc)
	if err != nil {
		return time.Time{}, apperror.Validation("date", "date must be an ISO-8601 date or timestamp")
	}
	return t, nil
}
