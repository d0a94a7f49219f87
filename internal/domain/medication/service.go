package medication

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/postcare/postcare/internal/platform/apperror"
	"github.com/postcare/postcare/internal/platform/auth"
	"github.com/postcare/postcare/internal/store"
	"github.com/postcare/postcare/pkg/dates"
)

type Service struct {
	store store.Store
	loc   *time.Location
	now   func() time.Time
}

// NewService returns the medication service. loc decides which calendar
// day "today" is.
func NewService(st store.Store, loc *time.Location) *Service {
	if loc == nil {
		loc = time.UTC
	}
	return &Service{store: st, loc: loc, now: time.Now}
}

// SetClock replaces the clock used for Today.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// Today is the current calendar day in the configured zone.
func (s *Service) Today() time.Time {
	return dates.Today(s.now(), s.loc)
}

// ListSelfAdded returns the calling patient's own medications.
func (s *Service) ListSelfAdded(ctx context.Context, p auth.Principal) ([]*store.Medication, error) {
	pp, err := auth.AsPatient(p)
	if err != nil {
		return nil, err
	}
	meds, err := s.store.Medications().ListSelfAdded(ctx, pp.PatientID)
	if err != nil {
		return nil, apperror.Internal(err)
	}
	return meds, nil
}

func (s *Service) Create(ctx context.Context, p auth.Principal, in Input) (*store.Medication, error) {
	pp, err := auth.AsPatient(p)
	if err != nil {
		return nil, err
	}
	if err := auth.Check(p, auth.ActionCreate, auth.MedicationResource{SelfAdded: true, PatientID: pp.PatientID}); err != nil {
		return nil, err
	}
	m, err := in.ToMedication("")
	if err != nil {
		return nil, err
	}
	patientID := pp.PatientID
	m.PatientID = &patientID
	if err := s.store.Medications().Create(ctx, &m); err != nil {
		return nil, apperror.FromStore(err, "patient")
	}
	return &m, nil
}

// Get returns a medication visible to the caller.
func (s *Service) Get(ctx context.Context, p auth.Principal, id uuid.UUID) (*store.Medication, error) {
	m, err := s.load(ctx, p, auth.ActionRead, id)
	if err != nil {
		return nil, err
	}
	return m, nil
}

// Update patches a self-added medication. Plan-issued medications are
// read-only for everyone.
func (s *Service) Update(ctx context.Context, p auth.Principal, id uuid.UUID, req UpdateRequest) (*store.Medication, error) {
	m, err := s.load(ctx, p, auth.ActionUpdate, id)
	if err != nil {
		return nil, err
	}
	if err := req.Apply(m); err != nil {
		return nil, err
	}
	if err := s.store.Medications().Update(ctx, m); err != nil {
		return nil, apperror.FromStore(err, "medication")
	}
	return m, nil
}

// Delete removes a self-added medication and all of its adherence logs.
func (s *Service) Delete(ctx context.Context, p auth.Principal, id uuid.UUID) error {
	if _, err := s.load(ctx, p, auth.ActionDelete, id); err != nil {
		return err
	}
	if err := s.store.Medications().DeleteSelfAdded(ctx, id); err != nil {
		return apperror.FromStore(err, "medication")
	}
	return nil
}

// load fetches the medication and runs the guard for action.
func (s *Service) load(ctx context.Context, p auth.Principal, action auth.Action, id uuid.UUID) (*store.Medication, error) {
	if p == nil {
		return nil, apperror.Unauthenticated("authentication required")
	}
	m, err := s.store.Medications().GetByID(ctx, id)
	if err != nil {
		return nil, apperror.FromStore(err, "medication")
	}
	res, err := s.Resource(ctx, m)
	if err != nil {
		return nil, err
	}
	if err := auth.Check(p, action, res); err != nil {
		return nil, err
	}
	return m, nil
}

// Resource describes m's ownership for the guard. Plan-issued medications
// inherit the plan's hospital and patient.
func (s *Service) Resource(ctx context.Context, m *store.Medication) (auth.MedicationResource, error) {
	if m.SelfAdded() {
		return auth.MedicationResource{SelfAdded: true, PatientID: *m.PatientID}, nil
	}
	if m.DischargePlanID == nil {
		return auth.MedicationResource{}, apperror.Internal(store.ErrInvalidOrigin)
	}
	plan, err := s.store.Plans().GetByID(ctx, *m.DischargePlanID)
	if err != nil {
		return auth.MedicationResource{}, apperror.FromStore(err, "medication")
	}
	return auth.MedicationResource{PatientID: plan.PatientID, HospitalID: plan.HospitalID}, nil
}

// Active filters meds to those active on day.
func Active(meds []*store.Medication, day time.Time) []*store.Medication {
	return lo.Filter(meds, func(m *store.Medication, _ int) bool {
		return m.ActiveOn(day)
	})
}

// Schedule lists every medication active on day for the calling patient,
// plan-issued and self-added, each paired with that day's log.
func (s *Service) Schedule(ctx context.Context, p auth.Principal, day time.Time) (*Schedule, error) {
	pp, err := auth.AsPatient(p)
	if err != nil {
		return nil, err
	}
	meds, err := s.store.Medications().ListForPatient(ctx, pp.PatientID)
	if err != nil {
		return nil, apperror.Internal(err)
	}
	logs, err := s.store.MedicationLogs().ListForDay(ctx, pp.PatientID, day)
	if err != nil {
		return nil, apperror.Internal(err)
	}
	byMedication := lo.KeyBy(logs, func(l *store.MedicationLog) uuid.UUID { return l.MedicationID })

	entries := lo.Map(Active(meds, day), func(m *store.Medication, _ int) ScheduleEntry {
		e := ScheduleEntry{Medication: *m, SelfAdded: m.SelfAdded()}
		if l, ok := byMedication[m.ID]; ok {
			e.Log = l
		}
		return e
	})
	return &Schedule{
		Date:    dates.Format(day),
		Entries: entries,
		Taken:   lo.CountBy(entries, func(e ScheduleEntry) bool { return e.Log != nil && e.Log.Taken }),
		Total:   len(entries),
	}, nil
}
