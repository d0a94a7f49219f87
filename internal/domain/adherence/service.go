package adherence

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/postcare/postcare/internal/domain/medication"
	"github.com/postcare/postcare/internal/platform/apperror"
	"github.com/postcare/postcare/internal/platform/auth"
	"github.com/postcare/postcare/internal/platform/httpx"
	"github.com/postcare/postcare/internal/store"
	"github.com/postcare/postcare/pkg/dates"
)

const resourceKind = "medication log"

type Service struct {
	store   store.Store
	meds    *medication.Service
	loc     *time.Location
	now     func() time.Time
	upserts *prometheus.CounterVec
	logger  zerolog.Logger
}

// NewService returns the adherence service. Timestamps are bucketed into
// calendar days in loc. The upsert counter is registered on reg when it is
// not nil.
func NewService(st store.Store, meds *medication.Service, loc *time.Location, reg prometheus.Registerer, logger zerolog.Logger) *Service {
	if loc == nil {
		loc = time.UTC
	}
	upserts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "postcare_adherence_upserts_total",
		Help: "Adherence log writes by outcome.",
	}, []string{"result"})
	if reg != nil {
		reg.MustRegister(upserts)
	}
	return &Service{
		store:   st,
		meds:    meds,
		loc:     loc,
		now:     time.Now,
		upserts: upserts,
		logger:  logger,
	}
}

// Record creates or updates the caller's log for (medication, day). It
// returns whether a new row was created.
func (s *Service) Record(ctx context.Context, p auth.Principal, req RecordRequest) (*store.MedicationLog, bool, error) {
	pp, err := auth.AsPatient(p)
	if err != nil {
		return nil, false, err
	}
	if err := auth.Check(p, auth.ActionCreate, auth.PatientRecordResource{Kind: resourceKind, PatientID: pp.PatientID}); err != nil {
		return nil, false, err
	}

	raw, err := httpx.Required("medication_id", req.MedicationID)
	if err != nil {
		return nil, false, err
	}
	medID, err := uuid.Parse(raw)
	if err != nil {
		return nil, false, apperror.Validation("medication_id", "medication_id must be a UUID")
	}
	day, err := s.day(req.Date)
	if err != nil {
		return nil, false, err
	}
	if _, err := s.meds.Get(ctx, p, medID); err != nil {
		return nil, false, err
	}

	l := &store.MedicationLog{
		PatientID:    pp.PatientID,
		MedicationID: medID,
		Day:          day,
		Taken:        req.Taken != nil && *req.Taken,
		Notes:        notes(req.Notes),
	}
	created, err := s.store.MedicationLogs().Upsert(ctx, l)
	if err != nil {
		return nil, false, apperror.FromStore(err, "medication")
	}

	result := "updated"
	if created {
		result = "created"
	}
	s.upserts.WithLabelValues(result).Inc()
	s.logger.Debug().
		Str("log_id", l.ID.String()).
		Str("medication_id", medID.String()).
		Str("day", dates.Format(day)).
		Bool("taken", l.Taken).
		Str("result", result).
		Msg("adherence recorded")
	return l, created, nil
}

func (s *Service) Get(ctx context.Context, p auth.Principal, id uuid.UUID) (*store.MedicationLog, error) {
	return s.load(ctx, p, auth.ActionRead, id)
}

func (s *Service) Update(ctx context.Context, p auth.Principal, id uuid.UUID, req UpdateRequest) (*store.MedicationLog, error) {
	l, err := s.load(ctx, p, auth.ActionUpdate, id)
	if err != nil {
		return nil, err
	}
	if req.Taken.Set {
		if req.Taken.Null {
			return nil, apperror.Validation("taken", "taken must be true or false")
		}
		l.Taken = req.Taken.Value
	}
	if req.Notes.Set {
		l.Notes = nil
		if req.Notes.HasValue() {
			l.Notes = notes(&req.Notes.Value)
		}
	}
	if err := s.store.MedicationLogs().Update(ctx, l); err != nil {
		return nil, apperror.FromStore(err, resourceKind)
	}
	return l, nil
}

func (s *Service) Delete(ctx context.Context, p auth.Principal, id uuid.UUID) error {
	if _, err := s.load(ctx, p, auth.ActionDelete, id); err != nil {
		return err
	}
	if err := s.store.MedicationLogs().Delete(ctx, id); err != nil {
		return apperror.FromStore(err, resourceKind)
	}
	return nil
}

// List returns a patient's logs newest day first.
func (s *Service) List(ctx context.Context, p auth.Principal, patientID *uuid.UUID, f store.LogFilter, limit, offset int) ([]*store.MedicationLog, int, error) {
	target, err := s.readable(ctx, p, patientID)
	if err != nil {
		return nil, 0, err
	}
	logs, total, err := s.store.MedicationLogs().ListByPatient(ctx, target, f, limit, offset)
	if err != nil {
		return nil, 0, apperror.Internal(err)
	}
	return logs, total, nil
}

// Summary is the adherence rate over the patient's last SummaryWindow logs.
func (s *Service) Summary(ctx context.Context, p auth.Principal, patientID *uuid.UUID) (Summary, error) {
	target, err := s.readable(ctx, p, patientID)
	if err != nil {
		return Summary{}, err
	}
	logs, _, err := s.store.MedicationLogs().ListByPatient(ctx, target, store.LogFilter{}, SummaryWindow, 0)
	if err != nil {
		return Summary{}, apperror.Internal(err)
	}
	return Summarize(logs), nil
}

// Today is the current calendar day in the configured zone.
func (s *Service) Today() time.Time {
	return dates.Today(s.now(), s.loc)
}

func (s *Service) readable(ctx context.Context, p auth.Principal, patientID *uuid.UUID) (uuid.UUID, error) {
	target, err := auth.TargetPatient(p, patientID)
	if err != nil {
		return uuid.Nil, err
	}
	res, err := auth.LoadRecordResource(ctx, s.store.Patients(), resourceKind, target)
	if err != nil {
		return uuid.Nil, err
	}
	if err := auth.Check(p, auth.ActionRead, res); err != nil {
		return uuid.Nil, err
	}
	return target, nil
}

func (s *Service) load(ctx context.Context, p auth.Principal, action auth.Action, id uuid.UUID) (*store.MedicationLog, error) {
	if p == nil {
		return nil, apperror.Unauthenticated("authentication required")
	}
	l, err := s.store.MedicationLogs().GetByID(ctx, id)
	if err != nil {
		return nil, apperror.FromStore(err, resourceKind)
	}
	res, err := auth.LoadRecordResource(ctx, s.store.Patients(), resourceKind, l.PatientID)
	if err != nil {
		return nil, err
	}
	if err := auth.Check(p, action, res); err != nil {
		return nil, err
	}
	return l, nil
}

func (s *Service) day(raw *string) (time.Time, error) {
	if raw == nil || *raw == "" {
		return s.Today(), nil
	}
	d, err := dates.ParseDayOrTimestamp(*raw, s.loc)
	if err != nil {
		return time.Time{}, apperror.Validation("date", "date must be an ISO-8601 date or timestamp")
	}
	return d, nil
}
