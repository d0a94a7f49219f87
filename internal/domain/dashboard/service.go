package dashboard

import (
	"context"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/postcare/postcare/internal/domain/adherence"
	"github.com/postcare/postcare/internal/domain/medication"
	"github.com/postcare/postcare/internal/platform/apperror"
	"github.com/postcare/postcare/internal/platform/auth"
	"github.com/postcare/postcare/internal/store"
	"github.com/postcare/postcare/pkg/dates"
)

type Service struct {
	store store.Store
	meds  *medication.Service
}

func NewService(st store.Store, meds *medication.Service) *Service {
	return &Service{store: st, meds: meds}
}

// PatientDetail assembles the patient page. A hospital only sees the plans
// it issued itself.
func (s *Service) PatientDetail(ctx context.Context, p auth.Principal, patientID uuid.UUID) (*PatientBundle, error) {
	if p == nil {
		return nil, apperror.Unauthenticated("authentication required")
	}
	patient, err := s.store.Patients().GetByID(ctx, patientID)
	if err != nil {
		return nil, apperror.FromStore(err, "patient")
	}
	if err := auth.Check(p, auth.ActionRead, auth.PatientResource{PatientID: patient.ID, HospitalID: patient.HospitalID}); err != nil {
		return nil, err
	}

	b := &PatientBundle{Patient: patient}
	user, err := s.store.Users().GetByID(ctx, patient.UserID)
	if err != nil {
		return nil, apperror.Internal(err)
	}
	b.Email = user.Email

	if patient.HospitalID != nil {
		h, err := s.store.Hospitals().GetByID(ctx, *patient.HospitalID)
		if err != nil {
			return nil, apperror.Internal(err)
		}
		b.HospitalName = &h.Name
	}

	filter := store.PlanFilter{PatientID: &patient.ID}
	if h, ok := p.(auth.HospitalPrincipal); ok {
		filter.HospitalID = &h.HospitalID
	}
	if b.Plans, _, err = s.store.Plans().List(ctx, filter, allPlans, 0); err != nil {
		return nil, apperror.Internal(err)
	}
	if b.Vitals, _, err = s.store.Vitals().ListByPatient(ctx, patient.ID, bundleVitals, 0); err != nil {
		return nil, apperror.Internal(err)
	}
	if b.MedicationLogs, _, err = s.store.MedicationLogs().ListByPatient(ctx, patient.ID, store.LogFilter{}, bundleLogs, 0); err != nil {
		return nil, apperror.Internal(err)
	}
	b.Adherence = adherence.Summarize(lo.Slice(b.MedicationLogs, 0, adherence.SummaryWindow))
	return b, nil
}

// Overview returns the landing page for the caller's role.
func (s *Service) Overview(ctx context.Context, p auth.Principal) (any, error) {
	switch pr := p.(type) {
	case auth.HospitalPrincipal:
		return s.hospitalOverview(ctx, pr)
	case auth.PatientPrincipal:
		return s.patientOverview(ctx, pr)
	}
	return nil, apperror.Unauthenticated("authentication required")
}

func (s *Service) hospitalOverview(ctx context.Context, h auth.HospitalPrincipal) (*HospitalOverview, error) {
	hospital, err := s.store.Hospitals().GetByID(ctx, h.HospitalID)
	if err != nil {
		return nil, apperror.FromStore(err, "hospital")
	}
	o := &HospitalOverview{Role: store.RoleHospital, HospitalName: hospital.Name}

	if o.PatientCount, err = s.store.Patients().CountByHospital(ctx, h.HospitalID); err != nil {
		return nil, apperror.Internal(err)
	}
	if o.PlanCount, err = s.store.Plans().CountByHospital(ctx, h.HospitalID); err != nil {
		return nil, apperror.Internal(err)
	}
	if o.RecentPlans, _, err = s.store.Plans().List(ctx, store.PlanFilter{HospitalID: &h.HospitalID}, recentPlans, 0); err != nil {
		return nil, apperror.Internal(err)
	}
	o.RecentPatients, _, err = s.store.Patients().Search(ctx, store.PatientSearch{HospitalID: h.HospitalID, Limit: recentPatients})
	if err != nil {
		return nil, apperror.Internal(err)
	}
	return o, nil
}

func (s *Service) patientOverview(ctx context.Context, pp auth.PatientPrincipal) (*PatientOverview, error) {
	patient, err := s.store.Patients().GetByID(ctx, pp.PatientID)
	if err != nil {
		return nil, apperror.FromStore(err, "patient")
	}
	today := s.meds.Today()
	o := &PatientOverview{Role: store.RolePatient, Patient: patient}

	if o.Today, err = s.meds.Schedule(ctx, pp, today); err != nil {
		return nil, err
	}
	vitals, _, err := s.store.Vitals().ListByPatient(ctx, pp.PatientID, 1, 0)
	if err != nil {
		return nil, apperror.Internal(err)
	}
	if len(vitals) > 0 {
		o.LatestVital = vitals[0]
	}
	next, err := s.store.Plans().NextFollowUp(ctx, pp.PatientID, today)
	if err != nil {
		return nil, apperror.Internal(err)
	}
	if next != nil {
		d := dates.NewDate(*next)
		o.NextFollowUp = &d
	}
	logs, _, err := s.store.MedicationLogs().ListByPatient(ctx, pp.PatientID, store.LogFilter{}, adherence.SummaryWindow, 0)
	if err != nil {
		return nil, apperror.Internal(err)
	}
	o.Adherence = adherence.Summarize(logs)
	return o, nil
}
