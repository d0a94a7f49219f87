// Package storetest is a behavioural suite every store.Store backend must
// pass. Tests create their own accounts with random emails so the suite can
// share a database with other runs.
package storetest

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/postcare/postcare/internal/store"
)

// Factory returns a ready store for one test.
type Factory func(t *testing.T) store.Store

// Run executes the suite.
func Run(t *testing.T, newStore Factory) {
	tests := []struct {
		name string
		fn   func(t *testing.T, s store.Store)
	}{
		{"DuplicateEmail", testDuplicateEmail},
		{"PatientAccountAndAssignment", testPatientAccount},
		{"PlanCreateWithMedications", testPlanCreate},
		{"PlanCreateMissingPatient", testPlanMissingPatient},
		{"PlanUpdateAndList", testPlanUpdateAndList},
		{"MedicationOrigin", testMedicationOrigin},
		{"SelfAddedMedicationLifecycle", testSelfAddedLifecycle},
		{"PlanMedicationIsReadOnly", testPlanMedicationReadOnly},
		{"VitalsNewestFirst", testVitals},
		{"UpsertIdempotent", testUpsertIdempotent},
		{"UpsertDistinctDays", testUpsertDistinctDays},
		{"UpsertConcurrent", testUpsertConcurrent},
		{"LogFiltersAndUpdate", testLogFilters},
		{"PatientSearch", testPatientSearch},
		{"PatientSearchAfterRelink", testPatientSearchAfterRelink},
		{"NextFollowUp", testNextFollowUp},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.fn(t, newStore(t))
		})
	}
}

func day(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func ptr[T any](v T) *T { return &v }

func uniqueEmail(prefix string) string {
	return fmt.Sprintf("%s-%s@example.com", prefix, uuid.NewString()[:8])
}

// Fixture is a hospital with one linked patient.
type Fixture struct {
	Hospital *store.Hospital
	Patient  *store.Patient
}

// NewHospital creates a HOSPITAL account.
func NewHospital(t *testing.T, s store.Store, name string) *store.Hospital {
	t.Helper()
	u := &store.User{Email: uniqueEmail("hospital"), PasswordHash: "x", Role: store.RoleHospital, Name: name}
	h := &store.Hospital{Name: name}
	require.NoError(t, s.Users().CreateHospitalAccount(context.Background(), u, h))
	return h
}

// NewPatient creates a PATIENT account, optionally linked to a hospital.
func NewPatient(t *testing.T, s store.Store, name, phone string, hospitalID *uuid.UUID) *store.Patient {
	t.Helper()
	u := &store.User{Email: uniqueEmail("patient"), PasswordHash: "x", Role: store.RolePatient, Name: name}
	p := &store.Patient{Name: name, HospitalID: hospitalID}
	if phone != "" {
		p.Phone = &phone
	}
	require.NoError(t, s.Users().CreatePatientAccount(context.Background(), u, p))
	return p
}

func newFixture(t *testing.T, s store.Store) Fixture {
	h := NewHospital(t, s, "General")
	p := NewPatient(t, s, "Ana Lopez", "555-0100", &h.ID)
	return Fixture{Hospital: h, Patient: p}
}

func newPlan(t *testing.T, s store.Store, f Fixture, meds ...store.Medication) *store.DischargePlan {
	t.Helper()
	return NewPlan(t, s, f.Hospital.ID, f.Patient.ID, meds...)
}

// NewPlan creates a discharge plan issued by hospitalID to patientID.
func NewPlan(t *testing.T, s store.Store, hospitalID, patientID uuid.UUID, meds ...store.Medication) *store.DischargePlan {
	t.Helper()
	plan := &store.DischargePlan{
		PatientID:     patientID,
		HospitalID:    hospitalID,
		DischargeDate: day("2026-02-10"),
		Diagnosis:     "CHF",
		Instructions:  "Low sodium diet",
		Medications:   meds,
	}
	require.NoError(t, s.Plans().Create(context.Background(), plan))
	return plan
}

func selfAdded(t *testing.T, s store.Store, patientID uuid.UUID, name string) *store.Medication {
	t.Helper()
	return NewSelfAdded(t, s, patientID, name, day("2026-03-01"))
}

// NewSelfAdded creates a patient-added medication starting on start.
func NewSelfAdded(t *testing.T, s store.Store, patientID uuid.UUID, name string, start time.Time) *store.Medication {
	t.Helper()
	m := &store.Medication{
		Name: name, Dosage: "200mg", Frequency: "as needed",
		StartDate: start, PatientID: &patientID,
	}
	require.NoError(t, s.Medications().Create(context.Background(), m))
	return m
}

func testDuplicateEmail(t *testing.T, s store.Store) {
	ctx := context.Background()
	email := uniqueEmail("dup")
	first := &store.User{Email: email, PasswordHash: "x", Role: store.RolePatient, Name: "A"}
	require.NoError(t, s.Users().CreatePatientAccount(ctx, first, &store.Patient{Name: "A"}))

	second := &store.User{Email: email, PasswordHash: "x", Role: store.RoleHospital, Name: "B"}
	err := s.Users().CreateHospitalAccount(ctx, second, &store.Hospital{Name: "B"})
	assert.ErrorIs(t, err, store.ErrDuplicateEmail)

	got, err := s.Users().GetByEmail(ctx, strings.ToUpper(email))
	require.NoError(t, err)
	assert.Equal(t, first.ID, got.ID)
	assert.Equal(t, store.RolePatient, got.Role)

	_, err = s.Users().GetByEmail(ctx, uniqueEmail("nobody"))
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func testPatientAccount(t *testing.T, s store.Store) {
	ctx := context.Background()
	p := NewPatient(t, s, "Solo", "", nil)
	assert.Nil(t, p.HospitalID)

	byUser, err := s.Patients().GetByUserID(ctx, p.UserID)
	require.NoError(t, err)
	assert.Equal(t, p.ID, byUser.ID)

	h := NewHospital(t, s, "Mercy")
	updated, err := s.Patients().AssignHospital(ctx, p.ID, h.ID)
	require.NoError(t, err)
	require.NotNil(t, updated.HospitalID)
	assert.Equal(t, h.ID, *updated.HospitalID)

	hByUser, err := s.Hospitals().GetByUserID(ctx, h.UserID)
	require.NoError(t, err)
	assert.Equal(t, h.ID, hByUser.ID)

	_, err = s.Patients().GetByID(ctx, uuid.New())
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func testPlanCreate(t *testing.T, s store.Store) {
	ctx := context.Background()
	f := newFixture(t, s)
	plan := newPlan(t, s, f,
		store.Medication{Name: "Furosemide", Dosage: "40mg", Frequency: "daily", StartDate: day("2026-02-10"), EndDate: ptr(day("2026-03-10"))},
		store.Medication{Name: "Lisinopril", Dosage: "10mg", Frequency: "daily", StartDate: day("2026-02-10")},
	)

	got, err := s.Plans().GetByID(ctx, plan.ID)
	require.NoError(t, err)
	require.Len(t, got.Medications, 2)
	for _, m := range got.Medications {
		require.NotNil(t, m.DischargePlanID)
		assert.Equal(t, plan.ID, *m.DischargePlanID)
		assert.Nil(t, m.PatientID)
	}
	assert.Equal(t, "2026-02-10", got.DischargeDate.Format("2006-01-02"))

	all, err := s.Medications().ListForPatient(ctx, f.Patient.ID)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	n, err := s.Plans().CountByHospital(ctx, f.Hospital.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func testPlanMissingPatient(t *testing.T, s store.Store) {
	ctx := context.Background()
	h := NewHospital(t, s, "Ghost")
	plan := &store.DischargePlan{
		PatientID: uuid.New(), HospitalID: h.ID, DischargeDate: day("2026-02-10"),
		Diagnosis: "x", Instructions: "y",
		Medications: []store.Medication{{Name: "A", Dosage: "1", Frequency: "d", StartDate: day("2026-02-10")}},
	}
	err := s.Plans().Create(ctx, plan)
	assert.ErrorIs(t, err, store.ErrMissingParent)

	plans, total, err := s.Plans().List(ctx, store.PlanFilter{HospitalID: &h.ID}, 10, 0)
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, plans)
}

func testPlanUpdateAndList(t *testing.T, s store.Store) {
	ctx := context.Background()
	f := newFixture(t, s)
	first := newPlan(t, s, f)
	second := newPlan(t, s, f)

	second.Diagnosis = "COPD"
	second.FollowUpDate = ptr(day("2026-04-01"))
	require.NoError(t, s.Plans().Update(ctx, second))
	assert.Equal(t, f.Patient.ID, second.PatientID)

	plans, total, err := s.Plans().List(ctx, store.PlanFilter{PatientID: &f.Patient.ID}, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	require.Len(t, plans, 2)
	assert.Equal(t, second.ID, plans[0].ID, "newest first")
	assert.Equal(t, first.ID, plans[1].ID)
	assert.Equal(t, "COPD", plans[0].Diagnosis)

	err = s.Plans().Update(ctx, &store.DischargePlan{ID: uuid.New(), DischargeDate: day("2026-01-01")})
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func testMedicationOrigin(t *testing.T, s store.Store) {
	ctx := context.Background()
	f := newFixture(t, s)
	plan := newPlan(t, s, f)

	both := &store.Medication{Name: "X", Dosage: "1", Frequency: "d", StartDate: day("2026-03-01"),
		PatientID: &f.Patient.ID, DischargePlanID: &plan.ID}
	assert.ErrorIs(t, s.Medications().Create(ctx, both), store.ErrInvalidOrigin)

	neither := &store.Medication{Name: "X", Dosage: "1", Frequency: "d", StartDate: day("2026-03-01")}
	assert.ErrorIs(t, s.Medications().Create(ctx, neither), store.ErrInvalidOrigin)

	orphan := uuid.New()
	missing := &store.Medication{Name: "X", Dosage: "1", Frequency: "d", StartDate: day("2026-03-01"), PatientID: &orphan}
	assert.ErrorIs(t, s.Medications().Create(ctx, missing), store.ErrMissingParent)
}

func testSelfAddedLifecycle(t *testing.T, s store.Store) {
	ctx := context.Background()
	f := newFixture(t, s)
	m := selfAdded(t, s, f.Patient.ID, "Ibuprofen")

	m.Dosage = "400mg"
	m.EndDate = ptr(day("2026-03-05"))
	require.NoError(t, s.Medications().Update(ctx, m))
	got, err := s.Medications().GetByID(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, "400mg", got.Dosage)
	require.NotNil(t, got.EndDate)
	assert.True(t, got.SelfAdded())

	for _, d := range []string{"2026-03-01", "2026-03-02"} {
		_, err := s.MedicationLogs().Upsert(ctx, &store.MedicationLog{
			PatientID: f.Patient.ID, MedicationID: m.ID, Day: day(d), Taken: true,
		})
		require.NoError(t, err)
	}

	require.NoError(t, s.Medications().DeleteSelfAdded(ctx, m.ID))
	_, err = s.Medications().GetByID(ctx, m.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)

	logs, total, err := s.MedicationLogs().ListByPatient(ctx, f.Patient.ID, store.LogFilter{}, 50, 0)
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, logs)

	assert.ErrorIs(t, s.Medications().DeleteSelfAdded(ctx, m.ID), store.ErrNotFound)
}

func testPlanMedicationReadOnly(t *testing.T, s store.Store) {
	ctx := context.Background()
	f := newFixture(t, s)
	plan := newPlan(t, s, f, store.Medication{Name: "Furosemide", Dosage: "40mg", Frequency: "daily", StartDate: day("2026-02-10")})
	med := plan.Medications[0]

	med.Dosage = "80mg"
	assert.ErrorIs(t, s.Medications().Update(ctx, &med), store.ErrNotFound)
	assert.ErrorIs(t, s.Medications().DeleteSelfAdded(ctx, med.ID), store.ErrNotFound)

	self, err := s.Medications().ListSelfAdded(ctx, f.Patient.ID)
	require.NoError(t, err)
	assert.Empty(t, self)
}

func testVitals(t *testing.T, s store.Store) {
	ctx := context.Background()
	f := newFixture(t, s)
	base := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		v := &store.VitalLog{PatientID: f.Patient.ID, RecordedAt: base.Add(time.Duration(i) * time.Hour), Weight: ptr(80.5 - float64(i))}
		require.NoError(t, s.Vitals().Create(ctx, v))
	}

	vitals, total, err := s.Vitals().ListByPatient(ctx, f.Patient.ID, 2, 0)
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, vitals, 2)
	assert.True(t, vitals[0].RecordedAt.After(vitals[1].RecordedAt))

	v := vitals[0]
	v.Notes = ptr("after walk")
	v.Weight = nil
	require.NoError(t, s.Vitals().Update(ctx, v))
	got, err := s.Vitals().GetByID(ctx, v.ID)
	require.NoError(t, err)
	assert.Nil(t, got.Weight)
	require.NotNil(t, got.Notes)
	assert.Equal(t, "after walk", *got.Notes)

	require.NoError(t, s.Vitals().Delete(ctx, v.ID))
	assert.ErrorIs(t, s.Vitals().Delete(ctx, v.ID), store.ErrNotFound)

	_, total, err = s.Vitals().ListByPatient(ctx, f.Patient.ID, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, total)
}

func testUpsertIdempotent(t *testing.T, s store.Store) {
	ctx := context.Background()
	f := newFixture(t, s)
	m := selfAdded(t, s, f.Patient.ID, "Ibuprofen")

	first := &store.MedicationLog{PatientID: f.Patient.ID, MedicationID: m.ID, Day: day("2026-03-01"), Taken: true}
	created, err := s.MedicationLogs().Upsert(ctx, first)
	require.NoError(t, err)
	assert.True(t, created)

	second := &store.MedicationLog{PatientID: f.Patient.ID, MedicationID: m.ID, Day: day("2026-03-01"), Taken: false, Notes: ptr("skipped")}
	created, err = s.MedicationLogs().Upsert(ctx, second)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID)
	require.NotNil(t, second.Medication)
	assert.Equal(t, "Ibuprofen", second.Medication.Name)

	logs, total, err := s.MedicationLogs().ListByPatient(ctx, f.Patient.ID, store.LogFilter{}, 50, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, logs, 1)
	assert.False(t, logs[0].Taken)
	require.NotNil(t, logs[0].Notes)
	assert.Equal(t, "skipped", *logs[0].Notes)
}

func testUpsertDistinctDays(t *testing.T, s store.Store) {
	ctx := context.Background()
	f := newFixture(t, s)
	m := selfAdded(t, s, f.Patient.ID, "Ibuprofen")

	for _, d := range []string{"2026-03-01", "2026-03-02"} {
		created, err := s.MedicationLogs().Upsert(ctx, &store.MedicationLog{
			PatientID: f.Patient.ID, MedicationID: m.ID, Day: day(d), Taken: true,
		})
		require.NoError(t, err)
		assert.True(t, created)
	}

	logs, total, err := s.MedicationLogs().ListByPatient(ctx, f.Patient.ID, store.LogFilter{}, 50, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Equal(t, "2026-03-02", logs[0].Day.Format("2006-01-02"), "newest day first")
}

func testUpsertConcurrent(t *testing.T, s store.Store) {
	ctx := context.Background()
	f := newFixture(t, s)
	m := selfAdded(t, s, f.Patient.ID, "Ibuprofen")

	const workers = 8
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := s.MedicationLogs().Upsert(ctx, &store.MedicationLog{
				PatientID: f.Patient.ID, MedicationID: m.ID, Day: day("2026-03-01"), Taken: i%2 == 0,
			})
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	_, total, err := s.MedicationLogs().ListByPatient(ctx, f.Patient.ID, store.LogFilter{}, 50, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
}

func testLogFilters(t *testing.T, s store.Store) {
	ctx := context.Background()
	f := newFixture(t, s)
	a := selfAdded(t, s, f.Patient.ID, "A")
	b := selfAdded(t, s, f.Patient.ID, "B")

	for _, d := range []string{"2026-03-01", "2026-03-02", "2026-03-03"} {
		for _, m := range []*store.Medication{a, b} {
			_, err := s.MedicationLogs().Upsert(ctx, &store.MedicationLog{PatientID: f.Patient.ID, MedicationID: m.ID, Day: day(d), Taken: true})
			require.NoError(t, err)
		}
	}

	logs, total, err := s.MedicationLogs().ListByPatient(ctx, f.Patient.ID, store.LogFilter{MedicationID: &a.ID}, 50, 0)
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	for _, l := range logs {
		assert.Equal(t, a.ID, l.MedicationID)
	}

	from, to := day("2026-03-02"), day("2026-03-02")
	_, total, err = s.MedicationLogs().ListByPatient(ctx, f.Patient.ID, store.LogFilter{From: &from, To: &to}, 50, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, total)

	forDay, err := s.MedicationLogs().ListForDay(ctx, f.Patient.ID, day("2026-03-03"))
	require.NoError(t, err)
	assert.Len(t, forDay, 2)

	target := forDay[0]
	target.Taken = false
	target.Notes = ptr("nausea")
	require.NoError(t, s.MedicationLogs().Update(ctx, target))
	got, err := s.MedicationLogs().GetByID(ctx, target.ID)
	require.NoError(t, err)
	assert.False(t, got.Taken)

	require.NoError(t, s.MedicationLogs().Delete(ctx, target.ID))
	_, err = s.MedicationLogs().GetByID(ctx, target.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)

	// The key is free again once the row is gone.
	created, err := s.MedicationLogs().Upsert(ctx, &store.MedicationLog{PatientID: target.PatientID, MedicationID: target.MedicationID, Day: target.Day})
	require.NoError(t, err)
	assert.True(t, created)
}

func testPatientSearch(t *testing.T, s store.Store) {
	ctx := context.Background()
	h := NewHospital(t, s, "Search General")
	other := NewHospital(t, s, "Elsewhere")
	ana := NewPatient(t, s, "Ana Lopez", "555-0100", &h.ID)
	NewPatient(t, s, "Bob 100% Real", "555-0199", &h.ID)
	NewPatient(t, s, "Ana Outsider", "555-0100", &other.ID)
	newPlan(t, s, Fixture{Hospital: h, Patient: ana})

	items, total, err := s.Patients().Search(ctx, store.PatientSearch{HospitalID: h.ID, Limit: 20})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	require.Len(t, items, 2)
	assert.Equal(t, "Bob 100% Real", items[0].Name, "newest first")

	items, total, err = s.Patients().Search(ctx, store.PatientSearch{HospitalID: h.ID, Query: "ana", Limit: 20})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, items, 1)
	assert.Equal(t, ana.ID, items[0].ID)
	assert.Equal(t, 1, items[0].PlanCount)
	require.NotNil(t, items[0].LatestPlan)
	assert.Equal(t, "CHF", items[0].LatestPlan.Diagnosis)
	assert.Contains(t, items[0].Email, "@example.com")

	_, total, err = s.Patients().Search(ctx, store.PatientSearch{HospitalID: h.ID, Query: "0199", Limit: 20})
	require.NoError(t, err)
	assert.Equal(t, 1, total)

	_, total, err = s.Patients().Search(ctx, store.PatientSearch{HospitalID: h.ID, Query: "0%", Limit: 20})
	require.NoError(t, err)
	assert.Equal(t, 1, total, "percent matches literally")

	n, err := s.Patients().CountByHospital(ctx, h.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func testPatientSearchAfterRelink(t *testing.T, s store.Store) {
	ctx := context.Background()
	first := NewHospital(t, s, "First")
	second := NewHospital(t, s, "Second")
	p := NewPatient(t, s, "Ana Lopez", "555-0100", &first.ID)
	NewPlan(t, s, first.ID, p.ID)

	_, err := s.Patients().AssignHospital(ctx, p.ID, second.ID)
	require.NoError(t, err)

	items, total, err := s.Patients().Search(ctx, store.PatientSearch{HospitalID: second.ID, Limit: 20})
	require.NoError(t, err)
	require.Equal(t, 1, total)
	assert.Zero(t, items[0].PlanCount)
	assert.Nil(t, items[0].LatestPlan, "plans of the previous hospital stay hidden")

	own := NewPlan(t, s, second.ID, p.ID)
	items, _, err = s.Patients().Search(ctx, store.PatientSearch{HospitalID: second.ID, Limit: 20})
	require.NoError(t, err)
	assert.Equal(t, 1, items[0].PlanCount)
	require.NotNil(t, items[0].LatestPlan)
	assert.Equal(t, own.ID, items[0].LatestPlan.ID)
}

func testNextFollowUp(t *testing.T, s store.Store) {
	ctx := context.Background()
	f := newFixture(t, s)
	for _, d := range []string{"2026-01-15", "2026-04-01", "2026-03-20"} {
		p := newPlan(t, s, f)
		p.FollowUpDate = ptr(day(d))
		require.NoError(t, s.Plans().Update(ctx, p))
	}

	next, err := s.Plans().NextFollowUp(ctx, f.Patient.ID, day("2026-03-01"))
	require.NoError(t, err)
	require.NotNil(t, next)
	assert.Equal(t, "2026-03-20", next.Format("2006-01-02"))

	none, err := s.Plans().NextFollowUp(ctx, f.Patient.ID, day("2026-05-01"))
	require.NoError(t, err)
	assert.Nil(t, none)
}
