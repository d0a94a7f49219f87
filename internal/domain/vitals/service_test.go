package vitals

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/postcare/postcare/internal/platform/apperror"
	"github.com/postcare/postcare/internal/platform/auth"
	"github.com/postcare/postcare/internal/store"
	"github.com/postcare/postcare/internal/store/memory"
	"github.com/postcare/postcare/internal/store/storetest"
	"github.com/postcare/postcare/pkg/patch"
)

func ptr[T any](v T) *T { return &v }

type fixture struct {
	svc      *Service
	store    *memory.Store
	hospital *store.Hospital
	rival    *store.Hospital
	patient  *store.Patient
	other    *store.Patient
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st := memory.New()
	h := storetest.NewHospital(t, st, "General")
	svc := NewService(st, time.UTC)
	svc.now = func() time.Time { return time.Date(2026, 3, 5, 8, 30, 0, 0, time.UTC) }
	return &fixture{
		svc:      svc,
		store:    st,
		hospital: h,
		rival:    storetest.NewHospital(t, st, "Mercy"),
		patient:  storetest.NewPatient(t, st, "Ana", "", &h.ID),
		other:    storetest.NewPatient(t, st, "Ben", "", &h.ID),
	}
}

func asPatient(p *store.Patient) auth.Principal {
	return auth.PatientPrincipal{Subject: p.UserID, PatientID: p.ID}
}

func asHospital(h *store.Hospital) auth.Principal {
	return auth.HospitalPrincipal{Subject: h.UserID, HospitalID: h.ID}
}

func TestCreate(t *testing.T) {
	f := newFixture(t)

	v, err := f.svc.Create(context.Background(), asPatient(f.patient), CreateRequest{
		BloodPressureSystolic:  ptr(120),
		BloodPressureDiastolic: ptr(80),
		Weight:                 ptr(72.5),
		Notes:                  ptr("  after walk "),
	})
	require.NoError(t, err)
	assert.Equal(t, f.patient.ID, v.PatientID)
	assert.Equal(t, f.svc.now(), v.RecordedAt)
	require.NotNil(t, v.Notes)
	assert.Equal(t, "after walk", *v.Notes)
	assert.Nil(t, v.Glucose)

	v, err = f.svc.Create(context.Background(), asPatient(f.patient), CreateRequest{
		Date:        ptr("2026-03-01T21:15:00Z"),
		Temperature: ptr(37.2),
	})
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 3, 1, 21, 15, 0, 0, time.UTC), v.RecordedAt)
}

func TestCreate_Validation(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name  string
		req   CreateRequest
		field string
	}{
		{"negative systolic", CreateRequest{BloodPressureSystolic: ptr(-1)}, "blood_pressure_systolic"},
		{"zero diastolic", CreateRequest{BloodPressureDiastolic: ptr(0)}, "blood_pressure_diastolic"},
		{"systolic above range", CreateRequest{BloodPressureSystolic: ptr(maxPressure + 1)}, "blood_pressure_systolic"},
		{"diastolic overflows column", CreateRequest{BloodPressureDiastolic: ptr(1 << 31)}, "blood_pressure_diastolic"},
		{"negative weight", CreateRequest{Weight: ptr(-70.0)}, "weight"},
		{"zero glucose", CreateRequest{Glucose: ptr(0.0)}, "glucose"},
		{"bad date", CreateRequest{Date: ptr("yesterday")}, "date"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Create(context.Background(), asPatient(f.patient), tt.req)
			var ae *apperror.Error
			require.ErrorAs(t, err, &ae)
			assert.Equal(t, apperror.KindValidation, ae.Kind)
			assert.Equal(t, tt.field, ae.Field)
		})
	}
}

func TestCreate_HospitalDenied(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Create(context.Background(), asHospital(f.hospital), CreateRequest{Weight: ptr(70.0)})
	assert.True(t, apperror.Is(err, apperror.KindAuthorization))
}

func TestUpdate_Patch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	v, err := f.svc.Create(ctx, asPatient(f.patient), CreateRequest{
		BloodPressureSystolic: ptr(130), Weight: ptr(80.0), Notes: ptr("dizzy"),
	})
	require.NoError(t, err)

	got, err := f.svc.Update(ctx, asPatient(f.patient), v.ID, UpdateRequest{
		BloodPressureSystolic: patch.Of(125),
		Weight:                patch.Clear[float64](),
		Glucose:               patch.Of(5.4),
	})
	require.NoError(t, err)
	require.NotNil(t, got.BloodPressureSystolic)
	assert.Equal(t, 125, *got.BloodPressureSystolic)
	assert.Nil(t, got.Weight)
	require.NotNil(t, got.Glucose)
	assert.Equal(t, 5.4, *got.Glucose)
	require.NotNil(t, got.Notes, "absent notes stay unchanged")
	assert.Equal(t, "dizzy", *got.Notes)

	_, err = f.svc.Update(ctx, asPatient(f.patient), v.ID, UpdateRequest{Temperature: patch.Of(-3.0)})
	assert.True(t, apperror.Is(err, apperror.KindValidation))

	_, err = f.svc.Update(ctx, asPatient(f.patient), v.ID, UpdateRequest{BloodPressureDiastolic: patch.Of(2147483648)})
	var ae *apperror.Error
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, "blood_pressure_diastolic", ae.Field)
}

func TestPatientSelfScope(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	v, err := f.svc.Create(ctx, asPatient(f.patient), CreateRequest{Weight: ptr(70.0)})
	require.NoError(t, err)

	intruder := asPatient(f.other)
	_, err = f.svc.Get(ctx, intruder, v.ID)
	assert.True(t, apperror.Is(err, apperror.KindNotFound))
	_, err = f.svc.Update(ctx, intruder, v.ID, UpdateRequest{Weight: patch.Of(1.0)})
	assert.True(t, apperror.Is(err, apperror.KindNotFound))
	assert.True(t, apperror.Is(f.svc.Delete(ctx, intruder, v.ID), apperror.KindNotFound))
	_, _, err = f.svc.List(ctx, intruder, &f.patient.ID, 60, 0)
	assert.True(t, apperror.Is(err, apperror.KindNotFound))

	stored, err := f.store.Vitals().GetByID(ctx, v.ID)
	require.NoError(t, err)
	assert.Equal(t, 70.0, *stored.Weight)
}

func TestHospitalAccess(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	v, err := f.svc.Create(ctx, asPatient(f.patient), CreateRequest{Weight: ptr(70.0)})
	require.NoError(t, err)

	got, err := f.svc.Get(ctx, asHospital(f.hospital), v.ID)
	require.NoError(t, err)
	assert.Equal(t, v.ID, got.ID)

	list, total, err := f.svc.List(ctx, asHospital(f.hospital), &f.patient.ID, 60, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Len(t, list, 1)

	_, err = f.svc.Update(ctx, asHospital(f.hospital), v.ID, UpdateRequest{Weight: patch.Of(1.0)})
	assert.True(t, apperror.Is(err, apperror.KindAuthorization))

	_, err = f.svc.Get(ctx, asHospital(f.rival), v.ID)
	assert.True(t, apperror.Is(err, apperror.KindNotFound))
	_, _, err = f.svc.List(ctx, asHospital(f.rival), &f.patient.ID, 60, 0)
	assert.True(t, apperror.Is(err, apperror.KindNotFound))

	_, _, err = f.svc.List(ctx, asHospital(f.hospital), nil, 60, 0)
	assert.True(t, apperror.Is(err, apperror.KindValidation))
	_, _, err = f.svc.List(ctx, asHospital(f.hospital), ptr(uuid.New()), 60, 0)
	assert.True(t, apperror.Is(err, apperror.KindNotFound))
}

func TestList_NewestFirst(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	for _, d := range []string{"2026-03-01T08:00:00Z", "2026-03-03T08:00:00Z", "2026-03-02T08:00:00Z"} {
		_, err := f.svc.Create(ctx, asPatient(f.patient), CreateRequest{Date: ptr(d), Weight: ptr(70.0)})
		require.NoError(t, err)
	}

	list, total, err := f.svc.List(ctx, asPatient(f.patient), nil, 2, 0)
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, list, 2)
	assert.Equal(t, 3, list[0].RecordedAt.Day())
	assert.Equal(t, 2, list[1].RecordedAt.Day())
}

func TestDelete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	v, err := f.svc.Create(ctx, asPatient(f.patient), CreateRequest{Weight: ptr(70.0)})
	require.NoError(t, err)

	require.NoError(t, f.svc.Delete(ctx, asPatient(f.patient), v.ID))
	_, err = f.svc.Get(ctx, asPatient(f.patient), v.ID)
	assert.True(t, apperror.Is(err, apperror.KindNotFound))
}
