package identity

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/postcare/postcare/internal/platform/apperror"
	"github.com/postcare/postcare/internal/platform/auth"
	"github.com/postcare/postcare/internal/store"
	"github.com/postcare/postcare/internal/store/memory"
)

type testEnv struct {
	svc         *Service
	store       *memory.Store
	tokens      *auth.TokenIssuer
	revocations *auth.MemoryRevocationStore
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	hasher, err := auth.NewPasswordHasher(bcrypt.MinCost)
	require.NoError(t, err)
	st := memory.New()
	tokens := auth.NewTokenIssuer([]byte("0123456789abcdef0123456789abcdef"), time.Hour)
	rev := auth.NewMemoryRevocationStore(time.Minute)
	t.Cleanup(rev.Close)
	return &testEnv{
		svc:         NewService(st, hasher, tokens, rev, zerolog.Nop()),
		store:       st,
		tokens:      tokens,
		revocations: rev,
	}
}

func ptr[T any](v T) *T { return &v }

func registerHospital(t *testing.T, env *testEnv, email string) *Account {
	t.Helper()
	acct, err := env.svc.Register(context.Background(), RegisterRequest{
		Name: "City Hospital", Email: email, Password: "secret1", Role: "HOSPITAL",
	})
	require.NoError(t, err)
	return acct
}

func hospitalPrincipal(a *Account) auth.HospitalPrincipal {
	return auth.HospitalPrincipal{Subject: a.User.ID, HospitalID: a.Hospital.ID}
}

func TestRegister_Hospital(t *testing.T) {
	env := newTestEnv(t)

	acct, err := env.svc.Register(context.Background(), RegisterRequest{
		Name:            "Dr Admin",
		Email:           "  Admin@City.Example ",
		Password:        "secret1",
		Role:            "HOSPITAL",
		HospitalName:    ptr("City General"),
		HospitalAddress: ptr("1 Main St"),
	})
	require.NoError(t, err)

	assert.Equal(t, "admin@city.example", acct.User.Email)
	assert.Equal(t, store.RoleHospital, acct.User.Role)
	require.NotNil(t, acct.Hospital)
	assert.Equal(t, "City General", acct.Hospital.Name)
	assert.Nil(t, acct.Patient)
	assert.NotEqual(t, "secret1", acct.User.PasswordHash)
}

func TestRegister_HospitalNameDefaultsToDisplayName(t *testing.T) {
	env := newTestEnv(t)
	acct := registerHospital(t, env, "h@x.com")
	assert.Equal(t, "City Hospital", acct.Hospital.Name)
}

func TestRegister_Patient(t *testing.T) {
	env := newTestEnv(t)

	acct, err := env.svc.Register(context.Background(), RegisterRequest{
		Name: "Pat", Email: "pat@x.com", Password: "secret1", Role: "PATIENT", DateOfBirth: ptr("1980-05-17"),
	})
	require.NoError(t, err)

	require.NotNil(t, acct.Patient)
	assert.Nil(t, acct.Patient.HospitalID)
	require.NotNil(t, acct.Patient.DateOfBirth)
	assert.Equal(t, time.Date(1980, 5, 17, 0, 0, 0, 0, time.UTC), *acct.Patient.DateOfBirth)
}

func TestRegister_Validation(t *testing.T) {
	env := newTestEnv(t)
	valid := RegisterRequest{Name: "Pat", Email: "pat@x.com", Password: "secret1", Role: "PATIENT"}

	tests := []struct {
		name   string
		mutate func(r *RegisterRequest)
		field  string
	}{
		{"short name", func(r *RegisterRequest) { r.Name = "P" }, "name"},
		{"bad email", func(r *RegisterRequest) { r.Email = "not-an-email" }, "email"},
		{"short password", func(r *RegisterRequest) { r.Password = "12345" }, "password"},
		{"bad role", func(r *RegisterRequest) { r.Role = "ADMIN" }, "role"},
		{"bad dob", func(r *RegisterRequest) { r.DateOfBirth = ptr("17/05/1980") }, "date_of_birth"},
		{"first violation wins", func(r *RegisterRequest) { r.Name = ""; r.Password = "" }, "name"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := valid
			tt.mutate(&req)
			_, err := env.svc.Register(context.Background(), req)
			require.Error(t, err)
			var ae *apperror.Error
			require.ErrorAs(t, err, &ae)
			assert.Equal(t, apperror.KindValidation, ae.Kind)
			assert.Equal(t, tt.field, ae.Field)
		})
	}
}

func TestRegister_DuplicateEmail(t *testing.T) {
	env := newTestEnv(t)
	registerHospital(t, env, "dup@x.com")

	_, err := env.svc.Register(context.Background(), RegisterRequest{
		Name: "Other", Email: "DUP@x.com", Password: "secret1", Role: "PATIENT",
	})
	assert.True(t, apperror.Is(err, apperror.KindDuplicateEmail))
}

func TestLogin(t *testing.T) {
	env := newTestEnv(t)
	acct := registerHospital(t, env, "h@x.com")

	sess, err := env.svc.Login(context.Background(), LoginRequest{Email: "H@x.com", Password: "secret1"})
	require.NoError(t, err)
	assert.NotEmpty(t, sess.Token)
	assert.Equal(t, acct.Hospital.ID, sess.Hospital.ID)

	claims, err := env.tokens.Parse(sess.Token)
	require.NoError(t, err)
	p, err := claims.Principal()
	require.NoError(t, err)
	assert.Equal(t, hospitalPrincipal(acct), p)
}

func TestLogin_FailuresAreIndistinguishable(t *testing.T) {
	env := newTestEnv(t)
	registerHospital(t, env, "h@x.com")

	_, wrongPassword := env.svc.Login(context.Background(), LoginRequest{Email: "h@x.com", Password: "nope123"})
	_, unknownEmail := env.svc.Login(context.Background(), LoginRequest{Email: "ghost@x.com", Password: "nope123"})

	require.Error(t, wrongPassword)
	require.Error(t, unknownEmail)
	assert.Equal(t, wrongPassword.Error(), unknownEmail.Error())
	assert.True(t, apperror.Is(wrongPassword, apperror.KindInvalidCredentials))
	assert.True(t, apperror.Is(unknownEmail, apperror.KindInvalidCredentials))
}

func TestLogout_RevokesSession(t *testing.T) {
	env := newTestEnv(t)
	registerHospital(t, env, "h@x.com")
	ctx := context.Background()

	sess, err := env.svc.Login(ctx, LoginRequest{Email: "h@x.com", Password: "secret1"})
	require.NoError(t, err)
	claims, err := env.tokens.Parse(sess.Token)
	require.NoError(t, err)

	require.NoError(t, env.svc.Logout(ctx, claims))

	revoked, err := env.revocations.IsRevoked(ctx, claims.ID)
	require.NoError(t, err)
	assert.True(t, revoked)

	assert.True(t, apperror.Is(env.svc.Logout(ctx, nil), apperror.KindUnauthenticated))
}

func TestMe(t *testing.T) {
	env := newTestEnv(t)
	acct := registerHospital(t, env, "h@x.com")

	me, err := env.svc.Me(context.Background(), hospitalPrincipal(acct))
	require.NoError(t, err)
	assert.Equal(t, acct.User.ID, me.User.ID)
	assert.Equal(t, acct.Hospital.ID, me.Hospital.ID)

	_, err = env.svc.Me(context.Background(), auth.PatientPrincipal{Subject: uuid.New(), PatientID: uuid.New()})
	assert.True(t, apperror.Is(err, apperror.KindUnauthenticated))
}

func TestAddPatient_CreatesAccountWithTemporaryPassword(t *testing.T) {
	env := newTestEnv(t)
	h := registerHospital(t, env, "h@x.com")
	ctx := context.Background()

	res, err := env.svc.AddPatient(ctx, hospitalPrincipal(h), AddPatientRequest{Name: "Pat", Email: "p@x.com", Phone: ptr("555-0100")})
	require.NoError(t, err)

	assert.False(t, res.Linked)
	assert.Len(t, res.TemporaryPassword, tempPasswordLen)
	assert.True(t, res.Patient.BelongsTo(h.Hospital.ID))

	sess, err := env.svc.Login(ctx, LoginRequest{Email: "p@x.com", Password: res.TemporaryPassword})
	require.NoError(t, err)
	assert.Equal(t, res.Patient.ID, sess.Patient.ID)
}

func TestAddPatient_TemporaryPasswordsDiffer(t *testing.T) {
	env := newTestEnv(t)
	h := hospitalPrincipal(registerHospital(t, env, "h@x.com"))

	a, err := env.svc.AddPatient(context.Background(), h, AddPatientRequest{Name: "Pat A", Email: "a@x.com"})
	require.NoError(t, err)
	b, err := env.svc.AddPatient(context.Background(), h, AddPatientRequest{Name: "Pat B", Email: "b@x.com"})
	require.NoError(t, err)
	assert.NotEqual(t, a.TemporaryPassword, b.TemporaryPassword)
}

func TestAddPatient_LinksExistingPatient(t *testing.T) {
	env := newTestEnv(t)
	h1 := registerHospital(t, env, "h1@x.com")
	h2 := registerHospital(t, env, "h2@x.com")
	ctx := context.Background()

	first, err := env.svc.AddPatient(ctx, hospitalPrincipal(h1), AddPatientRequest{Name: "Pat", Email: "p@x.com"})
	require.NoError(t, err)

	res, err := env.svc.AddPatient(ctx, hospitalPrincipal(h2), AddPatientRequest{Name: "Ignored", Email: "P@X.com"})
	require.NoError(t, err)

	assert.True(t, res.Linked)
	assert.Empty(t, res.TemporaryPassword)
	assert.Equal(t, first.Patient.ID, res.Patient.ID)
	assert.True(t, res.Patient.BelongsTo(h2.Hospital.ID))
}

func TestAddPatient_RejectsHospitalEmail(t *testing.T) {
	env := newTestEnv(t)
	h1 := registerHospital(t, env, "h1@x.com")
	registerHospital(t, env, "h2@x.com")

	_, err := env.svc.AddPatient(context.Background(), hospitalPrincipal(h1), AddPatientRequest{Name: "Pat", Email: "h2@x.com"})
	var ae *apperror.Error
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, apperror.KindValidation, ae.Kind)
	assert.Equal(t, "email", ae.Field)
}

func TestAddPatient_PatientCallerDenied(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.svc.AddPatient(context.Background(), auth.PatientPrincipal{Subject: uuid.New(), PatientID: uuid.New()},
		AddPatientRequest{Name: "Pat", Email: "p@x.com"})
	assert.True(t, apperror.Is(err, apperror.KindAuthorization))
}

func TestSearchPatients_ScopedToHospital(t *testing.T) {
	env := newTestEnv(t)
	h1 := hospitalPrincipal(registerHospital(t, env, "h1@x.com"))
	h2 := hospitalPrincipal(registerHospital(t, env, "h2@x.com"))
	ctx := context.Background()

	_, err := env.svc.AddPatient(ctx, h1, AddPatientRequest{Name: "Alice Smith", Email: "alice@x.com", Phone: ptr("555-0101")})
	require.NoError(t, err)
	_, err = env.svc.AddPatient(ctx, h2, AddPatientRequest{Name: "Alicia Other", Email: "alicia@x.com"})
	require.NoError(t, err)

	items, total, err := env.svc.SearchPatients(ctx, h1, "ALI", 20, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, items, 1)
	assert.Equal(t, "alice@x.com", items[0].Email)

	items, _, err = env.svc.SearchPatients(ctx, h1, "0101", 20, 0)
	require.NoError(t, err)
	assert.Len(t, items, 1)

	_, _, err = env.svc.SearchPatients(ctx, auth.PatientPrincipal{Subject: uuid.New(), PatientID: uuid.New()}, "", 20, 0)
	assert.True(t, apperror.Is(err, apperror.KindAuthorization))
}

func TestOwnPatient(t *testing.T) {
	env := newTestEnv(t)
	acct, err := env.svc.Register(context.Background(), RegisterRequest{
		Name: "Pat", Email: "pat@x.com", Password: "secret1", Role: "PATIENT",
	})
	require.NoError(t, err)

	pt, err := env.svc.OwnPatient(context.Background(), auth.PatientPrincipal{Subject: acct.User.ID, PatientID: acct.Patient.ID})
	require.NoError(t, err)
	assert.Equal(t, acct.Patient.ID, pt.ID)

	_, err = env.svc.OwnPatient(context.Background(), auth.PatientPrincipal{Subject: uuid.New(), PatientID: uuid.New()})
	assert.True(t, apperror.Is(err, apperror.KindNotFound))
}
