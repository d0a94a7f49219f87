package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/postcare/postcare/internal/config"
	"github.com/postcare/postcare/internal/platform/auth"
	"github.com/postcare/postcare/internal/store/memory"
)

func newTestServer(t *testing.T) *echo.Echo {
	t.Helper()
	cfg := &config.Config{
		Env:            "test",
		Store:          config.StoreMemory,
		SessionSecret:  strings.Repeat("k", 32),
		SessionTTL:     time.Hour,
		CORSOrigins:    []string{"http://localhost:3000"},
		RateLimitRPS:   1000,
		RateLimitBurst: 1000,
		RequestTimeout: 5 * time.Second,
		BodyLimit:      "1M",
		BcryptCost:     bcrypt.MinCost,
		Timezone:       "UTC",
	}
	require.NoError(t, cfg.Validate())

	revocations := auth.NewMemoryRevocationStore(time.Minute)
	t.Cleanup(revocations.Close)

	e, err := New(cfg, Deps{
		Store:       memory.New(),
		Revocations: revocations,
		Logger:      zerolog.Nop(),
	})
	require.NoError(t, err)
	return e
}

func call(t *testing.T, e *echo.Echo, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func login(t *testing.T, e *echo.Echo, email, password string) string {
	t.Helper()
	rec := call(t, e, http.MethodPost, "/auth/login", "", map[string]string{"email": email, "password": password})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	sess := decode[struct {
		Token string `json:"token"`
	}](t, rec)
	require.NotEmpty(t, sess.Token)
	return sess.Token
}

func registerHospital(t *testing.T, e *echo.Echo, name, email string) string {
	t.Helper()
	rec := call(t, e, http.MethodPost, "/auth/register", "", map[string]string{
		"name":          name,
		"email":         email,
		"password":      "secret-pass",
		"role":          "HOSPITAL",
		"hospital_name": name,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return login(t, e, email, "secret-pass")
}

type addedPatient struct {
	Patient struct {
		ID string `json:"id"`
	} `json:"patient"`
	Linked            bool   `json:"linked"`
	TemporaryPassword string `json:"temporary_password"`
}

type logPage struct {
	Data []struct {
		ID    string `json:"id"`
		Date  string `json:"date"`
		Taken bool   `json:"taken"`
	} `json:"data"`
	Total int `json:"total"`
}

func TestHealthIsPublic(t *testing.T) {
	e := newTestServer(t)

	rec := call(t, e, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)

	rec = call(t, e, http.MethodGet, "/health/db", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"healthy"`)
}

func TestProtectedRoutesRequireSession(t *testing.T) {
	e := newTestServer(t)

	for _, path := range []string{"/dashboard", "/discharge-plans", "/medications", "/vitals", "/medication-logs", "/auth/me"} {
		rec := call(t, e, http.MethodGet, path, "", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, path)
		assert.Contains(t, rec.Body.String(), `"kind":"Unauthenticated"`, path)
	}

	rec := call(t, e, http.MethodGet, "/dashboard", "not-a-token", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLogoutRevokesSession(t *testing.T) {
	e := newTestServer(t)
	token := registerHospital(t, e, "General", "h@x.com")

	require.Equal(t, http.StatusOK, call(t, e, http.MethodGet, "/auth/me", token, nil).Code)
	require.Equal(t, http.StatusNoContent, call(t, e, http.MethodPost, "/auth/logout", token, nil).Code)
	assert.Equal(t, http.StatusUnauthorized, call(t, e, http.MethodGet, "/auth/me", token, nil).Code)
}

func TestLogin_WrongPassword(t *testing.T) {
	e := newTestServer(t)
	registerHospital(t, e, "General", "h@x.com")

	rec := call(t, e, http.MethodPost, "/auth/login", "", map[string]string{"email": "h@x.com", "password": "nope-nope"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), `"kind":"InvalidCredentials"`)
}

func TestRegister_DuplicateEmail(t *testing.T) {
	e := newTestServer(t)
	registerHospital(t, e, "General", "h@x.com")

	rec := call(t, e, http.MethodPost, "/auth/register", "", map[string]string{
		"name": "Other", "email": "H@X.com", "password": "secret-pass", "role": "PATIENT",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), `"kind":"DuplicateEmail"`)
}

// A hospital discharges a patient, the patient logs the same medication
// twice on one day, and a second hospital cannot see the patient.
func TestDischargeAndAdherenceFlow(t *testing.T) {
	e := newTestServer(t)
	hToken := registerHospital(t, e, "General", "h@x.com")

	rec := call(t, e, http.MethodPost, "/patients", hToken, map[string]string{"name": "Pat", "email": "p@x.com"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	added := decode[addedPatient](t, rec)
	require.NotEmpty(t, added.TemporaryPassword)
	assert.False(t, added.Linked)

	rec = call(t, e, http.MethodPost, "/discharge-plans", hToken, map[string]any{
		"patient_id":     added.Patient.ID,
		"discharge_date": "2026-02-28",
		"diagnosis":      "Pneumonia",
		"instructions":   "Rest and fluids",
		"medications": []map[string]any{{
			"name":       "Amoxicillin",
			"dosage":     "500mg",
			"frequency":  "3x daily",
			"start_date": "2026-03-01",
		}},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	pToken := login(t, e, "p@x.com", added.TemporaryPassword)

	rec = call(t, e, http.MethodGet, "/discharge-plans", pToken, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"discharge_date":"2026-02-28"`)
	assert.Contains(t, rec.Body.String(), `"start_date":"2026-03-01"`)
	plans := decode[struct {
		Data []struct {
			Diagnosis   string `json:"diagnosis"`
			Medications []struct {
				ID   string `json:"id"`
				Name string `json:"name"`
			} `json:"medications"`
		} `json:"data"`
	}](t, rec)
	require.Len(t, plans.Data, 1)
	assert.Equal(t, "Pneumonia", plans.Data[0].Diagnosis)
	require.Len(t, plans.Data[0].Medications, 1)
	medID := plans.Data[0].Medications[0].ID

	rec = call(t, e, http.MethodPost, "/medication-logs", pToken, map[string]any{
		"medication_id": medID, "date": "2026-03-01T09:00:00Z", "taken": true,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = call(t, e, http.MethodPost, "/medication-logs", pToken, map[string]any{
		"medication_id": medID, "date": "2026-03-01T21:00:00Z", "taken": false,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = call(t, e, http.MethodGet, "/medication-logs", pToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	page := decode[logPage](t, rec)
	require.Equal(t, 1, page.Total)
	assert.False(t, page.Data[0].Taken)
	assert.Equal(t, "2026-03-01", page.Data[0].Date)

	// The issuing hospital reads the log; it may not write one.
	rec = call(t, e, http.MethodGet, "/medication-logs?patientId="+added.Patient.ID, hToken, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, 1, decode[logPage](t, rec).Total)
	rec = call(t, e, http.MethodPost, "/medication-logs", hToken, map[string]any{
		"medication_id": medID, "date": "2026-03-02", "taken": true,
	})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = call(t, e, http.MethodGet, "/patients/"+added.Patient.ID, hToken, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"Pneumonia"`)

	h2Token := registerHospital(t, e, "Other", "h2@x.com")
	rec = call(t, e, http.MethodGet, "/patients/"+added.Patient.ID, h2Token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), `"kind":"NotFound"`)

	rec = call(t, e, http.MethodGet, "/medication-logs?patientId="+added.Patient.ID, h2Token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = call(t, e, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `postcare_adherence_upserts_total{result="created"} 1`)
	assert.Contains(t, rec.Body.String(), `postcare_adherence_upserts_total{result="updated"} 1`)
}

func TestRoleChecks(t *testing.T) {
	e := newTestServer(t)
	hToken := registerHospital(t, e, "General", "h@x.com")

	rec := call(t, e, http.MethodPost, "/vitals", hToken, map[string]any{"weight": 70.5})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = call(t, e, http.MethodPost, "/patients", hToken, map[string]string{"name": "Pat", "email": "p@x.com"})
	require.Equal(t, http.StatusCreated, rec.Code)
	pToken := login(t, e, "p@x.com", decode[addedPatient](t, rec).TemporaryPassword)

	rec = call(t, e, http.MethodPost, "/discharge-plans", pToken, map[string]any{"diagnosis": "x"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = call(t, e, http.MethodPost, "/vitals", pToken, map[string]any{"weight": 70.5, "temperature": 37.1})
	assert.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = call(t, e, http.MethodGet, "/dashboard", pToken, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"role":"PATIENT"`)

	rec = call(t, e, http.MethodGet, "/dashboard", hToken, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"patient_count":1`)
}
