package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/postcare/postcare/internal/platform/apperror"
	"github.com/postcare/postcare/internal/store"
)

func newSessionEcho(t *testing.T) (*echo.Echo, *TokenIssuer, *MemoryRevocationStore) {
	t.Helper()
	issuer := NewTokenIssuer(testSigningKey, time.Hour)
	revocations := NewMemoryRevocationStore(time.Minute)
	t.Cleanup(revocations.Close)

	e := echo.New()
	e.HTTPErrorHandler = apperror.HTTPErrorHandler(zerolog.Nop())
	e.Use(SessionMiddleware(SessionConfig{
		Tokens: issuer, Revocations: revocations, Skipper: AuthSkipper, Logger: zerolog.Nop(),
	}))
	e.GET("/auth/me", func(c echo.Context) error {
		p, err := RequirePrincipal(c.Request().Context())
		if err != nil {
			return err
		}
		return c.String(http.StatusOK, string(p.Role()))
	})
	e.GET("/health", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })
	e.POST("/discharge-plans", func(c echo.Context) error {
		return c.NoContent(http.StatusCreated)
	}, RequireRole(store.RoleHospital))
	return e, issuer, revocations
}

func serve(e *echo.Echo, method, path string, mutate func(*http.Request)) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if mutate != nil {
		mutate(req)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestSessionMiddleware_MissingToken(t *testing.T) {
	e, _, _ := newSessionEcho(t)

	rec := serve(e, http.MethodGet, "/auth/me", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), `"kind":"Unauthenticated"`)
}

func TestSessionMiddleware_PublicPath(t *testing.T) {
	e, _, _ := newSessionEcho(t)

	rec := serve(e, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestSessionMiddleware_InvalidFormat(t *testing.T) {
	e, _, _ := newSessionEcho(t)

	for _, header := range []string{"Token abc123", "Bearer", "Bearer ", "Basic dXNlcjpwYXNz", "Bearer not.a.jwt"} {
		rec := serve(e, http.MethodGet, "/auth/me", func(r *http.Request) {
			r.Header.Set("Authorization", header)
		})
		assert.Equal(t, http.StatusUnauthorized, rec.Code, header)
	}
}

func TestSessionMiddleware_BearerAndCookie(t *testing.T) {
	e, issuer, _ := newSessionEcho(t)
	token, _, err := issuer.Issue(PatientPrincipal{Subject: uuid.New(), PatientID: uuid.New()})
	require.NoError(t, err)

	rec := serve(e, http.MethodGet, "/auth/me", func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer "+token)
	})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "PATIENT", rec.Body.String())

	rec = serve(e, http.MethodGet, "/auth/me", func(r *http.Request) {
		r.AddCookie(&http.Cookie{Name: SessionCookie, Value: token})
	})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestSessionMiddleware_Revoked(t *testing.T) {
	e, issuer, revocations := newSessionEcho(t)
	token, claims, err := issuer.Issue(PatientPrincipal{Subject: uuid.New(), PatientID: uuid.New()})
	require.NoError(t, err)
	require.NoError(t, revocations.Revoke(context.Background(), claims.ID, claims.ExpiresAt.Time))

	rec := serve(e, http.MethodGet, "/auth/me", func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer "+token)
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireRole(t *testing.T) {
	e, issuer, _ := newSessionEcho(t)
	patientToken, _, err := issuer.Issue(PatientPrincipal{Subject: uuid.New(), PatientID: uuid.New()})
	require.NoError(t, err)
	hospitalToken, _, err := issuer.Issue(HospitalPrincipal{Subject: uuid.New(), HospitalID: uuid.New()})
	require.NoError(t, err)

	rec := serve(e, http.MethodPost, "/discharge-plans", func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer "+patientToken)
	})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Contains(t, rec.Body.String(), "required role: HOSPITAL")

	rec = serve(e, http.MethodPost, "/discharge-plans", func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer "+hospitalToken)
	})
	assert.Equal(t, http.StatusCreated, rec.Code)
}

func TestIsPublicPath(t *testing.T) {
	assert.True(t, IsPublicPath("/auth/login"))
	assert.True(t, IsPublicPath("/metrics"))
	assert.False(t, IsPublicPath("/auth/me"))
	assert.False(t, IsPublicPath("/discharge-plans"))
}
