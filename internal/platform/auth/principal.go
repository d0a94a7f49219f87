package auth

import (
	"context"

	"github.com/google/uuid"

	"github.com/postcare/postcare/internal/platform/apperror"
	"github.com/postcare/postcare/internal/store"
)

// Principal is the authenticated caller. The only implementations are
// HospitalPrincipal and PatientPrincipal.
type Principal interface {
	UserID() uuid.UUID
	Role() store.Role
	isPrincipal()
}

// HospitalPrincipal acts on behalf of one hospital tenant.
type HospitalPrincipal struct {
	Subject    uuid.UUID
	HospitalID uuid.UUID
}

func (p HospitalPrincipal) UserID() uuid.UUID { return p.Subject }
func (p HospitalPrincipal) Role() store.Role  { return store.RoleHospital }
func (HospitalPrincipal) isPrincipal()        {}

// PatientPrincipal acts on behalf of one patient profile.
type PatientPrincipal struct {
	Subject   uuid.UUID
	PatientID uuid.UUID
}

func (p PatientPrincipal) UserID() uuid.UUID { return p.Subject }
func (p PatientPrincipal) Role() store.Role  { return store.RolePatient }
func (PatientPrincipal) isPrincipal()        {}

type contextKey string

const (
	principalKey contextKey = "principal"
	claimsKey    contextKey = "session_claims"
)

// WithPrincipal stores p on ctx.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// PrincipalFromContext returns the caller, or nil when unauthenticated.
func PrincipalFromContext(ctx context.Context) Principal {
	p, _ := ctx.Value(principalKey).(Principal)
	return p
}

// RequirePrincipal is PrincipalFromContext that fails with Unauthenticated.
func RequirePrincipal(ctx context.Context) (Principal, error) {
	p := PrincipalFromContext(ctx)
	if p == nil {
		return nil, apperror.Unauthenticated("authentication required")
	}
	return p, nil
}

// ClaimsFromContext returns the verified session claims, or nil.
func ClaimsFromContext(ctx context.Context) *SessionClaims {
	c, _ := ctx.Value(claimsKey).(*SessionClaims)
	return c
}

// AsHospital returns the hospital principal or AuthorizationError.
func AsHospital(p Principal) (HospitalPrincipal, error) {
	h, ok := p.(HospitalPrincipal)
	if !ok {
		return HospitalPrincipal{}, apperror.Forbidden("hospital account required")
	}
	return h, nil
}

// AsPatient returns the patient principal or AuthorizationError.
func AsPatient(p Principal) (PatientPrincipal, error) {
	pp, ok := p.(PatientPrincipal)
	if !ok {
		return PatientPrincipal{}, apperror.Forbidden("patient account required")
	}
	return pp, nil
}

func contextWithClaims(ctx context.Context, c *SessionClaims) context.Context {
	return context.WithValue(ctx, claimsKey, c)
}
