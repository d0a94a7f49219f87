package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/postcare/postcare/internal/store"
)

const tokenIssuer = "postcare"

// SessionClaims is the signed session payload. Exactly one of HospitalID
// and PatientID is set, matching Role.
type SessionClaims struct {
	jwt.RegisteredClaims
	Role       string `json:"role"`
	HospitalID string `json:"hospital_id,omitempty"`
	PatientID  string `json:"patient_id,omitempty"`
}

var errMalformedSession = errors.New("malformed session claims")

// Principal rebuilds the caller from verified claims.
func (c *SessionClaims) Principal() (Principal, error) {
	sub, err := uuid.Parse(c.Subject)
	if err != nil {
		return nil, errMalformedSession
	}
	switch store.Role(c.Role) {
	case store.RoleHospital:
		id, err := uuid.Parse(c.HospitalID)
		if err != nil || c.PatientID != "" {
			return nil, errMalformedSession
		}
		return HospitalPrincipal{Subject: sub, HospitalID: id}, nil
	case store.RolePatient:
		id, err := uuid.Parse(c.PatientID)
		if err != nil || c.HospitalID != "" {
			return nil, errMalformedSession
		}
		return PatientPrincipal{Subject: sub, PatientID: id}, nil
	default:
		return nil, errMalformedSession
	}
}

// TokenIssuer signs and verifies HS256 session tokens.
type TokenIssuer struct {
	key []byte
	ttl time.Duration
	now func() time.Time
}

func NewTokenIssuer(secret []byte, ttl time.Duration) *TokenIssuer {
	return &TokenIssuer{key: secret, ttl: ttl, now: time.Now}
}

// TTL is the lifetime of issued tokens.
func (t *TokenIssuer) TTL() time.Duration { return t.ttl }

// Issue signs a new session for p.
func (t *TokenIssuer) Issue(p Principal) (string, *SessionClaims, error) {
	now := t.now()
	claims := &SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			Subject:   p.UserID().String(),
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
		},
		Role: string(p.Role()),
	}
	switch v := p.(type) {
	case HospitalPrincipal:
		claims.HospitalID = v.HospitalID.String()
	case PatientPrincipal:
		claims.PatientID = v.PatientID.String()
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.key)
	if err != nil {
		return "", nil, fmt.Errorf("sign session: %w", err)
	}
	return signed, claims, nil
}

// Parse verifies signature, algorithm, issuer and expiry.
func (t *TokenIssuer) Parse(tokenStr string) (*SessionClaims, error) {
	claims := &SessionClaims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(*jwt.Token) (interface{}, error) {
		return t.key, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(t.now),
	)
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, errors.New("invalid token")
	}
	if claims.ID == "" {
		return nil, errMalformedSession
	}
	return claims, nil
}
