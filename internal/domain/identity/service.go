package identity

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/postcare/postcare/internal/platform/apperror"
	"github.com/postcare/postcare/internal/platform/auth"
	"github.com/postcare/postcare/internal/store"
)

type Service struct {
	store       store.Store
	hasher      *auth.PasswordHasher
	tokens      *auth.TokenIssuer
	revocations auth.RevocationStore
	logger      zerolog.Logger
}

func NewService(st store.Store, hasher *auth.PasswordHasher, tokens *auth.TokenIssuer, revocations auth.RevocationStore, logger zerolog.Logger) *Service {
	return &Service{
		store:       st,
		hasher:      hasher,
		tokens:      tokens,
		revocations: revocations,
		logger:      logger,
	}
}

// Register creates the user and its role profile in one write.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (*Account, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return nil, apperror.Internal(err)
	}
	u := &store.User{
		Email:        req.Email,
		PasswordHash: hash,
		Role:         store.Role(req.Role),
		Name:         req.Name,
		Phone:        req.Phone,
	}

	switch u.Role {
	case store.RoleHospital:
		h := &store.Hospital{Name: req.Name, Address: trimOptional(req.HospitalAddress)}
		if name := trimOptional(req.HospitalName); name != nil {
			h.Name = *name
		}
		if err := s.store.Users().CreateHospitalAccount(ctx, u, h); err != nil {
			return nil, apperror.FromStore(err, "user")
		}
		s.logger.Info().Str("user_id", u.ID.String()).Str("hospital_id", h.ID.String()).Msg("hospital registered")
		return &Account{User: u, Hospital: h}, nil
	default:
		p := &store.Patient{Name: req.Name, Phone: req.Phone, DateOfBirth: req.dob}
		if err := s.store.Users().CreatePatientAccount(ctx, u, p); err != nil {
			return nil, apperror.FromStore(err, "user")
		}
		s.logger.Info().Str("user_id", u.ID.String()).Str("patient_id", p.ID.String()).Msg("patient registered")
		return &Account{User: u, Patient: p}, nil
	}
}

// Login verifies the credentials and issues a session. Unknown emails and
// wrong passwords fail identically.
func (s *Service) Login(ctx context.Context, req LoginRequest) (*Session, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	u, err := s.store.Users().GetByEmail(ctx, req.Email)
	if errors.Is(err, store.ErrNotFound) {
		s.hasher.VerifyDummy(req.Password)
		return nil, apperror.InvalidCredentials()
	}
	if err != nil {
		return nil, apperror.Internal(err)
	}
	if !s.hasher.Verify(u.PasswordHash, req.Password) {
		return nil, apperror.InvalidCredentials()
	}

	acct, principal, err := s.account(ctx, u)
	if err != nil {
		return nil, err
	}
	token, claims, err := s.tokens.Issue(principal)
	if err != nil {
		return nil, apperror.Internal(err)
	}
	return &Session{Token: token, ExpiresAt: claims.ExpiresAt.Time, Account: *acct}, nil
}

// Logout revokes the session until it would have expired anyway.
func (s *Service) Logout(ctx context.Context, claims *auth.SessionClaims) error {
	if claims == nil {
		return apperror.Unauthenticated("authentication required")
	}
	exp := time.Now().Add(s.tokens.TTL())
	if claims.ExpiresAt != nil {
		exp = claims.ExpiresAt.Time
	}
	if err := s.revocations.Revoke(ctx, claims.ID, exp); err != nil {
		return apperror.Internal(err)
	}
	return nil
}

// Me returns the caller's user and profile.
func (s *Service) Me(ctx context.Context, p auth.Principal) (*Account, error) {
	u, err := s.store.Users().GetByID(ctx, p.UserID())
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperror.Unauthenticated("account no longer exists")
		}
		return nil, apperror.Internal(err)
	}
	acct, _, err := s.account(ctx, u)
	return acct, err
}

// account loads the role profile and derives the principal for u.
func (s *Service) account(ctx context.Context, u *store.User) (*Account, auth.Principal, error) {
	switch u.Role {
	case store.RoleHospital:
		h, err := s.store.Hospitals().GetByUserID(ctx, u.ID)
		if err != nil {
			return nil, nil, apperror.Internal(err)
		}
		return &Account{User: u, Hospital: h}, auth.HospitalPrincipal{Subject: u.ID, HospitalID: h.ID}, nil
	case store.RolePatient:
		pt, err := s.store.Patients().GetByUserID(ctx, u.ID)
		if err != nil {
			return nil, nil, apperror.Internal(err)
		}
		return &Account{User: u, Patient: pt}, auth.PatientPrincipal{Subject: u.ID, PatientID: pt.ID}, nil
	}
	return nil, nil, apperror.Internal(errors.New("user has unknown role " + string(u.Role)))
}

// SearchPatients lists the calling hospital's patients.
func (s *Service) SearchPatients(ctx context.Context, p auth.Principal, query string, limit, offset int) ([]*store.PatientListItem, int, error) {
	h, err := auth.AsHospital(p)
	if err != nil {
		return nil, 0, err
	}
	items, total, err := s.store.Patients().Search(ctx, store.PatientSearch{
		HospitalID: h.HospitalID,
		Query:      query,
		Limit:      limit,
		Offset:     offset,
	})
	if err != nil {
		return nil, 0, apperror.Internal(err)
	}
	return items, total, nil
}

// OwnPatient returns the calling patient's profile.
func (s *Service) OwnPatient(ctx context.Context, p auth.Principal) (*store.Patient, error) {
	pp, err := auth.AsPatient(p)
	if err != nil {
		return nil, err
	}
	pt, err := s.store.Patients().GetByID(ctx, pp.PatientID)
	if err != nil {
		return nil, apperror.FromStore(err, "patient")
	}
	if err := auth.Check(p, auth.ActionRead, auth.PatientResource{PatientID: pt.ID, HospitalID: pt.HospitalID}); err != nil {
		return nil, err
	}
	return pt, nil
}

// AddPatient links an existing patient account to the calling hospital, or
// creates a new account with a random temporary password.
func (s *Service) AddPatient(ctx context.Context, p auth.Principal, req AddPatientRequest) (*AddPatientResult, error) {
	if err := auth.Check(p, auth.ActionCreate, auth.PatientResource{}); err != nil {
		return nil, err
	}
	h, err := auth.AsHospital(p)
	if err != nil {
		return nil, err
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	existing, err := s.store.Users().GetByEmail(ctx, req.Email)
	switch {
	case err == nil:
		if existing.Role != store.RolePatient {
			return nil, apperror.Validation("email", "email belongs to a hospital account")
		}
		pt, err := s.store.Patients().GetByUserID(ctx, existing.ID)
		if err != nil {
			return nil, apperror.Internal(err)
		}
		linked, err := s.store.Patients().AssignHospital(ctx, pt.ID, h.HospitalID)
		if err != nil {
			return nil, apperror.FromStore(err, "patient")
		}
		s.logger.Info().Str("patient_id", pt.ID.String()).Str("hospital_id", h.HospitalID.String()).Msg("patient linked")
		return &AddPatientResult{Patient: linked, Linked: true}, nil
	case !errors.Is(err, store.ErrNotFound):
		return nil, apperror.Internal(err)
	}

	temp, err := auth.GenerateTemporaryPassword(tempPasswordLen)
	if err != nil {
		return nil, apperror.Internal(err)
	}
	hash, err := s.hasher.Hash(temp)
	if err != nil {
		return nil, apperror.Internal(err)
	}
	hospitalID := h.HospitalID
	u := &store.User{
		Email:        req.Email,
		PasswordHash: hash,
		Role:         store.RolePatient,
		Name:         req.Name,
		Phone:        req.Phone,
	}
	pt := &store.Patient{
		HospitalID:  &hospitalID,
		Name:        req.Name,
		Phone:       req.Phone,
		DateOfBirth: req.dob,
	}
	if err := s.store.Users().CreatePatientAccount(ctx, u, pt); err != nil {
		return nil, apperror.FromStore(err, "patient")
	}
	s.logger.Info().Str("patient_id", pt.ID.String()).Str("hospital_id", hospitalID.String()).Msg("patient account created")
	return &AddPatientResult{Patient: pt, TemporaryPassword: temp}, nil
}
