package identity

import (
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/postcare/postcare/internal/platform/apperror"
	"github.com/postcare/postcare/internal/store"
	"github.com/postcare/postcare/pkg/dates"
)

const (
	minNameLength     = 2
	minPasswordLength = 6
	tempPasswordLen   = 12
)

// RegisterRequest creates a user together with its hospital or patient
// profile.
type RegisterRequest struct {
	Name            string  `json:"name"`
	Email           string  `json:"email"`
	Password        string  `json:"password"`
	Role            string  `json:"role"`
	Phone           *string `json:"phone"`
	HospitalName    *string `json:"hospital_name"`
	HospitalAddress *string `json:"hospital_address"`
	DateOfBirth     *string `json:"date_of_birth"`

	dob *time.Time
}

// Validate reports the first invalid field.
func (r *RegisterRequest) Validate() error {
	r.Name = strings.TrimSpace(r.Name)
	if len([]rune(r.Name)) < minNameLength {
		return apperror.Validation("name", fmt.Sprintf("name must be at least %d characters", minNameLength))
	}
	email, err := normalizeEmail(r.Email)
	if err != nil {
		return err
	}
	r.Email = email
	if len(r.Password) < minPasswordLength {
		return apperror.Validation("password", fmt.Sprintf("password must be at least %d characters", minPasswordLength))
	}
	if !store.Role(r.Role).Valid() {
		return apperror.Validation("role", "role must be HOSPITAL or PATIENT")
	}
	r.Phone = trimOptional(r.Phone)
	if store.Role(r.Role) == store.RolePatient && r.DateOfBirth != nil && strings.TrimSpace(*r.DateOfBirth) != "" {
		dob, err := dates.ParseDay(*r.DateOfBirth)
		if err != nil {
			return apperror.Validation("date_of_birth", "date_of_birth must be a YYYY-MM-DD date")
		}
		r.dob = &dob
	}
	return nil
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (r *LoginRequest) Validate() error {
	email, err := normalizeEmail(r.Email)
	if err != nil {
		return err
	}
	r.Email = email
	if r.Password == "" {
		return apperror.Validation("password", "password is required")
	}
	return nil
}

// AddPatientRequest is a hospital adding a patient by email. An existing
// patient account is linked; otherwise a new account is created.
type AddPatientRequest struct {
	Name        string  `json:"name"`
	Email       string  `json:"email"`
	Phone       *string `json:"phone"`
	DateOfBirth *string `json:"date_of_birth"`

	dob *time.Time
}

func (r *AddPatientRequest) Validate() error {
	r.Name = strings.TrimSpace(r.Name)
	if len([]rune(r.Name)) < minNameLength {
		return apperror.Validation("name", fmt.Sprintf("name must be at least %d characters", minNameLength))
	}
	email, err := normalizeEmail(r.Email)
	if err != nil {
		return err
	}
	r.Email = email
	r.Phone = trimOptional(r.Phone)
	if r.DateOfBirth != nil && strings.TrimSpace(*r.DateOfBirth) != "" {
		dob, err := dates.ParseDay(*r.DateOfBirth)
		if err != nil {
			return apperror.Validation("date_of_birth", "date_of_birth must be a YYYY-MM-DD date")
		}
		r.dob = &dob
	}
	return nil
}

// Account is the result of registration and the body of /auth/me.
type Account struct {
	User     *store.User     `json:"user"`
	Hospital *store.Hospital `json:"hospital,omitempty"`
	Patient  *store.Patient  `json:"patient,omitempty"`
}

// Session is a freshly issued login.
type Session struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	Account
}

// AddPatientResult carries the temporary password only when a new account
// was created. It is never retrievable again.
type AddPatientResult struct {
	Patient           *store.Patient `json:"patient"`
	Linked            bool           `json:"linked"`
	TemporaryPassword string         `json:"temporary_password,omitempty"`
}

func normalizeEmail(raw string) (string, error) {
	email := strings.ToLower(strings.TrimSpace(raw))
	if email == "" {
		return "", apperror.Validation("email", "email is required")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email || !strings.Contains(email[strings.LastIndex(email, "@")+1:], ".") {
		return "", apperror.Validation("email", "invalid email address")
	}
	return email, nil
}

func trimOptional(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}
