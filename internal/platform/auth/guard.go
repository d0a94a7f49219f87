package auth

import (
	"github.com/google/uuid"

	"github.com/postcare/postcare/internal/platform/apperror"
)

// Action is what the caller wants to do with a resource.
type Action int

const (
	ActionRead Action = iota
	ActionCreate
	ActionUpdate
	ActionDelete
)

func (a Action) String() string {
	switch a {
	case ActionRead:
		return "read"
	case ActionCreate:
		return "create"
	case ActionUpdate:
		return "update"
	case ActionDelete:
		return "delete"
	}
	return "unknown"
}

func (a Action) writes() bool { return a != ActionRead }

// Resource describes the ownership facts of the target entity.
type Resource interface {
	name() string
}

// PatientResource is a patient profile. HospitalID is the patient's
// current hospital, nil when unassigned.
type PatientResource struct {
	PatientID  uuid.UUID
	HospitalID *uuid.UUID
}

// PlanResource is a discharge plan. For ActionCreate, PatientHospitalID is
// the target patient's current hospital.
type PlanResource struct {
	HospitalID        uuid.UUID
	PatientID         uuid.UUID
	PatientHospitalID *uuid.UUID
}

// MedicationResource is a medication. PatientID is the self-adding patient
// or the patient the issuing plan belongs to; HospitalID is the issuing
// hospital and is ignored for self-added rows.
type MedicationResource struct {
	SelfAdded  bool
	PatientID  uuid.UUID
	HospitalID uuid.UUID
}

// PatientRecordResource covers vitals and adherence logs.
type PatientRecordResource struct {
	Kind              string
	PatientID         uuid.UUID
	PatientHospitalID *uuid.UUID
}

func (PatientResource) name() string    { return "patient" }
func (PlanResource) name() string       { return "discharge plan" }
func (MedicationResource) name() string { return "medication" }
func (r PatientRecordResource) name() string {
	if r.Kind == "" {
		return "record"
	}
	return r.Kind
}

// Reason explains a denial.
type Reason int

const (
	// ReasonNone accompanies an allowed decision.
	ReasonNone Reason = iota
	ReasonUnauthenticated
	// ReasonWrongRole: the caller's role may never perform the action.
	ReasonWrongRole
	// ReasonReadOnly: the caller may see the resource but not change it.
	ReasonReadOnly
	// ReasonNotOwner: the resource belongs to another tenant or patient and
	// its existence must not be revealed.
	ReasonNotOwner
)

// Decision is the outcome of Authorize.
type Decision struct {
	Allowed  bool
	Reason   Reason
	resource string
}

// Err converts a denial into the error surfaced to the caller.
func (d Decision) Err() error {
	switch d.Reason {
	case ReasonNone:
		if d.Allowed {
			return nil
		}
		return apperror.Forbidden("access denied")
	case ReasonUnauthenticated:
		return apperror.Unauthenticated("authentication required")
	case ReasonNotOwner:
		return apperror.NotFound(d.resource)
	case ReasonReadOnly:
		return apperror.Forbidden(d.resource + " is read-only for this account")
	default:
		return apperror.Forbidden("not permitted for this account type")
	}
}

func allow() Decision { return Decision{Allowed: true} }

func deny(r Resource, reason Reason) Decision {
	d := Decision{Reason: reason, resource: "resource"}
	if r != nil {
		d.resource = r.name()
	}
	return d
}

// Authorize is the single access decision for every operation.
func Authorize(p Principal, a Action, r Resource) Decision {
	if p == nil {
		return deny(r, ReasonUnauthenticated)
	}
	switch res := r.(type) {
	case PatientResource:
		return authorizePatient(p, a, res)
	case PlanResource:
		return authorizePlan(p, a, res)
	case MedicationResource:
		return authorizeMedication(p, a, res)
	case PatientRecordResource:
		return authorizeRecord(p, a, res)
	}
	return deny(r, ReasonWrongRole)
}

// Check is Authorize(...).Err().
func Check(p Principal, a Action, r Resource) error {
	return Authorize(p, a, r).Err()
}

func sameHospital(h HospitalPrincipal, id *uuid.UUID) bool {
	return id != nil && *id == h.HospitalID
}

func authorizePatient(p Principal, a Action, r PatientResource) Decision {
	switch pr := p.(type) {
	case HospitalPrincipal:
		switch a {
		case ActionCreate:
			// Linking by email may take over an unassigned or foreign patient.
			return allow()
		case ActionDelete:
			return deny(r, ReasonWrongRole)
		}
		if !sameHospital(pr, r.HospitalID) {
			return deny(r, ReasonNotOwner)
		}
		return allow()
	case PatientPrincipal:
		if a == ActionCreate {
			return deny(r, ReasonWrongRole)
		}
		if pr.PatientID != r.PatientID {
			return deny(r, ReasonNotOwner)
		}
		if a.writes() {
			return deny(r, ReasonReadOnly)
		}
		return allow()
	}
	return deny(r, ReasonWrongRole)
}

func authorizePlan(p Principal, a Action, r PlanResource) Decision {
	switch pr := p.(type) {
	case HospitalPrincipal:
		switch a {
		case ActionCreate:
			if !sameHospital(pr, r.PatientHospitalID) {
				return deny(PatientResource{}, ReasonNotOwner)
			}
			return allow()
		case ActionDelete:
			return deny(r, ReasonWrongRole)
		}
		if r.HospitalID != pr.HospitalID {
			return deny(r, ReasonNotOwner)
		}
		return allow()
	case PatientPrincipal:
		if a == ActionCreate {
			return deny(r, ReasonWrongRole)
		}
		if r.PatientID != pr.PatientID {
			return deny(r, ReasonNotOwner)
		}
		if a.writes() {
			return deny(r, ReasonReadOnly)
		}
		return allow()
	}
	return deny(r, ReasonWrongRole)
}

func authorizeMedication(p Principal, a Action, r MedicationResource) Decision {
	switch pr := p.(type) {
	case HospitalPrincipal:
		if r.SelfAdded {
			if a.writes() {
				return deny(r, ReasonWrongRole)
			}
			return deny(r, ReasonNotOwner)
		}
		if r.HospitalID != pr.HospitalID {
			return deny(r, ReasonNotOwner)
		}
		if a.writes() {
			return deny(r, ReasonReadOnly)
		}
		return allow()
	case PatientPrincipal:
		if r.PatientID != pr.PatientID {
			return deny(r, ReasonNotOwner)
		}
		if !r.SelfAdded && a.writes() {
			return deny(r, ReasonReadOnly)
		}
		return allow()
	}
	return deny(r, ReasonWrongRole)
}

func authorizeRecord(p Principal, a Action, r PatientRecordResource) Decision {
	switch pr := p.(type) {
	case HospitalPrincipal:
		if a.writes() {
			return deny(r, ReasonWrongRole)
		}
		if !sameHospital(pr, r.PatientHospitalID) {
			return deny(r, ReasonNotOwner)
		}
		return allow()
	case PatientPrincipal:
		if r.PatientID != pr.PatientID {
			return deny(r, ReasonNotOwner)
		}
		return allow()
	}
	return deny(r, ReasonWrongRole)
}
