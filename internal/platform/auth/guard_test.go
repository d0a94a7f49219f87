package auth

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/postcare/postcare/internal/platform/apperror"
)

func TestAuthorize(t *testing.T) {
	hospA, hospB := uuid.New(), uuid.New()
	patX, patY := uuid.New(), uuid.New()

	asA := HospitalPrincipal{Subject: uuid.New(), HospitalID: hospA}
	asX := PatientPrincipal{Subject: uuid.New(), PatientID: patX}

	planA := PlanResource{HospitalID: hospA, PatientID: patX}
	planB := PlanResource{HospitalID: hospB, PatientID: patY}
	planMed := MedicationResource{PatientID: patX, HospitalID: hospA}
	selfMed := MedicationResource{SelfAdded: true, PatientID: patX}
	otherSelfMed := MedicationResource{SelfAdded: true, PatientID: patY}
	vitalX := PatientRecordResource{Kind: "vital log", PatientID: patX, PatientHospitalID: &hospA}
	vitalY := PatientRecordResource{Kind: "vital log", PatientID: patY, PatientHospitalID: &hospB}

	tests := []struct {
		name   string
		p      Principal
		action Action
		res    Resource
		want   apperror.Kind
	}{
		{"anonymous", nil, ActionRead, planA, apperror.KindUnauthenticated},

		{"hospital reads own plan", asA, ActionRead, planA, ""},
		{"hospital updates own plan", asA, ActionUpdate, planA, ""},
		{"hospital reads foreign plan", asA, ActionRead, planB, apperror.KindNotFound},
		{"hospital updates foreign plan", asA, ActionUpdate, planB, apperror.KindNotFound},
		{"hospital deletes plan", asA, ActionDelete, planA, apperror.KindAuthorization},
		{"hospital creates plan for own patient", asA, ActionCreate, PlanResource{HospitalID: hospA, PatientID: patX, PatientHospitalID: &hospA}, ""},
		{"hospital creates plan for foreign patient", asA, ActionCreate, PlanResource{HospitalID: hospA, PatientID: patY, PatientHospitalID: &hospB}, apperror.KindNotFound},
		{"hospital creates plan for unassigned patient", asA, ActionCreate, PlanResource{HospitalID: hospA, PatientID: patY}, apperror.KindNotFound},
		{"patient reads own plan", asX, ActionRead, planA, ""},
		{"patient updates own plan", asX, ActionUpdate, planA, apperror.KindAuthorization},
		{"patient reads other plan", asX, ActionRead, planB, apperror.KindNotFound},
		{"patient creates plan", asX, ActionCreate, planA, apperror.KindAuthorization},

		{"patient edits self-added", asX, ActionUpdate, selfMed, ""},
		{"patient deletes self-added", asX, ActionDelete, selfMed, ""},
		{"patient edits plan medication", asX, ActionUpdate, planMed, apperror.KindAuthorization},
		{"patient deletes plan medication", asX, ActionDelete, planMed, apperror.KindAuthorization},
		{"patient reads plan medication", asX, ActionRead, planMed, ""},
		{"patient edits other self-added", asX, ActionUpdate, otherSelfMed, apperror.KindNotFound},
		{"hospital reads own plan medication", asA, ActionRead, planMed, ""},
		{"hospital edits plan medication", asA, ActionUpdate, planMed, apperror.KindAuthorization},
		{"hospital reads self-added", asA, ActionRead, selfMed, apperror.KindNotFound},
		{"hospital creates self-added", asA, ActionCreate, selfMed, apperror.KindAuthorization},

		{"patient writes own vitals", asX, ActionCreate, vitalX, ""},
		{"patient deletes own vitals", asX, ActionDelete, vitalX, ""},
		{"patient reads other vitals", asX, ActionRead, vitalY, apperror.KindNotFound},
		{"hospital reads own patient vitals", asA, ActionRead, vitalX, ""},
		{"hospital reads foreign vitals", asA, ActionRead, vitalY, apperror.KindNotFound},
		{"hospital writes vitals", asA, ActionCreate, vitalX, apperror.KindAuthorization},

		{"hospital reads own patient", asA, ActionRead, PatientResource{PatientID: patX, HospitalID: &hospA}, ""},
		{"hospital reads foreign patient", asA, ActionRead, PatientResource{PatientID: patY, HospitalID: &hospB}, apperror.KindNotFound},
		{"hospital links patient", asA, ActionCreate, PatientResource{PatientID: patY, HospitalID: &hospB}, ""},
		{"patient reads self", asX, ActionRead, PatientResource{PatientID: patX}, ""},
		{"patient reads other", asX, ActionRead, PatientResource{PatientID: patY}, apperror.KindNotFound},
		{"patient creates patient", asX, ActionCreate, PatientResource{}, apperror.KindAuthorization},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := Authorize(tt.p, tt.action, tt.res)
			err := d.Err()
			if tt.want == "" {
				assert.True(t, d.Allowed)
				assert.NoError(t, err)
				return
			}
			assert.False(t, d.Allowed)
			assert.Equal(t, tt.want, apperror.KindOf(err))
		})
	}
}

func TestAuthorize_NilResource(t *testing.T) {
	err := Check(nil, ActionRead, nil)
	assert.Equal(t, apperror.KindUnauthenticated, apperror.KindOf(err))
}

func TestDecision_NotFoundNamesResource(t *testing.T) {
	asX := PatientPrincipal{Subject: uuid.New(), PatientID: uuid.New()}
	err := Check(asX, ActionRead, PatientRecordResource{Kind: "medication log", PatientID: uuid.New()})
	assert.EqualError(t, err, "NotFound: medication log not found")
}
