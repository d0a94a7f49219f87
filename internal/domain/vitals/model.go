package vitals

import (
	"fmt"
	"strings"

	"github.com/postcare/postcare/internal/platform/apperror"
	"github.com/postcare/postcare/internal/store"
	"github.com/postcare/postcare/pkg/patch"
)

// CreateRequest is a new set of measurements. Date is an optional RFC 3339
// or local timestamp; the server clock is used when it is omitted.
type CreateRequest struct {
	Date                   *string  `json:"date"`
	BloodPressureSystolic  *int     `json:"blood_pressure_systolic"`
	BloodPressureDiastolic *int     `json:"blood_pressure_diastolic"`
	Weight                 *float64 `json:"weight"`
	Glucose                *float64 `json:"glucose"`
	Temperature            *float64 `json:"temperature"`
	Notes                  *string  `json:"notes"`
}

func (r CreateRequest) validate() error {
	if err := pressure("blood_pressure_systolic", r.BloodPressureSystolic); err != nil {
		return err
	}
	if err := pressure("blood_pressure_diastolic", r.BloodPressureDiastolic); err != nil {
		return err
	}
	if err := positive("weight", r.Weight); err != nil {
		return err
	}
	if err := positive("glucose", r.Glucose); err != nil {
		return err
	}
	return positive("temperature", r.Temperature)
}

// UpdateRequest patches a vital log. Every measurement is nullable.
type UpdateRequest struct {
	Date                   patch.Field[string]  `json:"date"`
	BloodPressureSystolic  patch.Field[int]     `json:"blood_pressure_systolic"`
	BloodPressureDiastolic patch.Field[int]     `json:"blood_pressure_diastolic"`
	Weight                 patch.Field[float64] `json:"weight"`
	Glucose                patch.Field[float64] `json:"glucose"`
	Temperature            patch.Field[float64] `json:"temperature"`
	Notes                  patch.Field[string]  `json:"notes"`
}

// apply validates the measurement fields and writes them into v. Date is
// handled by the service because it needs the configured zone.
func (r UpdateRequest) apply(v *store.VitalLog) error {
	for _, f := range []struct {
		name  string
		field patch.Field[int]
		dst   **int
	}{
		{"blood_pressure_systolic", r.BloodPressureSystolic, &v.BloodPressureSystolic},
		{"blood_pressure_diastolic", r.BloodPressureDiastolic, &v.BloodPressureDiastolic},
	} {
		if f.field.HasValue() {
			if err := pressure(f.name, &f.field.Value); err != nil {
				return err
			}
		}
		f.field.ApplyPtr(f.dst)
	}
	for _, f := range []struct {
		name  string
		field patch.Field[float64]
		dst   **float64
	}{
		{"weight", r.Weight, &v.Weight},
		{"glucose", r.Glucose, &v.Glucose},
		{"temperature", r.Temperature, &v.Temperature},
	} {
		if f.field.HasValue() {
			if err := positive(f.name, &f.field.Value); err != nil {
				return err
			}
		}
		f.field.ApplyPtr(f.dst)
	}
	if r.Notes.Set {
		v.Notes = nil
		if r.Notes.HasValue() {
			v.Notes = notes(&r.Notes.Value)
		}
	}
	return nil
}

// maxPressure is well above any survivable reading, in mmHg.
const maxPressure = 400

func pressure(field string, v *int) error {
	if v == nil {
		return nil
	}
	if *v <= 0 {
		return apperror.Validation(field, field+" must be a positive number")
	}
	if *v > maxPressure {
		return apperror.Validation(field, fmt.Sprintf("%s must be at most %d mmHg", field, maxPressure))
	}
	return nil
}

func positive(field string, v *float64) error {
	if v != nil && *v <= 0 {
		return apperror.Validation(field, field+" must be a positive number")
	}
	return nil
}

func notes(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}
