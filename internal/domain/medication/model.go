package medication

import (
	"fmt"
	"time"

	"github.com/postcare/postcare/internal/platform/apperror"
	"github.com/postcare/postcare/internal/platform/httpx"
	"github.com/postcare/postcare/internal/store"
	"github.com/postcare/postcare/pkg/patch"
)

// Input is a medication as submitted, either nested in a discharge plan or
// self-added by a patient.
type Input struct {
	Name      string  `json:"name"`
	Dosage    string  `json:"dosage"`
	Frequency string  `json:"frequency"`
	StartDate string  `json:"start_date"`
	EndDate   *string `json:"end_date"`
}

// ToMedication validates the input and returns the medication without an
// origin. prefix qualifies field names, e.g. "medications[0].".
func (in Input) ToMedication(prefix string) (store.Medication, error) {
	var m store.Medication
	var err error
	if m.Name, err = httpx.Required(prefix+"name", in.Name); err != nil {
		return m, err
	}
	if m.Dosage, err = httpx.Required(prefix+"dosage", in.Dosage); err != nil {
		return m, err
	}
	if m.Frequency, err = httpx.Required(prefix+"frequency", in.Frequency); err != nil {
		return m, err
	}
	if m.StartDate, err = httpx.Day(prefix+"start_date", in.StartDate); err != nil {
		return m, err
	}
	if m.EndDate, err = httpx.OptionalDay(prefix+"end_date", in.EndDate); err != nil {
		return m, err
	}
	if err := checkRange(prefix, m.StartDate, m.EndDate); err != nil {
		return m, err
	}
	return m, nil
}

func checkRange(prefix string, start time.Time, end *time.Time) error {
	if end != nil && end.Before(start) {
		return apperror.Validation(prefix+"end_date", fmt.Sprintf("%send_date must not be before start_date", prefix))
	}
	return nil
}

// UpdateRequest patches a self-added medication. Absent fields are left
// unchanged; end_date may be cleared with null.
type UpdateRequest struct {
	Name      patch.Field[string] `json:"name"`
	Dosage    patch.Field[string] `json:"dosage"`
	Frequency patch.Field[string] `json:"frequency"`
	StartDate patch.Field[string] `json:"start_date"`
	EndDate   patch.Field[string] `json:"end_date"`
}

// Apply validates the patch against m and writes it.
func (r UpdateRequest) Apply(m *store.Medication) error {
	for _, f := range []struct {
		name  string
		field patch.Field[string]
		dst   *string
	}{
		{"name", r.Name, &m.Name},
		{"dosage", r.Dosage, &m.Dosage},
		{"frequency", r.Frequency, &m.Frequency},
	} {
		if !f.field.Set {
			continue
		}
		v, err := httpx.Required(f.name, f.field.Value)
		if err != nil {
			return err
		}
		*f.dst = v
	}

	if r.StartDate.Set {
		d, err := httpx.Day("start_date", r.StartDate.Value)
		if err != nil {
			return err
		}
		m.StartDate = d
	}
	if r.EndDate.Set {
		if r.EndDate.Null {
			m.EndDate = nil
		} else {
			d, err := httpx.OptionalDay("end_date", &r.EndDate.Value)
			if err != nil {
				return err
			}
			m.EndDate = d
		}
	}
	return checkRange("", m.StartDate, m.EndDate)
}

// ScheduleEntry is one medication due on a day together with that day's
// adherence log, if recorded.
type ScheduleEntry struct {
	Medication store.Medication     `json:"medication"`
	SelfAdded  bool                 `json:"self_added"`
	Log        *store.MedicationLog `json:"log,omitempty"`
}

// Schedule is the day view shown on the patient dashboard and log screen.
type Schedule struct {
	Date    string          `json:"date"`
	Entries []ScheduleEntry `json:"entries"`
	Taken   int             `json:"taken"`
	Total   int             `json:"total"`
}
