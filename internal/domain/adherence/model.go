package adherence

import (
	"math"
	"strings"

	"github.com/postcare/postcare/internal/store"
	"github.com/postcare/postcare/pkg/patch"
)

// SummaryWindow is how many of the most recent logs feed the adherence rate.
const SummaryWindow = 10

// RecordRequest marks a medication taken or missed on a day. Date accepts
// YYYY-MM-DD or a timestamp and defaults to today; Taken defaults to false.
type RecordRequest struct {
	MedicationID string  `json:"medication_id"`
	Date         *string `json:"date"`
	Taken        *bool   `json:"taken"`
	Notes        *string `json:"notes"`
}

// UpdateRequest patches an existing log. Notes may be cleared with null.
type UpdateRequest struct {
	Taken patch.Field[bool]   `json:"taken"`
	Notes patch.Field[string] `json:"notes"`
}

// Summary is the adherence rate over recent logs.
type Summary struct {
	Taken int `json:"taken"`
	Total int `json:"total"`
	Rate  int `json:"rate"`
}

// Summarize computes round(100 * taken / total), 0 for no logs.
func Summarize(logs []*store.MedicationLog) Summary {
	s := Summary{Total: len(logs)}
	for _, l := range logs {
		if l.Taken {
			s.Taken++
		}
	}
	if s.Total > 0 {
		s.Rate = int(math.Round(100 * float64(s.Taken) / float64(s.Total)))
	}
	return s
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
