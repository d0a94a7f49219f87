package memory

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/postcare/postcare/internal/store"
	"github.com/postcare/postcare/pkg/dates"
	"github.com/postcare/postcare/pkg/pagination"
)

type planRepo struct{ s *Store }

// planMedications is called with mu held.
func (r planRepo) planMedications(planID uuid.UUID) []store.Medication {
	meds := []store.Medication{}
	for _, m := range r.s.medications {
		if m.DischargePlanID != nil && *m.DischargePlanID == planID {
			meds = append(meds, *copyMedication(m))
		}
	}
	sort.Slice(meds, func(i, j int) bool { return meds[i].CreatedAt.Before(meds[j].CreatedAt) })
	return meds
}

func (r planRepo) copyPlan(p *store.DischargePlan) *store.DischargePlan {
	c := *p
	c.ActivityRestrictions = ptrCopy(p.ActivityRestrictions)
	c.FollowUpDate = ptrCopy(p.FollowUpDate)
	c.Medications = r.planMedications(p.ID)
	return &c
}

func (r planRepo) Create(_ context.Context, p *store.DischargePlan) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.patients[p.PatientID]; !ok {
		return store.ErrMissingParent
	}
	if _, ok := r.s.hospitals[p.HospitalID]; !ok {
		return store.ErrMissingParent
	}

	p.ID = newID(p.ID)
	p.CreatedAt = r.s.stamp()
	p.UpdatedAt = p.CreatedAt

	meds := make([]*store.Medication, 0, len(p.Medications))
	for i := range p.Medications {
		m := &p.Medications[i]
		planID := p.ID
		m.DischargePlanID = &planID
		m.PatientID = nil
		m.ID = newID(m.ID)
		m.CreatedAt = r.s.stamp()
		m.UpdatedAt = m.CreatedAt
		meds = append(meds, copyMedication(m))
	}

	stored := *p
	stored.ActivityRestrictions = ptrCopy(p.ActivityRestrictions)
	stored.FollowUpDate = ptrCopy(p.FollowUpDate)
	stored.Medications = nil
	r.s.plans[p.ID] = &stored
	for _, m := range meds {
		r.s.medications[m.ID] = m
	}
	return nil
}

func (r planRepo) GetByID(_ context.Context, id uuid.UUID) (*store.DischargePlan, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	p, ok := r.s.plans[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return r.copyPlan(p), nil
}

func (r planRepo) Update(_ context.Context, p *store.DischargePlan) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	existing, ok := r.s.plans[p.ID]
	if !ok {
		return store.ErrNotFound
	}
	existing.DischargeDate = p.DischargeDate
	existing.Diagnosis = p.Diagnosis
	existing.Instructions = p.Instructions
	existing.ActivityRestrictions = ptrCopy(p.ActivityRestrictions)
	existing.FollowUpDate = ptrCopy(p.FollowUpDate)
	existing.UpdatedAt = r.s.stamp()

	p.PatientID = existing.PatientID
	p.HospitalID = existing.HospitalID
	p.CreatedAt = existing.CreatedAt
	p.UpdatedAt = existing.UpdatedAt
	p.Medications = r.planMedications(p.ID)
	return nil
}

func (r planRepo) List(_ context.Context, f store.PlanFilter, limit, offset int) ([]*store.DischargePlan, int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var matched []*store.DischargePlan
	for _, p := range r.s.plans {
		if f.HospitalID != nil && p.HospitalID != *f.HospitalID {
			continue
		}
		if f.PatientID != nil && p.PatientID != *f.PatientID {
			continue
		}
		matched = append(matched, p)
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].CreatedAt.After(matched[j].CreatedAt) })

	page := pagination.Window(matched, limit, offset)
	out := make([]*store.DischargePlan, 0, len(page))
	for _, p := range page {
		out = append(out, r.copyPlan(p))
	}
	return out, len(matched), nil
}

func (r planRepo) CountByHospital(_ context.Context, hospitalID uuid.UUID) (int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	n := 0
	for _, p := range r.s.plans {
		if p.HospitalID == hospitalID {
			n++
		}
	}
	return n, nil
}

func (r planRepo) NextFollowUp(_ context.Context, patientID uuid.UUID, from time.Time) (*time.Time, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var next *time.Time
	for _, p := range r.s.plans {
		if p.PatientID != patientID || p.FollowUpDate == nil || p.FollowUpDate.Before(from) {
			continue
		}
		if next == nil || p.FollowUpDate.Before(*next) {
			next = ptrCopy(p.FollowUpDate)
		}
	}
	return next, nil
}

type medicationRepo struct{ s *Store }

func (r medicationRepo) Create(_ context.Context, m *store.Medication) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if !m.ValidOrigin() {
		return store.ErrInvalidOrigin
	}
	if m.PatientID != nil {
		if _, ok := r.s.patients[*m.PatientID]; !ok {
			return store.ErrMissingParent
		}
	}
	if m.DischargePlanID != nil {
		if _, ok := r.s.plans[*m.DischargePlanID]; !ok {
			return store.ErrMissingParent
		}
	}
	m.ID = newID(m.ID)
	m.CreatedAt = r.s.stamp()
	m.UpdatedAt = m.CreatedAt
	r.s.medications[m.ID] = copyMedication(m)
	return nil
}

func (r medicationRepo) GetByID(_ context.Context, id uuid.UUID) (*store.Medication, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	m, ok := r.s.medications[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return copyMedication(m), nil
}

func (r medicationRepo) Update(_ context.Context, m *store.Medication) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	existing, ok := r.s.medications[m.ID]
	if !ok || !existing.SelfAdded() {
		return store.ErrNotFound
	}
	existing.Name = m.Name
	existing.Dosage = m.Dosage
	existing.Frequency = m.Frequency
	existing.StartDate = m.StartDate
	existing.EndDate = ptrCopy(m.EndDate)
	existing.UpdatedAt = r.s.stamp()
	*m = *copyMedication(existing)
	return nil
}

func (r medicationRepo) DeleteSelfAdded(_ context.Context, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	m, ok := r.s.medications[id]
	if !ok || !m.SelfAdded() {
		return store.ErrNotFound
	}
	for key, logID := range r.s.logIndex {
		if key.medicationID == id {
			delete(r.s.logs, logID)
			delete(r.s.logIndex, key)
		}
	}
	delete(r.s.medications, id)
	return nil
}

func (r medicationRepo) ListSelfAdded(_ context.Context, patientID uuid.UUID) ([]*store.Medication, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	out := []*store.Medication{}
	for _, m := range r.s.medications {
		if m.SelfAdded() && *m.PatientID == patientID {
			out = append(out, copyMedication(m))
		}
	}
	sortMedications(out)
	return out, nil
}

func (r medicationRepo) ListForPatient(_ context.Context, patientID uuid.UUID) ([]*store.Medication, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	out := []*store.Medication{}
	for _, m := range r.s.medications {
		switch {
		case m.PatientID != nil && *m.PatientID == patientID:
			out = append(out, copyMedication(m))
		case m.DischargePlanID != nil:
			if p, ok := r.s.plans[*m.DischargePlanID]; ok && p.PatientID == patientID {
				out = append(out, copyMedication(m))
			}
		}
	}
	sortMedications(out)
	return out, nil
}

func sortMedications(meds []*store.Medication) {
	sort.Slice(meds, func(i, j int) bool { return meds[i].CreatedAt.After(meds[j].CreatedAt) })
}

type vitalRepo struct{ s *Store }

func copyVital(v *store.VitalLog) *store.VitalLog {
	c := *v
	c.BloodPressureSystolic = ptrCopy(v.BloodPressureSystolic)
	c.BloodPressureDiastolic = ptrCopy(v.BloodPressureDiastolic)
	c.Weight = ptrCopy(v.Weight)
	c.Glucose = ptrCopy(v.Glucose)
	c.Temperature = ptrCopy(v.Temperature)
	c.Notes = ptrCopy(v.Notes)
	return &c
}

func (r vitalRepo) Create(_ context.Context, v *store.VitalLog) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.patients[v.PatientID]; !ok {
		return store.ErrMissingParent
	}
	v.ID = newID(v.ID)
	v.RecordedAt = v.RecordedAt.UTC().Truncate(time.Microsecond)
	v.CreatedAt = r.s.stamp()
	v.UpdatedAt = v.CreatedAt
	r.s.vitals[v.ID] = copyVital(v)
	return nil
}

func (r vitalRepo) GetByID(_ context.Context, id uuid.UUID) (*store.VitalLog, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	v, ok := r.s.vitals[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return copyVital(v), nil
}

func (r vitalRepo) Update(_ context.Context, v *store.VitalLog) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	existing, ok := r.s.vitals[v.ID]
	if !ok {
		return store.ErrNotFound
	}
	updated := copyVital(v)
	updated.PatientID = existing.PatientID
	updated.RecordedAt = v.RecordedAt.UTC().Truncate(time.Microsecond)
	updated.CreatedAt = existing.CreatedAt
	updated.UpdatedAt = r.s.stamp()
	r.s.vitals[v.ID] = updated
	*v = *copyVital(updated)
	return nil
}

func (r vitalRepo) Delete(_ context.Context, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.vitals[id]; !ok {
		return store.ErrNotFound
	}
	delete(r.s.vitals, id)
	return nil
}

func (r vitalRepo) ListByPatient(_ context.Context, patientID uuid.UUID, limit, offset int) ([]*store.VitalLog, int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var matched []*store.VitalLog
	for _, v := range r.s.vitals {
		if v.PatientID == patientID {
			matched = append(matched, v)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		if matched[i].RecordedAt.Equal(matched[j].RecordedAt) {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return matched[i].RecordedAt.After(matched[j].RecordedAt)
	})

	page := pagination.Window(matched, limit, offset)
	out := make([]*store.VitalLog, 0, len(page))
	for _, v := range page {
		out = append(out, copyVital(v))
	}
	return out, len(matched), nil
}

type logRepo struct{ s *Store }

func keyOf(l *store.MedicationLog) logKey {
	return logKey{patientID: l.PatientID, medicationID: l.MedicationID, day: dates.Format(l.Day)}
}

// withMedication is called with mu held.
func (r logRepo) withMedication(l *store.MedicationLog) *store.MedicationLog {
	c := *l
	c.Notes = ptrCopy(l.Notes)
	c.Medication = nil
	if m, ok := r.s.medications[l.MedicationID]; ok {
		c.Medication = &store.MedicationSummary{Name: m.Name, Dosage: m.Dosage, Frequency: m.Frequency}
	}
	return &c
}

func (r logRepo) Upsert(_ context.Context, l *store.MedicationLog) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.patients[l.PatientID]; !ok {
		return false, store.ErrMissingParent
	}
	if _, ok := r.s.medications[l.MedicationID]; !ok {
		return false, store.ErrMissingParent
	}
	l.Day = dates.Day(l.Day, time.UTC)
	key := keyOf(l)

	if id, ok := r.s.logIndex[key]; ok {
		existing := r.s.logs[id]
		existing.Taken = l.Taken
		existing.Notes = ptrCopy(l.Notes)
		existing.UpdatedAt = r.s.stamp()
		*l = *r.withMedication(existing)
		return false, nil
	}

	l.ID = newID(l.ID)
	l.CreatedAt = r.s.stamp()
	l.UpdatedAt = l.CreatedAt
	stored := *l
	stored.Notes = ptrCopy(l.Notes)
	stored.Medication = nil
	r.s.logs[l.ID] = &stored
	r.s.logIndex[key] = l.ID
	*l = *r.withMedication(&stored)
	return true, nil
}

func (r logRepo) GetByID(_ context.Context, id uuid.UUID) (*store.MedicationLog, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	l, ok := r.s.logs[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return r.withMedication(l), nil
}

func (r logRepo) Update(_ context.Context, l *store.MedicationLog) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	existing, ok := r.s.logs[l.ID]
	if !ok {
		return store.ErrNotFound
	}
	existing.Taken = l.Taken
	existing.Notes = ptrCopy(l.Notes)
	existing.UpdatedAt = r.s.stamp()
	*l = *r.withMedication(existing)
	return nil
}

func (r logRepo) Delete(_ context.Context, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	l, ok := r.s.logs[id]
	if !ok {
		return store.ErrNotFound
	}
	delete(r.s.logIndex, keyOf(l))
	delete(r.s.logs, id)
	return nil
}

func (r logRepo) ListByPatient(_ context.Context, patientID uuid.UUID, f store.LogFilter, limit, offset int) ([]*store.MedicationLog, int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var matched []*store.MedicationLog
	for _, l := range r.s.logs {
		if l.PatientID != patientID {
			continue
		}
		if f.MedicationID != nil && l.MedicationID != *f.MedicationID {
			continue
		}
		if f.From != nil && l.Day.Before(*f.From) {
			continue
		}
		if f.To != nil && l.Day.After(*f.To) {
			continue
		}
		matched = append(matched, l)
	}
	sortLogs(matched)

	page := pagination.Window(matched, limit, offset)
	out := make([]*store.MedicationLog, 0, len(page))
	for _, l := range page {
		out = append(out, r.withMedication(l))
	}
	return out, len(matched), nil
}

func (r logRepo) ListForDay(_ context.Context, patientID uuid.UUID, day time.Time) ([]*store.MedicationLog, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	d := dates.Format(day)
	var matched []*store.MedicationLog
	for _, l := range r.s.logs {
		if l.PatientID == patientID && dates.Format(l.Day) == d {
			matched = append(matched, l)
		}
	}
	sortLogs(matched)
	out := make([]*store.MedicationLog, 0, len(matched))
	for _, l := range matched {
		out = append(out, r.withMedication(l))
	}
	return out, nil
}

func sortLogs(logs []*store.MedicationLog) {
	sort.Slice(logs, func(i, j int) bool {
		if logs[i].Day.Equal(logs[j].Day) {
			return logs[i].CreatedAt.After(logs[j].CreatedAt)
		}
		return logs[i].Day.After(logs[j].Day)
	})
}
