package memory

import (
	"context"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/postcare/postcare/internal/store"
	"github.com/postcare/postcare/pkg/pagination"
)

type userRepo struct{ s *Store }

func (r userRepo) createUser(u *store.User) error {
	key := strings.ToLower(u.Email)
	if _, ok := r.s.emails[key]; ok {
		return store.ErrDuplicateEmail
	}
	u.ID = newID(u.ID)
	u.CreatedAt = r.s.stamp()
	u.UpdatedAt = u.CreatedAt
	c := *u
	c.Phone = ptrCopy(u.Phone)
	r.s.users[u.ID] = &c
	r.s.emails[key] = u.ID
	return nil
}

func (r userRepo) CreateHospitalAccount(_ context.Context, u *store.User, h *store.Hospital) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if err := r.createUser(u); err != nil {
		return err
	}
	h.ID = newID(h.ID)
	h.UserID = u.ID
	h.CreatedAt = u.CreatedAt
	c := *h
	c.Address = ptrCopy(h.Address)
	r.s.hospitals[h.ID] = &c
	return nil
}

func (r userRepo) CreatePatientAccount(_ context.Context, u *store.User, p *store.Patient) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if p.HospitalID != nil {
		if _, ok := r.s.hospitals[*p.HospitalID]; !ok {
			return store.ErrMissingParent
		}
	}
	if err := r.createUser(u); err != nil {
		return err
	}
	p.ID = newID(p.ID)
	p.UserID = u.ID
	p.CreatedAt = u.CreatedAt
	p.UpdatedAt = u.CreatedAt
	r.s.patients[p.ID] = copyPatient(p)
	return nil
}

func (r userRepo) GetByID(_ context.Context, id uuid.UUID) (*store.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	u, ok := r.s.users[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	c := *u
	c.Phone = ptrCopy(u.Phone)
	return &c, nil
}

func (r userRepo) GetByEmail(ctx context.Context, email string) (*store.User, error) {
	r.s.mu.RLock()
	id, ok := r.s.emails[strings.ToLower(email)]
	r.s.mu.RUnlock()
	if !ok {
		return nil, store.ErrNotFound
	}
	return r.GetByID(ctx, id)
}

type hospitalRepo struct{ s *Store }

func (r hospitalRepo) GetByID(_ context.Context, id uuid.UUID) (*store.Hospital, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	h, ok := r.s.hospitals[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	c := *h
	c.Address = ptrCopy(h.Address)
	return &c, nil
}

func (r hospitalRepo) GetByUserID(ctx context.Context, userID uuid.UUID) (*store.Hospital, error) {
	r.s.mu.RLock()
	var found uuid.UUID
	for _, h := range r.s.hospitals {
		if h.UserID == userID {
			found = h.ID
			break
		}
	}
	r.s.mu.RUnlock()
	if found == uuid.Nil {
		return nil, store.ErrNotFound
	}
	return r.GetByID(ctx, found)
}

type patientRepo struct{ s *Store }

func copyPatient(p *store.Patient) *store.Patient {
	c := *p
	c.HospitalID = ptrCopy(p.HospitalID)
	c.Phone = ptrCopy(p.Phone)
	c.DateOfBirth = ptrCopy(p.DateOfBirth)
	return &c
}

func (r patientRepo) GetByID(_ context.Context, id uuid.UUID) (*store.Patient, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	p, ok := r.s.patients[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return copyPatient(p), nil
}

func (r patientRepo) GetByUserID(_ context.Context, userID uuid.UUID) (*store.Patient, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	for _, p := range r.s.patients {
		if p.UserID == userID {
			return copyPatient(p), nil
		}
	}
	return nil, store.ErrNotFound
}

func (r patientRepo) AssignHospital(_ context.Context, patientID, hospitalID uuid.UUID) (*store.Patient, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	p, ok := r.s.patients[patientID]
	if !ok {
		return nil, store.ErrNotFound
	}
	if _, ok := r.s.hospitals[hospitalID]; !ok {
		return nil, store.ErrMissingParent
	}
	id := hospitalID
	p.HospitalID = &id
	p.UpdatedAt = r.s.stamp()
	return copyPatient(p), nil
}

func (r patientRepo) Search(_ context.Context, q store.PatientSearch) ([]*store.PatientListItem, int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	needle := strings.TrimSpace(q.Query)
	var matched []*store.Patient
	for _, p := range r.s.patients {
		if !p.BelongsTo(q.HospitalID) {
			continue
		}
		if needle != "" {
			nameHit := containsFold(p.Name, needle)
			phoneHit := p.Phone != nil && strings.Contains(*p.Phone, needle)
			if !nameHit && !phoneHit {
				continue
			}
		}
		matched = append(matched, p)
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	total := len(matched)
	page := pagination.Window(matched, q.Limit, q.Offset)
	items := make([]*store.PatientListItem, 0, len(page))
	for _, p := range page {
		item := &store.PatientListItem{Patient: *copyPatient(p)}
		if u, ok := r.s.users[p.UserID]; ok {
			item.Email = u.Email
		}
		var latest *store.DischargePlan
		for _, plan := range r.s.plans {
			if plan.PatientID != p.ID || plan.HospitalID != q.HospitalID {
				continue
			}
			item.PlanCount++
			if latest == nil || plan.CreatedAt.After(latest.CreatedAt) {
				latest = plan
			}
		}
		if latest != nil {
			item.LatestPlan = &store.PlanSummary{
				ID:            latest.ID,
				Diagnosis:     latest.Diagnosis,
				DischargeDate: latest.DischargeDate,
				FollowUpDate:  ptrCopy(latest.FollowUpDate),
			}
		}
		for _, v := range r.s.vitals {
			if v.PatientID == p.ID {
				item.VitalCount++
			}
		}
		items = append(items, item)
	}
	return items, total, nil
}

// containsFold reports whether sub occurs in s under Unicode simple case
// folding, the same comparison ILIKE makes in a UTF-8 database.
func containsFold(s, sub string) bool {
	if sub == "" {
		return true
	}
	n := utf8.RuneCountInString(sub)
	for i := range s {
		end := i
		for k := 0; k < n && end < len(s); k++ {
			_, size := utf8.DecodeRuneInString(s[end:])
			end += size
		}
		if strings.EqualFold(s[i:end], sub) {
			return true
		}
	}
	return false
}

func (r patientRepo) CountByHospital(_ context.Context, hospitalID uuid.UUID) (int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	n := 0
	for _, p := range r.s.patients {
		if p.BelongsTo(hospitalID) {
			n++
		}
	}
	return n, nil
}
