package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/postcare/postcare/internal/store"
)

type planRepo struct{ s *Store }

const planCols = `id, patient_id, hospital_id, discharge_date, diagnosis, instructions,
	activity_restrictions, follow_up_date, created_at, updated_at`

func planDest(p *store.DischargePlan) []any {
	return []any{&p.ID, &p.PatientID, &p.HospitalID, &p.DischargeDate, &p.Diagnosis, &p.Instructions,
		&p.ActivityRestrictions, &p.FollowUpDate, &p.CreatedAt, &p.UpdatedAt}
}

const medicationCols = `id, name, dosage, frequency, start_date, end_date,
	discharge_plan_id, patient_id, created_at, updated_at`

func medicationDest(m *store.Medication) []any {
	return []any{&m.ID, &m.Name, &m.Dosage, &m.Frequency, &m.StartDate, &m.EndDate,
		&m.DischargePlanID, &m.PatientID, &m.CreatedAt, &m.UpdatedAt}
}

func (r *planRepo) Create(ctx context.Context, p *store.DischargePlan) error {
	err := r.s.inTx(ctx, func(ctx context.Context) error {
		if p.ID == uuid.Nil {
			p.ID = uuid.New()
		}
		if err := r.s.conn(ctx).QueryRow(ctx, `
			INSERT INTO discharge_plans (id, patient_id, hospital_id, discharge_date, diagnosis,
				instructions, activity_restrictions, follow_up_date)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			RETURNING created_at, updated_at`,
			p.ID, p.PatientID, p.HospitalID, p.DischargeDate, p.Diagnosis,
			p.Instructions, p.ActivityRestrictions, p.FollowUpDate,
		).Scan(&p.CreatedAt, &p.UpdatedAt); err != nil {
			return err
		}

		for i := range p.Medications {
			m := &p.Medications[i]
			planID := p.ID
			m.DischargePlanID = &planID
			m.PatientID = nil
			if err := insertMedication(ctx, r.s, m); err != nil {
				return err
			}
		}
		return nil
	})
	return mapError(err, "create discharge plan")
}

func insertMedication(ctx context.Context, s *Store, m *store.Medication) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return s.conn(ctx).QueryRow(ctx, `
		INSERT INTO medications (id, name, dosage, frequency, start_date, end_date, discharge_plan_id, patient_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at, updated_at`,
		m.ID, m.Name, m.Dosage, m.Frequency, m.StartDate, m.EndDate, m.DischargePlanID, m.PatientID,
	).Scan(&m.CreatedAt, &m.UpdatedAt)
}

func (r *planRepo) attachMedications(ctx context.Context, plans []*store.DischargePlan) error {
	if len(plans) == 0 {
		return nil
	}
	ids := make([]uuid.UUID, len(plans))
	byID := make(map[uuid.UUID]*store.DischargePlan, len(plans))
	for i, p := range plans {
		ids[i] = p.ID
		p.Medications = []store.Medication{}
		byID[p.ID] = p
	}

	rows, err := r.s.conn(ctx).Query(ctx, `
		SELECT `+medicationCols+`
		FROM medications
		WHERE discharge_plan_id = ANY($1)
		ORDER BY created_at`, ids)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var m store.Medication
		if err := rows.Scan(medicationDest(&m)...); err != nil {
			return err
		}
		if p, ok := byID[*m.DischargePlanID]; ok {
			p.Medications = append(p.Medications, m)
		}
	}
	return rows.Err()
}

func (r *planRepo) GetByID(ctx context.Context, id uuid.UUID) (*store.DischargePlan, error) {
	var p store.DischargePlan
	if err := r.s.conn(ctx).QueryRow(ctx,
		`SELECT `+planCols+` FROM discharge_plans WHERE id = $1`, id).Scan(planDest(&p)...); err != nil {
		return nil, mapError(err, "get discharge plan")
	}
	if err := r.attachMedications(ctx, []*store.DischargePlan{&p}); err != nil {
		return nil, mapError(err, "load plan medications")
	}
	return &p, nil
}

func (r *planRepo) Update(ctx context.Context, p *store.DischargePlan) error {
	err := r.s.conn(ctx).QueryRow(ctx, `
		UPDATE discharge_plans
		SET discharge_date = $2, diagnosis = $3, instructions = $4,
		    activity_restrictions = $5, follow_up_date = $6, updated_at = NOW()
		WHERE id = $1
		RETURNING `+planCols,
		p.ID, p.DischargeDate, p.Diagnosis, p.Instructions, p.ActivityRestrictions, p.FollowUpDate,
	).Scan(planDest(p)...)
	if err != nil {
		return mapError(err, "update discharge plan")
	}
	return mapError(r.attachMedications(ctx, []*store.DischargePlan{p}), "load plan medications")
}

func (r *planRepo) List(ctx context.Context, f store.PlanFilter, limit, offset int) ([]*store.DischargePlan, int, error) {
	const where = ` WHERE ($1::uuid IS NULL OR hospital_id = $1) AND ($2::uuid IS NULL OR patient_id = $2)`

	var total int
	if err := r.s.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM discharge_plans`+where, f.HospitalID, f.PatientID).Scan(&total); err != nil {
		return nil, 0, mapError(err, "count discharge plans")
	}

	rows, err := r.s.conn(ctx).Query(ctx,
		`SELECT `+planCols+` FROM discharge_plans`+where+` ORDER BY created_at DESC LIMIT $3 OFFSET $4`,
		f.HospitalID, f.PatientID, limit, offset)
	if err != nil {
		return nil, 0, mapError(err, "list discharge plans")
	}
	defer rows.Close()

	plans := []*store.DischargePlan{}
	for rows.Next() {
		var p store.DischargePlan
		if err := rows.Scan(planDest(&p)...); err != nil {
			return nil, 0, mapError(err, "scan discharge plan")
		}
		plans = append(plans, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, mapError(err, "iterate discharge plans")
	}
	if err := r.attachMedications(ctx, plans); err != nil {
		return nil, 0, mapError(err, "load plan medications")
	}
	return plans, total, nil
}

func (r *planRepo) CountByHospital(ctx context.Context, hospitalID uuid.UUID) (int, error) {
	var n int
	err := r.s.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM discharge_plans WHERE hospital_id = $1`, hospitalID).Scan(&n)
	return n, mapError(err, "count discharge plans")
}

func (r *planRepo) NextFollowUp(ctx context.Context, patientID uuid.UUID, from time.Time) (*time.Time, error) {
	var next *time.Time
	err := r.s.conn(ctx).QueryRow(ctx, `
		SELECT MIN(follow_up_date) FROM discharge_plans
		WHERE patient_id = $1 AND follow_up_date >= $2`, patientID, from).Scan(&next)
	return next, mapError(err, "next follow-up")
}

type medicationRepo struct{ s *Store }

func (r *medicationRepo) Create(ctx context.Context, m *store.Medication) error {
	if !m.ValidOrigin() {
		return store.ErrInvalidOrigin
	}
	return mapError(insertMedication(ctx, r.s, m), "create medication")
}

func (r *medicationRepo) GetByID(ctx context.Context, id uuid.UUID) (*store.Medication, error) {
	var m store.Medication
	if err := r.s.conn(ctx).QueryRow(ctx,
		`SELECT `+medicationCols+` FROM medications WHERE id = $1`, id).Scan(medicationDest(&m)...); err != nil {
		return nil, mapError(err, "get medication")
	}
	return &m, nil
}

func (r *medicationRepo) Update(ctx context.Context, m *store.Medication) error {
	err := r.s.conn(ctx).QueryRow(ctx, `
		UPDATE medications
		SET name = $2, dosage = $3, frequency = $4, start_date = $5, end_date = $6, updated_at = NOW()
		WHERE id = $1 AND discharge_plan_id IS NULL
		RETURNING `+medicationCols,
		m.ID, m.Name, m.Dosage, m.Frequency, m.StartDate, m.EndDate,
	).Scan(medicationDest(m)...)
	return mapError(err, "update medication")
}

func (r *medicationRepo) DeleteSelfAdded(ctx context.Context, id uuid.UUID) error {
	err := r.s.inTx(ctx, func(ctx context.Context) error {
		if _, err := r.s.conn(ctx).Exec(ctx, `
			DELETE FROM medication_logs
			WHERE medication_id = $1
			  AND EXISTS (SELECT 1 FROM medications WHERE id = $1 AND discharge_plan_id IS NULL)`, id); err != nil {
			return err
		}
		tag, err := r.s.conn(ctx).Exec(ctx,
			`DELETE FROM medications WHERE id = $1 AND discharge_plan_id IS NULL`, id)
		if err != nil {
			return err
		}
		return notFoundIfNone(tag)
	})
	return mapError(err, "delete medication")
}

func (r *medicationRepo) list(ctx context.Context, query string, args ...any) ([]*store.Medication, error) {
	rows, err := r.s.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	meds := []*store.Medication{}
	for rows.Next() {
		var m store.Medication
		if err := rows.Scan(medicationDest(&m)...); err != nil {
			return nil, err
		}
		meds = append(meds, &m)
	}
	return meds, rows.Err()
}

func (r *medicationRepo) ListSelfAdded(ctx context.Context, patientID uuid.UUID) ([]*store.Medication, error) {
	meds, err := r.list(ctx, `
		SELECT `+medicationCols+` FROM medications
		WHERE patient_id = $1 AND discharge_plan_id IS NULL
		ORDER BY created_at DESC`, patientID)
	return meds, mapError(err, "list self-added medications")
}

func (r *medicationRepo) ListForPatient(ctx context.Context, patientID uuid.UUID) ([]*store.Medication, error) {
	meds, err := r.list(ctx, `
		SELECT `+medicationCols+` FROM medications
		WHERE patient_id = $1
		   OR discharge_plan_id IN (SELECT id FROM discharge_plans WHERE patient_id = $1)
		ORDER BY created_at DESC`, patientID)
	return meds, mapError(err, "list patient medications")
}
