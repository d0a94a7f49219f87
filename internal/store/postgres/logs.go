package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/postcare/postcare/internal/store"
)

type vitalRepo struct{ s *Store }

const vitalCols = `id, patient_id, recorded_at, blood_pressure_systolic, blood_pressure_diastolic,
	weight, glucose, temperature, notes, created_at, updated_at`

func vitalDest(v *store.VitalLog) []any {
	return []any{&v.ID, &v.PatientID, &v.RecordedAt, &v.BloodPressureSystolic, &v.BloodPressureDiastolic,
		&v.Weight, &v.Glucose, &v.Temperature, &v.Notes, &v.CreatedAt, &v.UpdatedAt}
}

func (r *vitalRepo) Create(ctx context.Context, v *store.VitalLog) error {
	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}
	err := r.s.conn(ctx).QueryRow(ctx, `
		INSERT INTO vital_logs (id, patient_id, recorded_at, blood_pressure_systolic, blood_pressure_diastolic,
			weight, glucose, temperature, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING `+vitalCols,
		v.ID, v.PatientID, v.RecordedAt, v.BloodPressureSystolic, v.BloodPressureDiastolic,
		v.Weight, v.Glucose, v.Temperature, v.Notes,
	).Scan(vitalDest(v)...)
	return mapError(err, "create vital log")
}

func (r *vitalRepo) GetByID(ctx context.Context, id uuid.UUID) (*store.VitalLog, error) {
	var v store.VitalLog
	if err := r.s.conn(ctx).QueryRow(ctx,
		`SELECT `+vitalCols+` FROM vital_logs WHERE id = $1`, id).Scan(vitalDest(&v)...); err != nil {
		return nil, mapError(err, "get vital log")
	}
	return &v, nil
}

func (r *vitalRepo) Update(ctx context.Context, v *store.VitalLog) error {
	err := r.s.conn(ctx).QueryRow(ctx, `
		UPDATE vital_logs
		SET recorded_at = $2, blood_pressure_systolic = $3, blood_pressure_diastolic = $4,
		    weight = $5, glucose = $6, temperature = $7, notes = $8, updated_at = NOW()
		WHERE id = $1
		RETURNING `+vitalCols,
		v.ID, v.RecordedAt, v.BloodPressureSystolic, v.BloodPressureDiastolic,
		v.Weight, v.Glucose, v.Temperature, v.Notes,
	).Scan(vitalDest(v)...)
	return mapError(err, "update vital log")
}

func (r *vitalRepo) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.s.conn(ctx).Exec(ctx, `DELETE FROM vital_logs WHERE id = $1`, id)
	if err != nil {
		return mapError(err, "delete vital log")
	}
	return notFoundIfNone(tag)
}

func (r *vitalRepo) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*store.VitalLog, int, error) {
	var total int
	if err := r.s.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM vital_logs WHERE patient_id = $1`, patientID).Scan(&total); err != nil {
		return nil, 0, mapError(err, "count vital logs")
	}

	rows, err := r.s.conn(ctx).Query(ctx, `
		SELECT `+vitalCols+` FROM vital_logs
		WHERE patient_id = $1
		ORDER BY recorded_at DESC, created_at DESC
		LIMIT $2 OFFSET $3`, patientID, limit, offset)
	if err != nil {
		return nil, 0, mapError(err, "list vital logs")
	}
	defer rows.Close()

	vitals := []*store.VitalLog{}
	for rows.Next() {
		var v store.VitalLog
		if err := rows.Scan(vitalDest(&v)...); err != nil {
			return nil, 0, mapError(err, "scan vital log")
		}
		vitals = append(vitals, &v)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, mapError(err, "iterate vital logs")
	}
	return vitals, total, nil
}

type logRepo struct{ s *Store }

const logSelect = `
	SELECT l.id, l.patient_id, l.medication_id, l.log_date, l.taken, l.notes, l.created_at, l.updated_at,
	       m.name, m.dosage, m.frequency
	FROM medication_logs l
	JOIN medications m ON m.id = l.medication_id`

func logDest(l *store.MedicationLog, m *store.MedicationSummary) []any {
	return []any{&l.ID, &l.PatientID, &l.MedicationID, &l.Day, &l.Taken, &l.Notes, &l.CreatedAt, &l.UpdatedAt,
		&m.Name, &m.Dosage, &m.Frequency}
}

func (r *logRepo) scanOne(ctx context.Context, id uuid.UUID) (*store.MedicationLog, error) {
	var l store.MedicationLog
	var m store.MedicationSummary
	if err := r.s.conn(ctx).QueryRow(ctx, logSelect+` WHERE l.id = $1`, id).Scan(logDest(&l, &m)...); err != nil {
		return nil, err
	}
	l.Medication = &m
	return &l, nil
}

// Upsert relies on the (patient_id, medication_id, log_date) unique
// constraint; xmax = 0 identifies a freshly inserted row.
func (r *logRepo) Upsert(ctx context.Context, l *store.MedicationLog) (bool, error) {
	id := l.ID
	if id == uuid.Nil {
		id = uuid.New()
	}
	var created bool
	err := r.s.conn(ctx).QueryRow(ctx, `
		INSERT INTO medication_logs (id, patient_id, medication_id, log_date, taken, notes)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT ON CONSTRAINT medication_logs_patient_medication_day_key
		DO UPDATE SET taken = EXCLUDED.taken, notes = EXCLUDED.notes, updated_at = NOW()
		RETURNING id, (xmax = 0)`,
		id, l.PatientID, l.MedicationID, l.Day, l.Taken, l.Notes,
	).Scan(&l.ID, &created)
	if err != nil {
		return false, mapError(err, "upsert medication log")
	}

	stored, err := r.scanOne(ctx, l.ID)
	if err != nil {
		return false, mapError(err, "reload medication log")
	}
	*l = *stored
	return created, nil
}

func (r *logRepo) GetByID(ctx context.Context, id uuid.UUID) (*store.MedicationLog, error) {
	l, err := r.scanOne(ctx, id)
	if err != nil {
		return nil, mapError(err, "get medication log")
	}
	return l, nil
}

func (r *logRepo) Update(ctx context.Context, l *store.MedicationLog) error {
	tag, err := r.s.conn(ctx).Exec(ctx, `
		UPDATE medication_logs SET taken = $2, notes = $3, updated_at = NOW()
		WHERE id = $1`, l.ID, l.Taken, l.Notes)
	if err != nil {
		return mapError(err, "update medication log")
	}
	if err := notFoundIfNone(tag); err != nil {
		return err
	}
	stored, err := r.scanOne(ctx, l.ID)
	if err != nil {
		return mapError(err, "reload medication log")
	}
	*l = *stored
	return nil
}

func (r *logRepo) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.s.conn(ctx).Exec(ctx, `DELETE FROM medication_logs WHERE id = $1`, id)
	if err != nil {
		return mapError(err, "delete medication log")
	}
	return notFoundIfNone(tag)
}

func (r *logRepo) query(ctx context.Context, sql string, args ...any) ([]*store.MedicationLog, error) {
	rows, err := r.s.conn(ctx).Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	logs := []*store.MedicationLog{}
	for rows.Next() {
		var l store.MedicationLog
		var m store.MedicationSummary
		if err := rows.Scan(logDest(&l, &m)...); err != nil {
			return nil, err
		}
		l.Medication = &m
		logs = append(logs, &l)
	}
	return logs, rows.Err()
}

func (r *logRepo) ListByPatient(ctx context.Context, patientID uuid.UUID, f store.LogFilter, limit, offset int) ([]*store.MedicationLog, int, error) {
	const where = `
	WHERE l.patient_id = $1
	  AND ($2::uuid IS NULL OR l.medication_id = $2)
	  AND ($3::date IS NULL OR l.log_date >= $3)
	  AND ($4::date IS NULL OR l.log_date <= $4)`

	var total int
	if err := r.s.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM medication_logs l`+where,
		patientID, f.MedicationID, f.From, f.To,
	).Scan(&total); err != nil {
		return nil, 0, mapError(err, "count medication logs")
	}

	logs, err := r.query(ctx, logSelect+where+`
		ORDER BY l.log_date DESC, l.created_at DESC
		LIMIT $5 OFFSET $6`,
		patientID, f.MedicationID, f.From, f.To, limit, offset)
	if err != nil {
		return nil, 0, mapError(err, "list medication logs")
	}
	return logs, total, nil
}

func (r *logRepo) ListForDay(ctx context.Context, patientID uuid.UUID, day time.Time) ([]*store.MedicationLog, error) {
	logs, err := r.query(ctx, logSelect+`
		WHERE l.patient_id = $1 AND l.log_date = $2
		ORDER BY l.created_at DESC`, patientID, day)
	return logs, mapError(err, "list medication logs for day")
}
