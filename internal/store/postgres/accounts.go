package postgres

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/postcare/postcare/internal/store"
)

type userRepo struct{ s *Store }

const userCols = `id, email, password_hash, role, name, phone, created_at, updated_at`

func scanUser(row pgx.Row) (*store.User, error) {
	var u store.User
	var role string
	if err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &role, &u.Name, &u.Phone, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, err
	}
	u.Role = store.Role(role)
	return &u, nil
}

func (r *userRepo) insertUser(ctx context.Context, u *store.User) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return r.s.conn(ctx).QueryRow(ctx, `
		INSERT INTO users (id, email, password_hash, role, name, phone)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at`,
		u.ID, u.Email, u.PasswordHash, string(u.Role), u.Name, u.Phone,
	).Scan(&u.CreatedAt, &u.UpdatedAt)
}

func (r *userRepo) CreateHospitalAccount(ctx context.Context, u *store.User, h *store.Hospital) error {
	err := r.s.inTx(ctx, func(ctx context.Context) error {
		if err := r.insertUser(ctx, u); err != nil {
			return err
		}
		if h.ID == uuid.Nil {
			h.ID = uuid.New()
		}
		h.UserID = u.ID
		return r.s.conn(ctx).QueryRow(ctx, `
			INSERT INTO hospitals (id, user_id, name, address)
			VALUES ($1, $2, $3, $4)
			RETURNING created_at`,
			h.ID, h.UserID, h.Name, h.Address,
		).Scan(&h.CreatedAt)
	})
	return mapError(err, "create hospital account")
}

func (r *userRepo) CreatePatientAccount(ctx context.Context, u *store.User, p *store.Patient) error {
	err := r.s.inTx(ctx, func(ctx context.Context) error {
		if err := r.insertUser(ctx, u); err != nil {
			return err
		}
		if p.ID == uuid.Nil {
			p.ID = uuid.New()
		}
		p.UserID = u.ID
		return r.s.conn(ctx).QueryRow(ctx, `
			INSERT INTO patients (id, user_id, hospital_id, name, phone, date_of_birth)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING created_at, updated_at`,
			p.ID, p.UserID, p.HospitalID, p.Name, p.Phone, p.DateOfBirth,
		).Scan(&p.CreatedAt, &p.UpdatedAt)
	})
	return mapError(err, "create patient account")
}

func (r *userRepo) GetByID(ctx context.Context, id uuid.UUID) (*store.User, error) {
	u, err := scanUser(r.s.conn(ctx).QueryRow(ctx,
		`SELECT `+userCols+` FROM users WHERE id = $1`, id))
	return u, mapError(err, "get user")
}

func (r *userRepo) GetByEmail(ctx context.Context, email string) (*store.User, error) {
	u, err := scanUser(r.s.conn(ctx).QueryRow(ctx,
		`SELECT `+userCols+` FROM users WHERE email = $1`, strings.ToLower(email)))
	return u, mapError(err, "get user by email")
}

type hospitalRepo struct{ s *Store }

const hospitalCols = `id, user_id, name, address, created_at`

func scanHospital(row pgx.Row) (*store.Hospital, error) {
	var h store.Hospital
	if err := row.Scan(&h.ID, &h.UserID, &h.Name, &h.Address, &h.CreatedAt); err != nil {
		return nil, err
	}
	return &h, nil
}

func (r *hospitalRepo) GetByID(ctx context.Context, id uuid.UUID) (*store.Hospital, error) {
	h, err := scanHospital(r.s.conn(ctx).QueryRow(ctx,
		`SELECT `+hospitalCols+` FROM hospitals WHERE id = $1`, id))
	return h, mapError(err, "get hospital")
}

func (r *hospitalRepo) GetByUserID(ctx context.Context, userID uuid.UUID) (*store.Hospital, error) {
	h, err := scanHospital(r.s.conn(ctx).QueryRow(ctx,
		`SELECT `+hospitalCols+` FROM hospitals WHERE user_id = $1`, userID))
	return h, mapError(err, "get hospital by user")
}

type patientRepo struct{ s *Store }

const patientCols = `p.id, p.user_id, p.hospital_id, p.name, p.phone, p.date_of_birth, p.created_at, p.updated_at`

func patientDest(p *store.Patient) []any {
	return []any{&p.ID, &p.UserID, &p.HospitalID, &p.Name, &p.Phone, &p.DateOfBirth, &p.CreatedAt, &p.UpdatedAt}
}

func (r *patientRepo) GetByID(ctx context.Context, id uuid.UUID) (*store.Patient, error) {
	var p store.Patient
	err := r.s.conn(ctx).QueryRow(ctx,
		`SELECT `+patientCols+` FROM patients p WHERE p.id = $1`, id).Scan(patientDest(&p)...)
	if err != nil {
		return nil, mapError(err, "get patient")
	}
	return &p, nil
}

func (r *patientRepo) GetByUserID(ctx context.Context, userID uuid.UUID) (*store.Patient, error) {
	var p store.Patient
	err := r.s.conn(ctx).QueryRow(ctx,
		`SELECT `+patientCols+` FROM patients p WHERE p.user_id = $1`, userID).Scan(patientDest(&p)...)
	if err != nil {
		return nil, mapError(err, "get patient by user")
	}
	return &p, nil
}

func (r *patientRepo) AssignHospital(ctx context.Context, patientID, hospitalID uuid.UUID) (*store.Patient, error) {
	var p store.Patient
	err := r.s.conn(ctx).QueryRow(ctx, `
		UPDATE patients p SET hospital_id = $2, updated_at = NOW()
		WHERE p.id = $1
		RETURNING `+patientCols, patientID, hospitalID).Scan(patientDest(&p)...)
	if err != nil {
		return nil, mapError(err, "assign hospital")
	}
	return &p, nil
}

// likePattern escapes LIKE metacharacters so the query matches literally.
func likePattern(q string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(q) + "%"
}

const patientSearchWhere = `
	WHERE p.hospital_id = $1
	  AND ($2 = '' OR p.name ILIKE $3 OR p.phone LIKE $3)`

// Search only summarises plans the searching hospital issued itself; a
// relinked patient's earlier plans stay with their issuer.
func (r *patientRepo) Search(ctx context.Context, q store.PatientSearch) ([]*store.PatientListItem, int, error) {
	query := strings.TrimSpace(q.Query)
	pattern := likePattern(query)

	var total int
	if err := r.s.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM patients p`+patientSearchWhere,
		q.HospitalID, query, pattern,
	).Scan(&total); err != nil {
		return nil, 0, mapError(err, "count patients")
	}

	rows, err := r.s.conn(ctx).Query(ctx, `
		SELECT `+patientCols+`, u.email,
		       lp.id, lp.diagnosis, lp.discharge_date, lp.follow_up_date,
		       (SELECT COUNT(*) FROM discharge_plans dp WHERE dp.patient_id = p.id AND dp.hospital_id = $1),
		       (SELECT COUNT(*) FROM vital_logs v WHERE v.patient_id = p.id)
		FROM patients p
		JOIN users u ON u.id = p.user_id
		LEFT JOIN LATERAL (
			SELECT id, diagnosis, discharge_date, follow_up_date
			FROM discharge_plans
			WHERE patient_id = p.id AND hospital_id = $1
			ORDER BY created_at DESC
			LIMIT 1
		) lp ON TRUE`+patientSearchWhere+`
		ORDER BY p.created_at DESC
		LIMIT $4 OFFSET $5`,
		q.HospitalID, query, pattern, q.Limit, q.Offset,
	)
	if err != nil {
		return nil, 0, mapError(err, "search patients")
	}
	defer rows.Close()

	items := []*store.PatientListItem{}
	for rows.Next() {
		var item store.PatientListItem
		var planID *uuid.UUID
		var summary store.PlanSummary
		var diagnosis *string
		var dischargeDate *time.Time
		dest := append(patientDest(&item.Patient), &item.Email,
			&planID, &diagnosis, &dischargeDate, &summary.FollowUpDate,
			&item.PlanCount, &item.VitalCount)
		if err := rows.Scan(dest...); err != nil {
			return nil, 0, mapError(err, "scan patient")
		}
		if planID != nil {
			summary.ID = *planID
			if diagnosis != nil {
				summary.Diagnosis = *diagnosis
			}
			if dischargeDate != nil {
				summary.DischargeDate = *dischargeDate
			}
			item.LatestPlan = &summary
		}
		items = append(items, &item)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, mapError(err, "iterate patients")
	}
	return items, total, nil
}

func (r *patientRepo) CountByHospital(ctx context.Context, hospitalID uuid.UUID) (int, error) {
	var n int
	err := r.s.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM patients WHERE hospital_id = $1`, hospitalID).Scan(&n)
	return n, mapError(err, "count patients")
}
