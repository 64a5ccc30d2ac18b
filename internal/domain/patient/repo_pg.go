package patient

import (
	"context"
	"strconv"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dosewatch/dosewatch/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type patientRepoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &patientRepoPG{pool: pool}
}

func (r *patientRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const patientCols = `id, first_name, last_name, date_of_birth, phone, email,
	timezone, created_at, updated_at`

func (r *patientRepoPG) scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	err := row.Scan(&p.ID, &p.FirstName, &p.LastName, &p.DateOfBirth,
		&p.Phone, &p.Email, &p.Timezone, &p.CreatedAt, &p.UpdatedAt)
	return &p, err
}

func (r *patientRepoPG) Create(ctx context.Context, p *Patient) error {
	p.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO patients (id, first_name, last_name, date_of_birth, phone, email, timezone)
		VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		p.ID, p.FirstName, p.LastName, p.DateOfBirth, p.Phone, p.Email, p.Timezone)
	return err
}

func (r *patientRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	return r.scanPatient(r.conn(ctx).QueryRow(ctx,
		`SELECT `+patientCols+` FROM patients WHERE id = $1`, id))
}

func (r *patientRepoPG) Update(ctx context.Context, p *Patient) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE patients SET first_name=$2, last_name=$3, date_of_birth=$4,
			phone=$5, email=$6, timezone=$7, updated_at=NOW()
		WHERE id = $1`,
		p.ID, p.FirstName, p.LastName, p.DateOfBirth, p.Phone, p.Email, p.Timezone)
	return err
}

func (r *patientRepoPG) Search(ctx context.Context, query string, limit, offset int) ([]*Patient, int, error) {
	where := ``
	args := []interface{}{}
	if query != "" {
		where = `WHERE first_name ILIKE $1 OR last_name ILIKE $1`
		args = append(args, "%"+query+"%")
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM patients `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	n := len(args)
	dataArgs := append(args, limit, offset)
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+patientCols+` FROM patients `+where+
			` ORDER BY last_name, first_name LIMIT $`+strconv.Itoa(n+1)+` OFFSET $`+strconv.Itoa(n+2), dataArgs...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Patient
	for rows.Next() {
		p, err := r.scanPatient(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, p)
	}
	return items, total, nil
}

func (r *patientRepoPG) Assign(ctx context.Context, a *ClinicianAssignment) error {
	a.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO clinician_assignments (id, patient_id, clinician_user_id)
		VALUES ($1,$2,$3)
		ON CONFLICT (patient_id, clinician_user_id) DO NOTHING`,
		a.ID, a.PatientID, a.ClinicianUserID)
	return err
}

func (r *patientRepoPG) Unassign(ctx context.Context, patientID uuid.UUID, clinicianUserID string) error {
	_, err := r.conn(ctx).Exec(ctx, `
		DELETE FROM clinician_assignments
		WHERE patient_id = $1 AND clinician_user_id = $2`, patientID, clinicianUserID)
	return err
}

func (r *patientRepoPG) ListAssignments(ctx context.Context, clinicianUserID string) ([]*ClinicianAssignment, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT id, patient_id, clinician_user_id, assigned_at
		FROM clinician_assignments WHERE clinician_user_id = $1
		ORDER BY assigned_at DESC`, clinicianUserID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*ClinicianAssignment
	for rows.Next() {
		var a ClinicianAssignment
		if err := rows.Scan(&a.ID, &a.PatientID, &a.ClinicianUserID, &a.AssignedAt); err != nil {
			return nil, err
		}
		items = append(items, &a)
	}
	return items, nil
}

func (r *patientRepoPG) IsAssigned(ctx context.Context, patientID uuid.UUID, clinicianUserID string) (bool, error) {
	var exists bool
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM clinician_assignments
			WHERE patient_id = $1 AND clinician_user_id = $2
		)`, patientID, clinicianUserID).Scan(&exists)
	return exists, err
}
