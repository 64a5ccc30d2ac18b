package reminder

import (
	"context"

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

type reminderRepoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &reminderRepoPG{pool: pool}
}

func (r *reminderRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const remCols = `id, patient_id, medication_id, medication_name, dose_text,
	interval_seconds, total_doses, completed_doses, next_dose_at, active,
	created_at, updated_at, deleted_at`

func (r *reminderRepoPG) scanReminder(row pgx.Row) (*Reminder, error) {
	var rem Reminder
	err := row.Scan(&rem.ID, &rem.PatientID, &rem.MedicationID,
		&rem.MedicationName, &rem.DoseText,
		&rem.IntervalSeconds, &rem.TotalDoses, &rem.CompletedDoses,
		&rem.NextDoseAt, &rem.Active,
		&rem.CreatedAt, &rem.UpdatedAt, &rem.DeletedAt)
	return &rem, err
}

func (r *reminderRepoPG) Create(ctx context.Context, rem *Reminder) error {
	rem.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO reminders (id, patient_id, medication_id, medication_name, dose_text,
			interval_seconds, total_doses, completed_doses, next_dose_at, active)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		rem.ID, rem.PatientID, rem.MedicationID, rem.MedicationName, rem.DoseText,
		rem.IntervalSeconds, rem.TotalDoses, rem.CompletedDoses, rem.NextDoseAt, rem.Active)
	return err
}

func (r *reminderRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Reminder, error) {
	return r.scanReminder(r.conn(ctx).QueryRow(ctx,
		`SELECT `+remCols+` FROM reminders WHERE id = $1 AND deleted_at IS NULL`, id))
}

func (r *reminderRepoPG) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*Reminder, error) {
	return r.scanReminder(r.conn(ctx).QueryRow(ctx,
		`SELECT `+remCols+` FROM reminders WHERE id = $1 AND deleted_at IS NULL FOR UPDATE`, id))
}

func (r *reminderRepoPG) Update(ctx context.Context, rem *Reminder) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE reminders SET medication_name=$2, dose_text=$3, interval_seconds=$4,
			total_doses=$5, completed_doses=$6, next_dose_at=$7, active=$8, updated_at=NOW()
		WHERE id = $1 AND deleted_at IS NULL`,
		rem.ID, rem.MedicationName, rem.DoseText, rem.IntervalSeconds,
		rem.TotalDoses, rem.CompletedDoses, rem.NextDoseAt, rem.Active)
	return err
}

func (r *reminderRepoPG) SoftDelete(ctx context.Context, id uuid.UUID) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE reminders SET deleted_at = NOW(), active = FALSE, updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL`, id)
	return err
}

func (r *reminderRepoPG) ListActiveByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Reminder, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `
		SELECT COUNT(*) FROM reminders
		WHERE patient_id = $1 AND active AND deleted_at IS NULL`, patientID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+remCols+` FROM reminders
		WHERE patient_id = $1 AND active AND deleted_at IS NULL
		ORDER BY next_dose_at ASC NULLS LAST, created_at ASC
		LIMIT $2 OFFSET $3`, patientID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Reminder
	for rows.Next() {
		rem, err := r.scanReminder(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, rem)
	}
	return items, total, nil
}

func (r *reminderRepoPG) ListActive(ctx context.Context) ([]*Reminder, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+remCols+` FROM reminders
		WHERE active AND next_dose_at IS NOT NULL AND deleted_at IS NULL
		ORDER BY next_dose_at ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*Reminder
	for rows.Next() {
		rem, err := r.scanReminder(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, rem)
	}
	return items, nil
}

func (r *reminderRepoPG) CountActive(ctx context.Context) (int, error) {
	var total int
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM reminders WHERE active AND deleted_at IS NULL`).Scan(&total)
	return total, err
}

func (r *reminderRepoPG) CountDue(ctx context.Context) (int, error) {
	var total int
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT COUNT(*) FROM reminders
		WHERE active AND deleted_at IS NULL AND next_dose_at <= NOW()`).Scan(&total)
	return total, err
}

func (r *reminderRepoPG) InsertDoseEvent(ctx context.Context, ev *DoseEvent) error {
	ev.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO dose_history (id, reminder_id, scheduled_at, taken_at)
		VALUES ($1,$2,$3,$4)`,
		ev.ID, ev.ReminderID, ev.ScheduledAt, ev.TakenAt)
	return err
}

func (r *reminderRepoPG) ListDoseEvents(ctx context.Context, reminderID uuid.UUID, limit, offset int) ([]*DoseEvent, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM dose_history WHERE reminder_id = $1`, reminderID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT id, reminder_id, scheduled_at, taken_at
		FROM dose_history WHERE reminder_id = $1
		ORDER BY taken_at DESC LIMIT $2 OFFSET $3`, reminderID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*DoseEvent
	for rows.Next() {
		var ev DoseEvent
		if err := rows.Scan(&ev.ID, &ev.ReminderID, &ev.ScheduledAt, &ev.TakenAt); err != nil {
			return nil, 0, err
		}
		items = append(items, &ev)
	}
	return items, total, nil
}
