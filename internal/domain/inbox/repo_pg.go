package inbox

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

type inboxRepoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &inboxRepoPG{pool: pool}
}

func (r *inboxRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const msgCols = `id, patient_id, sender_user_id, sender_role, subject, body,
	read_at, created_at`

func (r *inboxRepoPG) scanMsg(row pgx.Row) (*Message, error) {
	var m Message
	err := row.Scan(&m.ID, &m.PatientID, &m.SenderUserID, &m.SenderRole,
		&m.Subject, &m.Body, &m.ReadAt, &m.CreatedAt)
	return &m, err
}

func (r *inboxRepoPG) Create(ctx context.Context, m *Message) error {
	m.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO messages (id, patient_id, sender_user_id, sender_role, subject, body)
		VALUES ($1,$2,$3,$4,$5,$6)`,
		m.ID, m.PatientID, m.SenderUserID, m.SenderRole, m.Subject, m.Body)
	return err
}

func (r *inboxRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Message, error) {
	return r.scanMsg(r.conn(ctx).QueryRow(ctx,
		`SELECT `+msgCols+` FROM messages WHERE id = $1`, id))
}

func (r *inboxRepoPG) ListThread(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Message, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM messages WHERE patient_id = $1`, patientID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+msgCols+` FROM messages WHERE patient_id = $1
		ORDER BY created_at DESC LIMIT $2 OFFSET $3`, patientID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Message
	for rows.Next() {
		m, err := r.scanMsg(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, m)
	}
	return items, total, nil
}

func (r *inboxRepoPG) MarkRead(ctx context.Context, patientID uuid.UUID, readerRole string) (int, error) {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE messages SET read_at = NOW()
		WHERE patient_id = $1 AND sender_role <> $2 AND read_at IS NULL`,
		patientID, readerRole)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

func (r *inboxRepoPG) UnreadCount(ctx context.Context, patientID uuid.UUID, readerRole string) (int, error) {
	var n int
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT COUNT(*) FROM messages
		WHERE patient_id = $1 AND sender_role <> $2 AND read_at IS NULL`,
		patientID, readerRole).Scan(&n)
	return n, err
}
