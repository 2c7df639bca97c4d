package notification

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/remora/remora/internal/platform/db"
)

type repoPG struct{ q db.Querier }

func NewRepoPG(pool *pgxpool.Pool) Repository { return &repoPG{q: pool} }

const cols = `id, caregiver_id, title, message, type, is_read, related_patient_id,
	related_patient_name, latitude, longitude, created_at, read_at`

func scan(row pgx.Row) (*Notification, error) {
	var n Notification
	err := row.Scan(&n.ID, &n.CaregiverID, &n.Title, &n.Message, &n.Type, &n.IsRead, &n.RelatedPatientID,
		&n.RelatedPatientName, &n.Latitude, &n.Longitude, &n.CreatedAt, &n.ReadAt)
	if err != nil {
		return nil, err
	}
	return &n, nil
}

func (r *repoPG) Create(ctx context.Context, n *Notification) error {
	n.ID = uuid.New()
	err := r.q.QueryRow(ctx, `
		INSERT INTO notification (id, caregiver_id, title, message, type, is_read,
			related_patient_id, related_patient_name, latitude, longitude)
		VALUES ($1, $2, $3, $4, $5, FALSE, $6, $7, $8, $9)
		RETURNING created_at`,
		n.ID, n.CaregiverID, n.Title, n.Message, n.Type,
		n.RelatedPatientID, n.RelatedPatientName, n.Latitude, n.Longitude,
	).Scan(&n.CreatedAt)
	if err != nil {
		return db.Classify("create notification", err, nil)
	}
	return nil
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Notification, error) {
	n, err := scan(r.q.QueryRow(ctx, `SELECT `+cols+` FROM notification WHERE id = $1`, id))
	if err != nil {
		return nil, db.Classify("get notification", err, ErrNotificationNotFound)
	}
	return n, nil
}

func (r *repoPG) MarkRead(ctx context.Context, id uuid.UUID) (*Notification, error) {
	n, err := scan(r.q.QueryRow(ctx, `
		UPDATE notification SET is_read = TRUE, read_at = COALESCE(read_at, NOW())
		WHERE id = $1
		RETURNING `+cols, id))
	if err != nil {
		return nil, db.Classify("mark notification read", err, ErrNotificationNotFound)
	}
	return n, nil
}

func (r *repoPG) ListFor(ctx context.Context, caregiverID uuid.UUID, limit, offset int) ([]*Notification, int, error) {
	var total int
	if err := r.q.QueryRow(ctx, `SELECT COUNT(*) FROM notification WHERE caregiver_id = $1`, caregiverID).Scan(&total); err != nil {
		return nil, 0, db.Classify("count notifications", err, nil)
	}

	rows, err := r.q.Query(ctx, `
		SELECT `+cols+` FROM notification
		WHERE caregiver_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3`, caregiverID, limit, offset)
	if err != nil {
		return nil, 0, db.Classify("list notifications", err, nil)
	}
	defer rows.Close()

	var out []*Notification
	for rows.Next() {
		n, err := scan(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan notification: %w", err)
		}
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, db.Classify("list notifications", err, nil)
	}
	return out, total, nil
}
