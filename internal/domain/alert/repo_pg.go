package alert

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/remora/remora/internal/platform/db"
)

type repoPG struct{ q db.Querier }

func NewRepoPG(pool *pgxpool.Pool) Repository { return &repoPG{q: pool} }

// caregiver_ids travels as text[] so the driver never needs a uuid array codec.
const cols = `id, patient_id, title, message, type, severity, is_acknowledged,
	caregiver_ids::text[], latitude, longitude, created_at`

func scan(row pgx.Row) (*Alert, error) {
	var (
		a   Alert
		ids []string
	)
	err := row.Scan(&a.ID, &a.PatientID, &a.Title, &a.Message, &a.Type, &a.Severity, &a.IsAcknowledged,
		&ids, &a.Latitude, &a.Longitude, &a.CreatedAt)
	if err != nil {
		return nil, err
	}
	a.CaregiverIDs = make([]uuid.UUID, 0, len(ids))
	for _, s := range ids {
		id, err := uuid.Parse(s)
		if err != nil {
			return nil, fmt.Errorf("caregiver id %q: %w", s, err)
		}
		a.CaregiverIDs = append(a.CaregiverIDs, id)
	}
	return &a, nil
}

func idStrings(ids []uuid.UUID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}

func (r *repoPG) Create(ctx context.Context, a *Alert) error {
	a.ID = uuid.New()
	if a.CaregiverIDs == nil {
		a.CaregiverIDs = []uuid.UUID{}
	}
	err := r.q.QueryRow(ctx, `
		INSERT INTO alert (id, patient_id, title, message, type, severity, is_acknowledged,
			caregiver_ids, latitude, longitude)
		VALUES ($1, $2, $3, $4, $5, $6, FALSE, $7::uuid[], $8, $9)
		RETURNING created_at`,
		a.ID, a.PatientID, a.Title, a.Message, a.Type, a.Severity,
		idStrings(a.CaregiverIDs), a.Latitude, a.Longitude,
	).Scan(&a.CreatedAt)
	if err != nil {
		return db.Classify("create alert", err, nil)
	}
	return nil
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Alert, error) {
	a, err := scan(r.q.QueryRow(ctx, `SELECT `+cols+` FROM alert WHERE id = $1`, id))
	if err != nil {
		return nil, db.Classify("get alert", err, ErrAlertNotFound)
	}
	return a, nil
}

func (r *repoPG) List(ctx context.Context, f ListFilter, limit, offset int) ([]*Alert, int, error) {
	var (
		where []string
		args  []interface{}
	)
	if f.PatientID != nil {
		args = append(args, *f.PatientID)
		where = append(where, fmt.Sprintf("patient_id = $%d", len(args)))
	}
	if f.PatientIDs != nil {
		args = append(args, idStrings(f.PatientIDs))
		where = append(where, fmt.Sprintf("patient_id = ANY($%d::uuid[])", len(args)))
	}
	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := r.q.QueryRow(ctx, `SELECT COUNT(*) FROM alert`+clause, args...).Scan(&total); err != nil {
		return nil, 0, db.Classify("count alerts", err, nil)
	}

	args = append(args, limit, offset)
	rows, err := r.q.Query(ctx, fmt.Sprintf(`SELECT %s FROM alert%s ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d`,
		cols, clause, len(args)-1, len(args)), args...)
	if err != nil {
		return nil, 0, db.Classify("list alerts", err, nil)
	}
	defer rows.Close()

	var out []*Alert
	for rows.Next() {
		a, err := scan(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan alert: %w", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, db.Classify("list alerts", err, nil)
	}
	return out, total, nil
}

func (r *repoPG) Acknowledge(ctx context.Context, id uuid.UUID) (*Alert, error) {
	a, err := scan(r.q.QueryRow(ctx, `
		UPDATE alert SET is_acknowledged = TRUE WHERE id = $1
		RETURNING `+cols, id))
	if err != nil {
		return nil, db.Classify("acknowledge alert", err, ErrAlertNotFound)
	}
	return a, nil
}
