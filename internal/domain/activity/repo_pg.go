package activity

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

const cols = `id, patient_id, kind, value, unit, metadata, recorded_by, recorded_at, created_at`

func scan(row pgx.Row) (*Activity, error) {
	var a Activity
	err := row.Scan(&a.ID, &a.PatientID, &a.Kind, &a.Value, &a.Unit, &a.Metadata,
		&a.RecordedBy, &a.RecordedAt, &a.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *repoPG) Create(ctx context.Context, a *Activity) error {
	a.ID = uuid.New()
	err := r.q.QueryRow(ctx, `
		INSERT INTO activity (id, patient_id, kind, value, unit, metadata, recorded_by, recorded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at`,
		a.ID, a.PatientID, a.Kind, a.Value, a.Unit, a.Metadata, a.RecordedBy, a.RecordedAt,
	).Scan(&a.CreatedAt)
	return db.Classify("create activity", err, nil)
}

func (r *repoPG) List(ctx context.Context, f ListFilter, limit, offset int) ([]*Activity, int, error) {
	ids := make([]string, len(f.PatientIDs))
	for i, id := range f.PatientIDs {
		ids[i] = id.String()
	}
	args := []interface{}{ids}
	where := []string{"patient_id = ANY($1::uuid[])"}
	if f.Kind != "" {
		args = append(args, f.Kind)
		where = append(where, fmt.Sprintf("kind = $%d", len(args)))
	}
	if f.From != nil {
		args = append(args, *f.From)
		where = append(where, fmt.Sprintf("recorded_at >= $%d", len(args)))
	}
	if f.To != nil {
		args = append(args, *f.To)
		where = append(where, fmt.Sprintf("recorded_at <= $%d", len(args)))
	}
	clause := " WHERE " + strings.Join(where, " AND ")

	var total int
	if err := r.q.QueryRow(ctx, `SELECT COUNT(*) FROM activity`+clause, args...).Scan(&total); err != nil {
		return nil, 0, db.Classify("count activities", err, nil)
	}

	args = append(args, limit, offset)
	rows, err := r.q.Query(ctx, fmt.Sprintf(`SELECT %s FROM activity%s ORDER BY recorded_at DESC, id DESC LIMIT $%d OFFSET $%d`,
		cols, clause, len(args)-1, len(args)), args...)
	if err != nil {
		return nil, 0, db.Classify("list activities", err, nil)
	}
	defer rows.Close()

	var out []*Activity
	for rows.Next() {
		a, err := scan(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan activity: %w", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, db.Classify("list activities", err, nil)
	}
	return out, total, nil
}
