package relationship

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/remora/remora/internal/platform/db"
)

type linkRepoPG struct{ q db.Querier }

func NewRepoPG(pool *pgxpool.Pool) Repository { return &linkRepoPG{q: pool} }

const linkCols = `id, patient_id, caregiver_id, status, created_at, updated_at`

// pairMatch selects the row of an unordered pair, mirroring care_link_pair_idx.
const pairMatch = `LEAST(patient_id, caregiver_id) = LEAST($1::uuid, $2::uuid)
		AND GREATEST(patient_id, caregiver_id) = GREATEST($1::uuid, $2::uuid)`

func scanLink(row pgx.Row) (*Link, error) {
	var l Link
	if err := row.Scan(&l.ID, &l.PatientID, &l.CaregiverID, &l.Status, &l.CreatedAt, &l.UpdatedAt); err != nil {
		return nil, err
	}
	return &l, nil
}

// Insert relies on the pair index to settle concurrent connects: exactly one
// INSERT returns a row, the others fall through to the existing link.
func (r *linkRepoPG) Insert(ctx context.Context, patientID, caregiverID uuid.UUID) (*Link, bool, error) {
	link, err := scanLink(r.q.QueryRow(ctx, `
		INSERT INTO care_link (id, patient_id, caregiver_id, status)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT DO NOTHING
		RETURNING `+linkCols,
		uuid.New(), patientID, caregiverID, LinkActive))
	if err == nil {
		return link, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, false, db.Classify("insert care link", err, nil)
	}

	link, err = scanLink(r.q.QueryRow(ctx, `
		UPDATE care_link SET status = $3, updated_at = NOW()
		WHERE `+pairMatch+` AND status = $4
		RETURNING `+linkCols,
		patientID, caregiverID, LinkActive, LinkInactive))
	if err == nil {
		return link, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, false, db.Classify("reactivate care link", err, nil)
	}

	link, err = scanLink(r.q.QueryRow(ctx, `SELECT `+linkCols+` FROM care_link WHERE `+pairMatch, patientID, caregiverID))
	if err != nil {
		return nil, false, db.Classify("get care link", err, nil)
	}
	return link, false, nil
}

func (r *linkRepoPG) CaregiversOf(ctx context.Context, patientID uuid.UUID) ([]Member, error) {
	return r.members(ctx, "caregivers of patient", `
		SELECT a.id, a.name, a.email, a.status, l.created_at
		FROM care_link l JOIN actor a ON a.id = l.caregiver_id
		WHERE l.patient_id = $1 AND l.status = $2
		ORDER BY l.created_at ASC, a.id ASC`, patientID)
}

func (r *linkRepoPG) PatientsOf(ctx context.Context, caregiverID uuid.UUID) ([]Member, error) {
	return r.members(ctx, "patients of caregiver", `
		SELECT a.id, a.name, a.email, a.status, l.created_at
		FROM care_link l JOIN actor a ON a.id = l.patient_id
		WHERE l.caregiver_id = $1 AND l.status = $2
		ORDER BY l.created_at ASC, a.id ASC`, caregiverID)
}

func (r *linkRepoPG) members(ctx context.Context, op, query string, id uuid.UUID) ([]Member, error) {
	rows, err := r.q.Query(ctx, query, id, LinkActive)
	if err != nil {
		return nil, db.Classify(op, err, nil)
	}
	defer rows.Close()

	var out []Member
	for rows.Next() {
		var m Member
		if err := rows.Scan(&m.ActorID, &m.Name, &m.Email, &m.Status, &m.ConnectedAt); err != nil {
			return nil, fmt.Errorf("scan %s: %w", op, err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, db.Classify(op, err, nil)
	}
	return out, nil
}

func (r *linkRepoPG) IsLinked(ctx context.Context, patientID, caregiverID uuid.UUID) (bool, error) {
	var linked bool
	err := r.q.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM care_link
			WHERE patient_id = $1 AND caregiver_id = $2 AND status = $3
		)`, patientID, caregiverID, LinkActive).Scan(&linked)
	if err != nil {
		return false, db.Classify("check care link", err, nil)
	}
	return linked, nil
}
