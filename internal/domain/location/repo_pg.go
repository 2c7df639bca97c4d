package location

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/remora/remora/internal/platform/db"
)

type repoPG struct{ q db.Querier }

func NewRepoPG(pool *pgxpool.Pool) Repository { return &repoPG{q: pool} }

// Upsert overwrites the stored sample unconditionally (last-received-wins).
// created_at is kept from the first insert.
func (r *repoPG) Upsert(ctx context.Context, s *Sample) error {
	err := r.q.QueryRow(ctx, `
		INSERT INTO patient_location (patient_id, latitude, longitude, accuracy, battery, recorded_at, received_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (patient_id) DO UPDATE SET
			latitude = EXCLUDED.latitude,
			longitude = EXCLUDED.longitude,
			accuracy = EXCLUDED.accuracy,
			battery = EXCLUDED.battery,
			recorded_at = EXCLUDED.recorded_at,
			received_at = EXCLUDED.received_at
		RETURNING received_at`,
		s.PatientID, s.Latitude, s.Longitude, s.Accuracy, s.Battery, s.RecordedAt, s.ReceivedAt,
	).Scan(&s.ReceivedAt)
	return db.Classify("upsert location", err, nil)
}

func (r *repoPG) Latest(ctx context.Context, patientID uuid.UUID) (*Sample, error) {
	var s Sample
	err := r.q.QueryRow(ctx, `
		SELECT patient_id, latitude, longitude, accuracy, battery, recorded_at, received_at
		FROM patient_location WHERE patient_id = $1`, patientID,
	).Scan(&s.PatientID, &s.Latitude, &s.Longitude, &s.Accuracy, &s.Battery, &s.RecordedAt, &s.ReceivedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, db.Classify("get latest location", err, nil)
	}
	return &s, nil
}
