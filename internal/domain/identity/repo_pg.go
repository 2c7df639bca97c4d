package identity

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/remora/remora/internal/platform/db"
)

// =========== Actor Repository ===========

type actorRepoPG struct{ q db.Querier }

func NewActorRepoPG(pool *pgxpool.Pool) ActorRepository { return &actorRepoPG{q: pool} }

const actorCols = `id, email, name, password_hash, role, status, emergency_triggered_at, created_at, updated_at`

func scanActor(row pgx.Row) (*Actor, error) {
	var a Actor
	err := row.Scan(&a.ID, &a.Email, &a.Name, &a.PasswordHash, &a.Role, &a.Status,
		&a.EmergencyTriggeredAt, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *actorRepoPG) Create(ctx context.Context, a *Actor) error {
	a.ID = uuid.New()
	if a.Status == "" {
		a.Status = StatusNormal
	}
	err := r.q.QueryRow(ctx, `
		INSERT INTO actor (id, email, name, password_hash, role, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at`,
		a.ID, a.Email, a.Name, a.PasswordHash, a.Role, a.Status,
	).Scan(&a.CreatedAt, &a.UpdatedAt)
	if db.IsUniqueViolation(err) {
		return ErrEmailTaken
	}
	if err != nil {
		return db.Classify("create actor", err, ErrActorNotFound)
	}
	return nil
}

func (r *actorRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Actor, error) {
	a, err := scanActor(r.q.QueryRow(ctx, `SELECT `+actorCols+` FROM actor WHERE id = $1`, id))
	if err != nil {
		return nil, db.Classify("get actor", err, ErrActorNotFound)
	}
	return a, nil
}

func (r *actorRepoPG) GetByEmail(ctx context.Context, email string) (*Actor, error) {
	a, err := scanActor(r.q.QueryRow(ctx,
		`SELECT `+actorCols+` FROM actor WHERE LOWER(email) = LOWER($1)`, strings.TrimSpace(email)))
	if err != nil {
		return nil, db.Classify("get actor by email", err, ErrActorNotFound)
	}
	return a, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// likePattern turns user input into a substring pattern whose wildcards
// match literally.
func likePattern(query string) string {
	return "%" + likeEscaper.Replace(query) + "%"
}

// SearchCaregivers matches name or email by substring and ranks exact
// email matches first.
func (r *actorRepoPG) SearchCaregivers(ctx context.Context, query string, limit int) ([]*Actor, error) {
	rows, err := r.q.Query(ctx, `
		SELECT `+actorCols+` FROM actor
		WHERE role = $1 AND ($2 = '' OR name ILIKE $4 ESCAPE '\' OR email ILIKE $4 ESCAPE '\')
		ORDER BY (LOWER(email) = LOWER($2)) DESC, name ASC
		LIMIT $3`,
		RoleCaregiver, query, limit, likePattern(query))
	if err != nil {
		return nil, db.Classify("search caregivers", err, ErrActorNotFound)
	}
	defer rows.Close()

	var out []*Actor
	for rows.Next() {
		a, err := scanActor(rows)
		if err != nil {
			return nil, fmt.Errorf("scan actor: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// MarkEmergency is a single-row update; re-triggering refreshes the timestamp.
func (r *actorRepoPG) MarkEmergency(ctx context.Context, id uuid.UUID, at time.Time) (*Actor, error) {
	a, err := scanActor(r.q.QueryRow(ctx, `
		UPDATE actor SET status = $2, emergency_triggered_at = $3, updated_at = $3
		WHERE id = $1
		RETURNING `+actorCols,
		id, StatusEmergency, at))
	if err != nil {
		return nil, db.Classify("mark emergency", err, ErrActorNotFound)
	}
	return a, nil
}

// =========== Device Token Repository ===========

type deviceTokenRepoPG struct{ q db.Querier }

func NewDeviceTokenRepoPG(pool *pgxpool.Pool) DeviceTokenRepository {
	return &deviceTokenRepoPG{q: pool}
}

func (r *deviceTokenRepoPG) Add(ctx context.Context, actorID uuid.UUID, dt *DeviceToken) error {
	err := r.q.QueryRow(ctx, `
		INSERT INTO device_token (token, actor_id, name, kind)
		VALUES ($1, $2, $3, $4)
		RETURNING registered_at`,
		dt.Token, actorID, dt.Name, dt.Kind,
	).Scan(&dt.RegisteredAt)
	if err != nil {
		return db.Classify("add device token", err, ErrActorNotFound)
	}
	return nil
}

func (r *deviceTokenRepoPG) ActorIDByToken(ctx context.Context, token string) (uuid.UUID, error) {
	var id uuid.UUID
	err := r.q.QueryRow(ctx, `SELECT actor_id FROM device_token WHERE token = $1`, token).Scan(&id)
	if err != nil {
		return uuid.Nil, db.Classify("lookup device token", err, ErrInvalidDeviceToken)
	}
	return id, nil
}

func (r *deviceTokenRepoPG) ListByActor(ctx context.Context, actorID uuid.UUID) ([]DeviceToken, error) {
	rows, err := r.q.Query(ctx, `
		SELECT token, name, kind, registered_at FROM device_token
		WHERE actor_id = $1 ORDER BY registered_at`, actorID)
	if err != nil {
		return nil, db.Classify("list device tokens", err, ErrActorNotFound)
	}
	defer rows.Close()

	var out []DeviceToken
	for rows.Next() {
		var dt DeviceToken
		if err := rows.Scan(&dt.Token, &dt.Name, &dt.Kind, &dt.RegisteredAt); err != nil {
			return nil, fmt.Errorf("scan device token: %w", err)
		}
		out = append(out, dt)
	}
	return out, rows.Err()
}
