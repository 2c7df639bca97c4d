package activity

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/remora/remora/internal/domain/identity"
	"github.com/remora/remora/internal/platform/apperr"
)

var (
	ErrMissingKind      = apperr.BadRequest("MISSING_FIELDS", "kind is required")
	ErrMissingPatient   = apperr.BadRequest("MISSING_FIELDS", "patientId is required")
	ErrInvalidPatientID = apperr.BadRequest("INVALID_PATIENT_ID", "patientId is not a valid id")
	ErrInvalidRange     = apperr.BadRequest("INVALID_RANGE", "from must not be after to")
	ErrNotLinked        = apperr.Forbidden("NOT_LINKED", "no active link with this patient")
)

// Links answers which patients a caregiver may read and write logs for.
type Links interface {
	IsLinked(ctx context.Context, patientID, caregiverID uuid.UUID) (bool, error)
	PatientIDs(ctx context.Context, caregiverID uuid.UUID) ([]uuid.UUID, error)
}

type Service struct {
	repo   Repository
	links  Links
	logger zerolog.Logger
	now    func() time.Time
}

func NewService(repo Repository, links Links, logger zerolog.Logger) *Service {
	return &Service{repo: repo, links: links, logger: logger, now: time.Now}
}

// Record adds an entry to a patient's log. A patient logs for itself; a
// caregiver logs for a linked patient.
func (s *Service) Record(ctx context.Context, actor *identity.Actor, req CreateRequest) (*Activity, error) {
	kind := strings.TrimSpace(req.Kind)
	if kind == "" {
		return nil, ErrMissingKind
	}

	var patientID uuid.UUID
	raw := strings.TrimSpace(req.PatientID)
	switch {
	case raw != "":
		id, err := uuid.Parse(raw)
		if err != nil {
			return nil, ErrInvalidPatientID
		}
		patientID = id
	case actor.Role == identity.RolePatient:
		patientID = actor.ID
	default:
		return nil, ErrMissingPatient
	}
	if err := s.authorize(ctx, actor, patientID); err != nil {
		return nil, err
	}

	a := &Activity{
		PatientID:  patientID,
		Kind:       kind,
		Value:      req.Value,
		Unit:       req.Unit,
		Metadata:   req.Metadata,
		RecordedBy: actor.ID,
		RecordedAt: s.now().UTC(),
	}
	if req.RecordedAt != nil && !req.RecordedAt.IsZero() {
		a.RecordedAt = req.RecordedAt.UTC()
	}
	if err := s.repo.Create(ctx, a); err != nil {
		return nil, err
	}
	s.logger.Debug().Str("patient_id", patientID.String()).Str("kind", kind).Msg("activity recorded")
	return a, nil
}

// List returns the visible log entries, newest first. Without a patient
// filter a caregiver sees every linked patient.
func (s *Service) List(ctx context.Context, actor *identity.Actor, q ListQuery, limit, offset int) ([]*Activity, int, error) {
	if q.From != nil && q.To != nil && q.From.After(*q.To) {
		return nil, 0, ErrInvalidRange
	}
	f := ListFilter{Kind: strings.TrimSpace(q.Kind), From: q.From, To: q.To}

	if raw := strings.TrimSpace(q.PatientID); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return nil, 0, ErrInvalidPatientID
		}
		if err := s.authorize(ctx, actor, id); err != nil {
			return nil, 0, err
		}
		f.PatientIDs = []uuid.UUID{id}
	} else {
		switch actor.Role {
		case identity.RolePatient:
			f.PatientIDs = []uuid.UUID{actor.ID}
		case identity.RoleCaregiver:
			ids, err := s.links.PatientIDs(ctx, actor.ID)
			if err != nil {
				return nil, 0, err
			}
			f.PatientIDs = ids
		default:
			return nil, 0, identity.ErrForbidden
		}
	}
	if f.PatientIDs == nil {
		f.PatientIDs = []uuid.UUID{}
	}

	items, total, err := s.repo.List(ctx, f, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	if items == nil {
		items = []*Activity{}
	}
	return items, total, nil
}

func (s *Service) authorize(ctx context.Context, actor *identity.Actor, patientID uuid.UUID) error {
	switch actor.Role {
	case identity.RolePatient:
		if actor.ID != patientID {
			return ErrNotLinked
		}
		return nil
	case identity.RoleCaregiver:
		ok, err := s.links.IsLinked(ctx, patientID, actor.ID)
		if err != nil {
			return err
		}
		if !ok {
			return ErrNotLinked
		}
		return nil
	}
	return identity.ErrForbidden
}
