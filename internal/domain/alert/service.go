package alert

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/remora/remora/internal/domain/identity"
	"github.com/remora/remora/internal/platform/apperr"
	"github.com/remora/remora/internal/platform/websocket"
)

var (
	ErrAlertNotFound    = apperr.NotFound("ALERT_NOT_FOUND", "Alert not found")
	ErrMissingFields    = apperr.BadRequest("MISSING_FIELDS", "patientId, title, message and type are required")
	ErrInvalidSeverity  = apperr.BadRequest("INVALID_SEVERITY", "severity must be INFO, WARNING or CRITICAL")
	ErrInvalidPatientID = apperr.BadRequest("INVALID_PATIENT_ID", "patientId is not a valid id")
	ErrNotLinked        = apperr.Forbidden("NOT_LINKED", "no active link with this patient")
)

// Links answers whether a caregiver may act on a patient's alerts.
type Links interface {
	IsLinked(ctx context.Context, patientID, caregiverID uuid.UUID) (bool, error)
	PatientIDs(ctx context.Context, caregiverID uuid.UUID) ([]uuid.UUID, error)
}

// Service covers the alert history: listing, manual creation and
// acknowledgement. Emergency triggering lives in Dispatcher.
type Service struct {
	repo   Repository
	links  Links
	events websocket.EventPublisher
	logger zerolog.Logger
}

func NewService(repo Repository, links Links, events websocket.EventPublisher, logger zerolog.Logger) *Service {
	return &Service{repo: repo, links: links, events: events, logger: logger}
}

// List returns the alerts visible to actor, newest first. A patient sees
// its own alerts; a caregiver sees the alerts of every patient it holds an
// ACTIVE link with, whether or not it was notified of them.
// patientID narrows the result and must name the patient itself or, for a
// caregiver, a linked patient.
func (s *Service) List(ctx context.Context, actor *identity.Actor, patientID string, limit, offset int) ([]*Alert, int, error) {
	var f ListFilter
	if raw := strings.TrimSpace(patientID); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return nil, 0, ErrInvalidPatientID
		}
		if err := s.authorize(ctx, actor, id); err != nil {
			return nil, 0, err
		}
		f.PatientID = &id
	}
	switch actor.Role {
	case identity.RolePatient:
		self := actor.ID
		f.PatientID = &self
	case identity.RoleCaregiver:
		if f.PatientID == nil {
			ids, err := s.links.PatientIDs(ctx, actor.ID)
			if err != nil {
				return nil, 0, err
			}
			if ids == nil {
				ids = []uuid.UUID{}
			}
			f.PatientIDs = ids
		}
	default:
		return nil, 0, identity.ErrForbidden
	}

	items, total, err := s.repo.List(ctx, f, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	if items == nil {
		items = []*Alert{}
	}
	return items, total, nil
}

// Create records a manual alert and broadcasts it on the patient channel.
// Severity defaults to INFO.
func (s *Service) Create(ctx context.Context, actor *identity.Actor, req CreateRequest) (*Alert, error) {
	req.Title = strings.TrimSpace(req.Title)
	req.Message = strings.TrimSpace(req.Message)
	req.Type = strings.TrimSpace(req.Type)
	if strings.TrimSpace(req.PatientID) == "" || req.Title == "" || req.Message == "" || req.Type == "" {
		return nil, ErrMissingFields
	}
	patientID, err := uuid.Parse(strings.TrimSpace(req.PatientID))
	if err != nil {
		return nil, ErrInvalidPatientID
	}
	if req.Severity == "" {
		req.Severity = SeverityInfo
	}
	if !req.Severity.Valid() {
		return nil, ErrInvalidSeverity
	}
	if err := s.authorize(ctx, actor, patientID); err != nil {
		return nil, err
	}

	a := &Alert{
		PatientID:    patientID,
		Title:        req.Title,
		Message:      req.Message,
		Type:         req.Type,
		Severity:     req.Severity,
		CaregiverIDs: []uuid.UUID{},
	}
	if err := s.repo.Create(ctx, a); err != nil {
		return nil, err
	}
	s.broadcast(ctx, a)
	return a, nil
}

// Acknowledge flips IsAcknowledged. Acknowledging twice is a no-op.
func (s *Service) Acknowledge(ctx context.Context, actor *identity.Actor, id uuid.UUID) (*Alert, error) {
	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, actor, a.PatientID); err != nil {
		// Hide alerts of patients the caller has no relation to.
		if apperr.KindOf(err) == apperr.KindForbidden {
			return nil, ErrAlertNotFound
		}
		return nil, err
	}
	if a.IsAcknowledged {
		return a, nil
	}
	return s.repo.Acknowledge(ctx, id)
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

func (s *Service) broadcast(ctx context.Context, a *Alert) {
	if s.events == nil {
		return
	}
	evt, err := websocket.NewEvent(websocket.EventAlertNew, websocket.ChannelFor(a.PatientID), a)
	if err == nil {
		err = s.events.Publish(ctx, evt)
	}
	if err != nil {
		s.logger.Warn().Err(err).Str("alert_id", a.ID.String()).Msg("alert broadcast skipped")
	}
}
