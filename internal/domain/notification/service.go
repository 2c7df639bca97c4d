package notification

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/remora/remora/internal/platform/apperr"
)

var (
	ErrNotificationNotFound = apperr.NotFound("NOTIFICATION_NOT_FOUND", "notification not found")
	ErrMissingFields        = apperr.BadRequest("MISSING_FIELDS", "title, message and type are required")
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Create persists one unread notification for a caregiver.
func (s *Service) Create(ctx context.Context, caregiverID uuid.UUID, p Payload) (*Notification, error) {
	if strings.TrimSpace(p.Title) == "" || strings.TrimSpace(p.Message) == "" || strings.TrimSpace(p.Type) == "" {
		return nil, ErrMissingFields
	}
	n := &Notification{
		CaregiverID:        caregiverID,
		Title:              p.Title,
		Message:            p.Message,
		Type:               p.Type,
		RelatedPatientID:   p.RelatedPatientID,
		RelatedPatientName: p.RelatedPatientName,
		Latitude:           p.Latitude,
		Longitude:          p.Longitude,
	}
	if err := s.repo.Create(ctx, n); err != nil {
		return nil, err
	}
	return n, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Notification, error) {
	return s.repo.GetByID(ctx, id)
}

// MarkRead is idempotent. An unknown id fails with ErrNotificationNotFound.
func (s *Service) MarkRead(ctx context.Context, id uuid.UUID) (*Notification, error) {
	return s.repo.MarkRead(ctx, id)
}

// ListFor returns the caregiver's notifications, newest first, and the total.
func (s *Service) ListFor(ctx context.Context, caregiverID uuid.UUID, limit, offset int) ([]*Notification, int, error) {
	items, total, err := s.repo.ListFor(ctx, caregiverID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	if items == nil {
		items = []*Notification{}
	}
	return items, total, nil
}
