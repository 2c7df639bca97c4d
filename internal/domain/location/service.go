package location

import (
	"context"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/remora/remora/internal/domain/identity"
	"github.com/remora/remora/internal/platform/apperr"
	"github.com/remora/remora/internal/platform/websocket"
)

var (
	ErrInvalidCoordinates = apperr.BadRequest("INVALID_COORDINATES", "latitude must be within [-90, 90] and longitude within [-180, 180]")
	ErrNoLocation         = apperr.NotFound("LOCATION_NOT_FOUND", "no location reported for this patient")
)

type Service struct {
	repo   Repository
	events websocket.EventPublisher
	logger zerolog.Logger
	now    func() time.Time
}

func NewService(repo Repository, events websocket.EventPublisher, logger zerolog.Logger) *Service {
	return &Service{repo: repo, events: events, logger: logger, now: time.Now}
}

// Report stores the patient's latest position and announces it on the
// patient channel. An older recordedAt still overwrites a newer stored one.
func (s *Service) Report(ctx context.Context, patient *identity.Actor, req ReportRequest) (*Sample, error) {
	if err := identity.RequireRole(patient, identity.RolePatient); err != nil {
		return nil, err
	}
	if req.Latitude == nil || req.Longitude == nil || !validCoordinates(*req.Latitude, *req.Longitude) {
		return nil, ErrInvalidCoordinates
	}

	now := s.now().UTC()
	sample := &Sample{
		PatientID:  patient.ID,
		Latitude:   *req.Latitude,
		Longitude:  *req.Longitude,
		Accuracy:   req.Accuracy,
		Battery:    req.Battery,
		RecordedAt: now,
		ReceivedAt: now,
	}
	if req.RecordedAt != nil && !req.RecordedAt.IsZero() {
		sample.RecordedAt = req.RecordedAt.UTC()
	}

	if err := s.repo.Upsert(ctx, sample); err != nil {
		return nil, err
	}

	if s.events != nil {
		evt, err := websocket.NewEvent(websocket.EventLocationNew, websocket.ChannelFor(patient.ID), sample)
		if err == nil {
			err = s.events.Publish(ctx, evt)
		}
		if err != nil {
			s.logger.Warn().Err(err).Str("patient_id", patient.ID.String()).Msg("location broadcast skipped")
		}
	}
	return sample, nil
}

// LatestOf returns nil, nil when the patient never reported a position.
func (s *Service) LatestOf(ctx context.Context, patientID uuid.UUID) (*Sample, error) {
	return s.repo.Latest(ctx, patientID)
}

func validCoordinates(lat, lng float64) bool {
	if math.IsNaN(lat) || math.IsNaN(lng) {
		return false
	}
	return lat >= -90 && lat <= 90 && lng >= -180 && lng <= 180
}
