package relationship

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/remora/remora/internal/domain/identity"
	"github.com/remora/remora/internal/domain/location"
	"github.com/remora/remora/internal/platform/apperr"
)

var (
	ErrCaregiverNotFound = apperr.NotFound("CAREGIVER_NOT_FOUND", "caregiver not found")
	ErrSelfConnection    = apperr.BadRequest("SELF_CONNECTION", "You cannot connect to yourself as a caregiver")
	ErrMissingSelector   = apperr.BadRequest("MISSING_CAREGIVER_CODE", "caregiverCode is required")
)

// Actors resolves caregiver selectors.
type Actors interface {
	GetActor(ctx context.Context, id uuid.UUID) (*identity.Actor, error)
	GetActorByEmail(ctx context.Context, email string) (*identity.Actor, error)
}

// Locations supplies the latest position shown next to each linked patient.
type Locations interface {
	LatestOf(ctx context.Context, patientID uuid.UUID) (*location.Sample, error)
}

type Service struct {
	repo      Repository
	actors    Actors
	locations Locations
	logger    zerolog.Logger
}

func NewService(repo Repository, actors Actors, locations Locations, logger zerolog.Logger) *Service {
	return &Service{repo: repo, actors: actors, locations: locations, logger: logger}
}

// Connect links a patient to the caregiver named by selector (actor id or
// email). Repeating the call for a linked pair reports ALREADY_CONNECTED.
func (s *Service) Connect(ctx context.Context, patient *identity.Actor, selector string) (*ConnectResult, error) {
	if err := identity.RequireRole(patient, identity.RolePatient); err != nil {
		return nil, err
	}
	selector = strings.TrimSpace(selector)
	if selector == "" {
		return nil, ErrMissingSelector
	}

	caregiver, err := s.resolve(ctx, selector)
	if err != nil {
		return nil, err
	}
	if caregiver.ID == patient.ID {
		return nil, ErrSelfConnection
	}
	if caregiver.Role != identity.RoleCaregiver {
		return nil, caregiverNotFound(selector)
	}

	_, inserted, err := s.repo.Insert(ctx, patient.ID, caregiver.ID)
	if err != nil {
		return nil, err
	}

	res := &ConnectResult{
		CaregiverID:    caregiver.ID,
		CaregiverName:  caregiver.DisplayName(),
		CaregiverEmail: caregiver.Email,
	}
	if !inserted {
		res.Status = StatusAlreadyConnected
		res.Message = fmt.Sprintf("You are already connected to %s (%s)", res.CaregiverName, caregiver.Email)
		return res, nil
	}

	s.logger.Info().
		Str("patient_id", patient.ID.String()).
		Str("caregiver_id", caregiver.ID.String()).
		Msg("caregiver connected")

	res.Status = StatusConnected
	res.Message = fmt.Sprintf("Successfully connected to %s", res.CaregiverName)
	return res, nil
}

// resolve tries the selector as an actor id first, then as an email.
func (s *Service) resolve(ctx context.Context, selector string) (*identity.Actor, error) {
	if id, err := uuid.Parse(selector); err == nil {
		a, err := s.actors.GetActor(ctx, id)
		if err == nil {
			return a, nil
		}
		if !errors.Is(err, identity.ErrActorNotFound) {
			return nil, err
		}
	}
	a, err := s.actors.GetActorByEmail(ctx, selector)
	if errors.Is(err, identity.ErrActorNotFound) {
		return nil, caregiverNotFound(selector)
	}
	if err != nil {
		return nil, err
	}
	return a, nil
}

func caregiverNotFound(selector string) error {
	return apperr.NotFound(ErrCaregiverNotFound.Code,
		fmt.Sprintf("Caregiver not found with email/code: %s. Please check the email address and try again.", selector))
}

// CaregiversOf lists the ACTIVE caregivers of a patient, oldest link first.
func (s *Service) CaregiversOf(ctx context.Context, patientID uuid.UUID) ([]CaregiverSummary, error) {
	members, err := s.repo.CaregiversOf(ctx, patientID)
	if err != nil {
		return nil, err
	}
	out := make([]CaregiverSummary, 0, len(members))
	for _, m := range members {
		out = append(out, CaregiverSummary{ID: m.ActorID, Name: m.Name, Email: m.Email, ConnectedAt: m.ConnectedAt})
	}
	return out, nil
}

// CaregiverIDs returns just the ids of the ACTIVE caregivers of a patient.
func (s *Service) CaregiverIDs(ctx context.Context, patientID uuid.UUID) ([]uuid.UUID, error) {
	members, err := s.repo.CaregiversOf(ctx, patientID)
	if err != nil {
		return nil, err
	}
	ids := make([]uuid.UUID, 0, len(members))
	for _, m := range members {
		ids = append(ids, m.ActorID)
	}
	return ids, nil
}

// PatientsOf lists the ACTIVE patients of a caregiver with their latest
// location. A failed location read leaves that patient's location empty.
func (s *Service) PatientsOf(ctx context.Context, caregiverID uuid.UUID) ([]PatientSummary, error) {
	members, err := s.repo.PatientsOf(ctx, caregiverID)
	if err != nil {
		return nil, err
	}
	out := make([]PatientSummary, 0, len(members))
	for _, m := range members {
		p := PatientSummary{ID: m.ActorID, Name: m.Name, Email: m.Email, Status: m.Status}
		if s.locations != nil {
			loc, err := s.locations.LatestOf(ctx, m.ActorID)
			if err != nil {
				s.logger.Warn().Err(err).Str("patient_id", m.ActorID.String()).Msg("latest location unavailable")
			}
			p.Location = loc
		}
		out = append(out, p)
	}
	return out, nil
}

// PatientIDs returns the ids of the ACTIVE patients of a caregiver.
func (s *Service) PatientIDs(ctx context.Context, caregiverID uuid.UUID) ([]uuid.UUID, error) {
	members, err := s.repo.PatientsOf(ctx, caregiverID)
	if err != nil {
		return nil, err
	}
	ids := make([]uuid.UUID, 0, len(members))
	for _, m := range members {
		ids = append(ids, m.ActorID)
	}
	return ids, nil
}

func (s *Service) IsLinked(ctx context.Context, patientID, caregiverID uuid.UUID) (bool, error) {
	return s.repo.IsLinked(ctx, patientID, caregiverID)
}
