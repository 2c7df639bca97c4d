package identity

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/crypto/bcrypt"

	"github.com/remora/remora/internal/platform/auth"
)

// deviceTokenBytes is the entropy of a generated device token (256 bits).
const deviceTokenBytes = 32

const (
	bcryptCost        = 10
	minPasswordLength = 6
	searchLimit       = 20
)

// SessionTokens issues and verifies session credentials.
type SessionTokens interface {
	Issue(id, role, email string) (string, time.Time, error)
	Verify(token string) (*auth.Claims, error)
}

// Service resolves credentials into actors and owns the account records.
type Service struct {
	actors   ActorRepository
	devices  DeviceTokenRepository
	sessions SessionTokens
	// deviceCache maps token -> actor id. Tokens are append-only and never
	// reassigned, so positive entries cannot go stale.
	deviceCache *lru.Cache[string, uuid.UUID]
	newToken    func() (string, error)
	now         func() time.Time
}

func NewService(actors ActorRepository, devices DeviceTokenRepository, sessions SessionTokens, cacheSize int) (*Service, error) {
	if cacheSize <= 0 {
		cacheSize = 1024
	}
	cache, err := lru.New[string, uuid.UUID](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("create device token cache: %w", err)
	}
	return &Service{
		actors:      actors,
		devices:     devices,
		sessions:    sessions,
		deviceCache: cache,
		newToken:    newDeviceToken,
		now:         time.Now,
	}, nil
}

func newDeviceToken() (string, error) {
	buf := make([]byte, deviceTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate device token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// RequireRole is the capability check run at the top of every protected
// operation.
func RequireRole(actor *Actor, role Role) error {
	if actor == nil {
		return ErrInvalidSession
	}
	if actor.Role != role {
		return ErrForbidden.Wrap(fmt.Errorf("required role: %s", role))
	}
	return nil
}

// ResolveSession verifies a raw session token and loads its actor.
func (s *Service) ResolveSession(ctx context.Context, token string) (*Actor, error) {
	claims, err := s.sessions.Verify(token)
	if err != nil {
		return nil, ErrInvalidSession.Wrap(err)
	}
	return s.ResolveClaims(ctx, claims)
}

// ResolveClaims loads the actor named by already-verified claims.
func (s *Service) ResolveClaims(ctx context.Context, claims *auth.Claims) (*Actor, error) {
	if claims == nil {
		return nil, ErrInvalidSession
	}
	id, err := uuid.Parse(claims.ID)
	if err != nil {
		return nil, ErrInvalidSession.Wrap(err)
	}
	a, err := s.actors.GetByID(ctx, id)
	if errors.Is(err, ErrActorNotFound) {
		return nil, ErrUnknownActor
	}
	if err != nil {
		return nil, err
	}
	return a, nil
}

// ResolveDevice yields the owner of a device token regardless of its status.
func (s *Service) ResolveDevice(ctx context.Context, token string) (*Actor, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrInvalidDeviceToken
	}

	id, ok := s.deviceCache.Get(token)
	if !ok {
		var err error
		id, err = s.devices.ActorIDByToken(ctx, token)
		if err != nil {
			return nil, err
		}
		s.deviceCache.Add(token, id)
	}

	a, err := s.actors.GetByID(ctx, id)
	if errors.Is(err, ErrActorNotFound) {
		s.deviceCache.Remove(token)
		return nil, ErrInvalidDeviceToken
	}
	if err != nil {
		return nil, err
	}
	return a, nil
}

// RegisterDevice mints a new device token for a patient. Only patients own
// devices because a device credential can only trigger that owner's SOS.
func (s *Service) RegisterDevice(ctx context.Context, actor *Actor, name, kind string) (*DeviceRegistration, error) {
	if err := RequireRole(actor, RolePatient); err != nil {
		return nil, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		name = DefaultDeviceName
	}
	kind = strings.TrimSpace(kind)
	if kind == "" {
		kind = DefaultDeviceKind
	}

	token, err := s.newToken()
	if err != nil {
		return nil, err
	}
	dt := &DeviceToken{Token: token, Name: name, Kind: kind, RegisteredAt: s.now()}
	if err := s.devices.Add(ctx, actor.ID, dt); err != nil {
		return nil, err
	}
	s.deviceCache.Add(token, actor.ID)

	return &DeviceRegistration{
		Success:     true,
		DeviceToken: token,
		DeviceName:  name,
		DeviceType:  kind,
		Message:     "Device registered. Store this token on the device; it will not be shown again.",
	}, nil
}

func (s *Service) ListDevices(ctx context.Context, actor *Actor) ([]DeviceToken, error) {
	if actor == nil {
		return nil, ErrInvalidSession
	}
	return s.devices.ListByActor(ctx, actor.ID)
}

// MarkEmergency sets status EMERGENCY and refreshes emergencyTriggeredAt.
func (s *Service) MarkEmergency(ctx context.Context, id uuid.UUID, at time.Time) (*Actor, error) {
	return s.actors.MarkEmergency(ctx, id, at)
}

func (s *Service) GetActor(ctx context.Context, id uuid.UUID) (*Actor, error) {
	return s.actors.GetByID(ctx, id)
}

func (s *Service) GetActorByEmail(ctx context.Context, email string) (*Actor, error) {
	return s.actors.GetByEmail(ctx, email)
}

// -- Accounts --

func (s *Service) Register(ctx context.Context, req RegisterRequest) (*Session, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, badRequest("INVALID_EMAIL", "a valid email is required")
	}
	if len(req.Password) < minPasswordLength {
		return nil, badRequest("WEAK_PASSWORD", fmt.Sprintf("password must be at least %d characters", minPasswordLength))
	}
	role := req.Role
	if role == "" {
		role = RoleCaregiver
	}
	if !role.Valid() {
		return nil, badRequest("INVALID_ROLE", fmt.Sprintf("role must be %s or %s", RolePatient, RoleCaregiver))
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	a := &Actor{
		Email:        email,
		Name:         strings.TrimSpace(req.Name),
		PasswordHash: string(hash),
		Role:         role,
		Status:       StatusNormal,
	}
	if err := s.actors.Create(ctx, a); err != nil {
		return nil, err
	}
	return s.issue(a)
}

func (s *Service) Login(ctx context.Context, req LoginRequest) (*Session, error) {
	a, err := s.actors.GetByEmail(ctx, req.Email)
	if errors.Is(err, ErrActorNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if bcrypt.CompareHashAndPassword([]byte(a.PasswordHash), []byte(req.Password)) != nil {
		return nil, ErrInvalidCredentials
	}
	return s.issue(a)
}

func (s *Service) issue(a *Actor) (*Session, error) {
	token, exp, err := s.sessions.Issue(a.ID.String(), string(a.Role), a.Email)
	if err != nil {
		return nil, err
	}
	return &Session{Token: token, ExpiresAt: exp, User: a}, nil
}

// SearchCaregivers lists caregivers whose name or email contains query,
// exact email matches first.
func (s *Service) SearchCaregivers(ctx context.Context, query string) ([]*Actor, error) {
	return s.actors.SearchCaregivers(ctx, strings.TrimSpace(query), searchLimit)
}
