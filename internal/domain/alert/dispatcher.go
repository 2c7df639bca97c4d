package alert

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/remora/remora/internal/domain/identity"
	"github.com/remora/remora/internal/domain/location"
	"github.com/remora/remora/internal/domain/notification"
	"github.com/remora/remora/internal/platform/apperr"
	"github.com/remora/remora/internal/platform/websocket"
)

var (
	ErrMissingIdentity  = apperr.BadRequest("MISSING_IDENTITY", "Either deviceToken or userId is required. Use deviceToken for dynamic user identification.")
	ErrInvalidUserID    = apperr.BadRequest("INVALID_USER_ID", "Invalid userId format")
	ErrMissingToken     = apperr.BadRequest("MISSING_DEVICE_TOKEN", "deviceToken is required (body or query)")
	ErrNotPatientTarget = apperr.Forbidden("NOT_A_PATIENT", "emergency alerts can only be raised for patients")
)

// Identities resolves and updates the triggering actor.
type Identities interface {
	ResolveDevice(ctx context.Context, token string) (*identity.Actor, error)
	GetActor(ctx context.Context, id uuid.UUID) (*identity.Actor, error)
	MarkEmergency(ctx context.Context, id uuid.UUID, at time.Time) (*identity.Actor, error)
}

// Caregivers lists the ACTIVE caregivers of a patient.
type Caregivers interface {
	CaregiverIDs(ctx context.Context, patientID uuid.UUID) ([]uuid.UUID, error)
}

type Locations interface {
	LatestOf(ctx context.Context, patientID uuid.UUID) (*location.Sample, error)
}

type Notifier interface {
	Create(ctx context.Context, caregiverID uuid.UUID, p notification.Payload) (*notification.Notification, error)
}

// Recorder counts dispatcher outcomes.
type Recorder interface {
	AlertTriggered(source string)
	NotificationFailed()
}

type nopRecorder struct{}

func (nopRecorder) AlertTriggered(string) {}
func (nopRecorder) NotificationFailed()   {}

// Dispatcher runs the emergency-trigger workflow shared by the device,
// session and MQTT entry points.
type Dispatcher struct {
	identities Identities
	caregivers Caregivers
	locations  Locations
	notifier   Notifier
	alerts     Repository
	events     websocket.EventPublisher
	templates  *notification.TemplateEngine
	recorder   Recorder
	logger     zerolog.Logger
	now        func() time.Time
}

type DispatcherDeps struct {
	Identities Identities
	Caregivers Caregivers
	Locations  Locations
	Notifier   Notifier
	Alerts     Repository
	Events     websocket.EventPublisher
	Templates  *notification.TemplateEngine
	Recorder   Recorder
	Logger     zerolog.Logger
}

func NewDispatcher(d DispatcherDeps) *Dispatcher {
	if d.Templates == nil {
		d.Templates = notification.NewTemplateEngine()
	}
	if d.Recorder == nil {
		d.Recorder = nopRecorder{}
	}
	return &Dispatcher{
		identities: d.Identities,
		caregivers: d.Caregivers,
		locations:  d.Locations,
		notifier:   d.Notifier,
		alerts:     d.Alerts,
		events:     d.Events,
		templates:  d.Templates,
		recorder:   d.Recorder,
		logger:     d.Logger,
		now:        time.Now,
	}
}

// Trigger puts the patient into EMERGENCY and fans the alert out. After the
// status change every step is best effort: a missing caregiver list,
// location, alert row or notification is logged and the call still succeeds.
// Re-triggering refreshes emergencyTriggeredAt and raises a new alert.
func (d *Dispatcher) Trigger(ctx context.Context, req TriggerRequest) (*TriggerResult, error) {
	patient, source, err := d.resolve(ctx, req)
	if err != nil {
		return nil, err
	}
	lc := d.logger.With().Str("patient_id", patient.ID.String()).Str("source", source)
	if req.DeviceTimestamp != nil {
		lc = lc.Int64("device_timestamp", *req.DeviceTimestamp)
	}
	log := lc.Logger()

	now := d.now().UTC()
	if updated, err := d.identities.MarkEmergency(ctx, patient.ID, now); err != nil {
		return nil, err
	} else if updated != nil {
		patient = updated
	}
	d.recorder.AlertTriggered(source)

	caregiverIDs, err := d.caregivers.CaregiverIDs(ctx, patient.ID)
	if err != nil {
		log.Error().Err(err).Msg("caregiver lookup failed, alert raised without recipients")
		caregiverIDs = nil
	}

	var latest *location.Sample
	if latest, err = d.locations.LatestOf(ctx, patient.ID); err != nil {
		log.Warn().Err(err).Msg("latest location unavailable")
		latest = nil
	}
	var lat, lng *float64
	if latest != nil {
		lat, lng = &latest.Latitude, &latest.Longitude
	}

	data := map[string]string{"patient_name": patient.DisplayName(), "patient_email": patient.Email}

	a := d.createAlert(ctx, log, patient.ID, caregiverIDs, lat, lng, data)

	notified := 0
	nTitle, nMessage, err := d.templates.Render(notification.TemplateSOSNotification, data)
	if err != nil {
		log.Error().Err(err).Msg("render notification template")
	} else {
		patientID := patient.ID
		for _, cg := range caregiverIDs {
			_, err := d.notifier.Create(ctx, cg, notification.Payload{
				Title:              nTitle,
				Message:            nMessage,
				Type:               notification.TypeSOS,
				RelatedPatientID:   &patientID,
				RelatedPatientName: patient.DisplayName(),
				Latitude:           lat,
				Longitude:          lng,
			})
			if err != nil {
				d.recorder.NotificationFailed()
				log.Error().Err(err).Str("caregiver_id", cg.String()).Msg("notification skipped")
				continue
			}
			notified++
		}
	}

	res := &TriggerResult{
		Success:              true,
		Message:              "SOS received and user status updated to emergency",
		UserID:               patient.ID,
		Status:               identity.StatusEmergency,
		Device:               req.Device,
		DeviceTimestamp:      req.DeviceTimestamp,
		Timestamp:            now,
		EmergencyTriggeredAt: now,
		CaregiversNotified:   notified,
	}
	if a != nil {
		res.AlertID = &a.ID
		d.publish(ctx, log, websocket.EventAlertNew, patient.ID, a)
	}

	log.Info().Int("caregivers", len(caregiverIDs)).Int("notified", notified).Msg("emergency triggered")
	return res, nil
}

func (d *Dispatcher) createAlert(ctx context.Context, log zerolog.Logger, patientID uuid.UUID, caregivers []uuid.UUID, lat, lng *float64, data map[string]string) *Alert {
	title, message, err := d.templates.Render(notification.TemplateSOSAlert, data)
	if err != nil {
		log.Error().Err(err).Msg("render alert template")
		return nil
	}
	if caregivers == nil {
		caregivers = []uuid.UUID{}
	}
	a := &Alert{
		PatientID:    patientID,
		Title:        title,
		Message:      message,
		Type:         TypeSOS,
		Severity:     SeverityCritical,
		CaregiverIDs: caregivers,
		Latitude:     lat,
		Longitude:    lng,
	}
	if err := d.alerts.Create(ctx, a); err != nil {
		log.Error().Err(err).Msg("alert not stored")
		return nil
	}
	return a
}

func (d *Dispatcher) resolve(ctx context.Context, req TriggerRequest) (*identity.Actor, string, error) {
	if req.Actor != nil {
		if err := identity.RequireRole(req.Actor, identity.RolePatient); err != nil {
			return nil, "", err
		}
		return req.Actor, SourceSession, nil
	}

	if token := strings.TrimSpace(req.DeviceToken); token != "" {
		a, err := d.identities.ResolveDevice(ctx, token)
		if err != nil {
			return nil, "", err
		}
		source := SourceDevice
		if req.Source != "" {
			source = req.Source
		}
		return a, source, nil
	}

	if raw := strings.TrimSpace(req.PatientID); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return nil, "", ErrInvalidUserID
		}
		a, err := d.identities.GetActor(ctx, id)
		if err != nil {
			return nil, "", err
		}
		if a.Role != identity.RolePatient {
			return nil, "", ErrNotPatientTarget
		}
		return a, SourceUserID, nil
	}

	return nil, "", ErrMissingIdentity
}

// VoiceToggle tells the patient app, through its channel, to start or stop
// voice recording.
func (d *Dispatcher) VoiceToggle(ctx context.Context, token, device string) (*VoiceToggleResult, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrMissingToken
	}
	a, err := d.identities.ResolveDevice(ctx, token)
	if err != nil {
		return nil, err
	}
	log := d.logger.With().Str("patient_id", a.ID.String()).Logger()
	d.publish(ctx, log, websocket.EventVoiceToggle, a.ID, map[string]interface{}{
		"userId":    a.ID,
		"device":    device,
		"timestamp": d.now().UTC(),
	})
	return &VoiceToggleResult{Success: true, Message: "Voice toggle sent to app", UserID: a.ID}, nil
}

// publish never fails the caller.
func (d *Dispatcher) publish(ctx context.Context, log zerolog.Logger, eventType string, patientID uuid.UUID, payload interface{}) {
	if d.events == nil {
		return
	}
	evt, err := websocket.NewEvent(eventType, websocket.ChannelFor(patientID), payload)
	if err == nil {
		err = d.events.Publish(ctx, evt)
	}
	if err != nil {
		log.Warn().Err(err).Str("event", eventType).Msg("broadcast skipped")
	}
}
