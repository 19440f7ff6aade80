package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/dishevent/dishevent-server/identity"
	"github.com/dishevent/dishevent-server/logger"
	"github.com/dishevent/dishevent-server/models"
	"github.com/dishevent/dishevent-server/realtime"
	"github.com/dishevent/dishevent-server/repository"
	"github.com/dishevent/dishevent-server/telemetry"
	"github.com/dishevent/dishevent-server/utils"
)

// EventInput is a create request. OwnerID, CreatedAt and UpdatedAt are
// accepted for wire compatibility and ignored.
type EventInput struct {
	Kind              models.EventKind     `json:"eventType" binding:"required,oneof=wedding birthday corporate"`
	Name              string               `json:"name" binding:"required,max=255"`
	Description       string               `json:"description"`
	Date              string               `json:"date" binding:"omitempty,datetime=2006-01-02"`
	MaxGuests         int                  `json:"maxGuests" binding:"min=0"`
	Visibility        string               `json:"visibility" binding:"omitempty,oneof=public private"`
	Theme             string               `json:"theme" binding:"max=50"`
	Status            string               `json:"status" binding:"omitempty,oneof=active draft completed"`
	Plan              string               `json:"plan" binding:"omitempty,oneof=free premium"`
	CoverImageURL     string               `json:"coverImage"`
	Details           *models.EventDetails `json:"details"`
	ExtraFields       map[string]any       `json:"extraFields"`
	PasswordProtected *bool                `json:"passwordProtected"`
	Password          *string              `json:"password"`

	OwnerID   string    `json:"ownerId"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// EventPatch carries only the fields the caller sent.
type EventPatch struct {
	Kind              *models.EventKind    `json:"eventType" binding:"omitempty,oneof=wedding birthday corporate"`
	Name              *string              `json:"name" binding:"omitempty,max=255"`
	Description       *string              `json:"description"`
	Date              *string              `json:"date"`
	MaxGuests         *int                 `json:"maxGuests" binding:"omitempty,min=0"`
	Visibility        *string              `json:"visibility" binding:"omitempty,oneof=public private"`
	Theme             *string              `json:"theme"`
	Status            *string              `json:"status" binding:"omitempty,oneof=active draft completed"`
	Plan              *string              `json:"plan" binding:"omitempty,oneof=free premium"`
	CoverImageURL     *string              `json:"coverImage"`
	Details           *models.EventDetails `json:"details"`
	ExtraFields       map[string]any       `json:"extraFields"`
	PasswordProtected *bool                `json:"passwordProtected"`
	Password          *string              `json:"password"`
}

type EventService struct {
	events repository.EventRepository
	broker realtime.Broker
	now    func() time.Time
}

func NewEventService(events repository.EventRepository, broker realtime.Broker) *EventService {
	return &EventService{events: events, broker: broker, now: time.Now}
}

func requireActor(actor identity.Identity) error {
	if actor.UserID == "" {
		return ErrNotAuthenticated
	}
	return nil
}

// List returns the actor's events with the filter applied locally.
func (s *EventService) List(ctx context.Context, actor identity.Identity, filter models.EventFilter) ([]models.Event, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	ctx, span := telemetry.StartSpan(ctx, "events.list", attribute.String("owner_id", actor.UserID))
	defer span.End()

	events, err := s.events.ListByOwner(ctx, actor.UserID)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	return models.ApplyEventFilter(events, filter, s.now()), nil
}

// Subscribe opens a live view of the actor's events. The filter is
// re-applied on every push.
func (s *EventService) Subscribe(ctx context.Context, actor identity.Identity, filter models.EventFilter) (*realtime.Feed[[]models.Event], error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	load := func(ctx context.Context) ([]models.Event, error) {
		events, err := s.events.ListByOwner(ctx, actor.UserID)
		if err != nil {
			return nil, err
		}
		return models.ApplyEventFilter(events, filter, s.now()), nil
	}
	return realtime.NewFeed(ctx, s.broker, load, realtime.OwnerTopic(actor.UserID))
}

// Watch opens a live view of one event. Once the event is gone the feed
// pushes nil.
func (s *EventService) Watch(ctx context.Context, actor identity.Identity, id string) (*realtime.Feed[*models.Event], error) {
	if _, err := s.GetByID(ctx, actor, id); err != nil {
		return nil, err
	}
	load := func(ctx context.Context) (*models.Event, error) {
		ev, err := s.events.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if ev == nil || ev.OwnerID != actor.UserID {
			return nil, nil
		}
		return ev, nil
	}
	return realtime.NewFeed(ctx, s.broker, load, realtime.EventTopic(id))
}

// GetByID hides other owners' events behind ErrEventNotFound.
func (s *EventService) GetByID(ctx context.Context, actor identity.Identity, id string) (*models.Event, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	ev, err := s.events.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get event: %w", err)
	}
	if ev == nil || ev.OwnerID != actor.UserID {
		return nil, ErrEventNotFound
	}
	return ev, nil
}

func (s *EventService) Create(ctx context.Context, actor identity.Identity, in EventInput) (*models.Event, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}

	now := s.now().UTC().Truncate(time.Microsecond)
	ev := &models.Event{
		ID:            uuid.NewString(),
		OwnerID:       actor.UserID,
		Kind:          in.Kind,
		Name:          strings.TrimSpace(in.Name),
		Description:   in.Description,
		Date:          in.Date,
		MaxGuests:     in.MaxGuests,
		Visibility:    orDefault(in.Visibility, models.VisibilityPublic),
		Theme:         orDefault(in.Theme, models.DefaultTheme),
		Status:        orDefault(in.Status, models.StatusActive),
		Plan:          orDefault(in.Plan, models.PlanFree),
		CoverImageURL: in.CoverImageURL,
		Version:       1,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	legacy, err := models.NormalizeExtraFields(in.Kind, in.ExtraFields)
	if err != nil {
		return nil, &ValidationError{Fields: map[string]string{"extraFields": err.Error()}}
	}
	switch {
	case in.Details != nil:
		ev.Details = *in.Details
	case !legacy.Details.IsZero():
		ev.Details = legacy.Details
	}
	if ev.Details.Kind == "" && !ev.Details.IsZero() {
		ev.Details.Kind = ev.Kind
	}

	protected := firstBool(in.PasswordProtected, legacy.PasswordProtected)
	password := firstString(in.Password, legacy.Password)
	if err := applyPassword(ev, protected, password); err != nil {
		return nil, err
	}

	if err := validateEvent(ev); err != nil {
		return nil, err
	}

	if err := s.events.Create(ctx, ev); err != nil {
		return nil, fmt.Errorf("create event: %w", err)
	}
	s.publish(ctx, ev, realtime.OwnerTopic(ev.OwnerID), realtime.EventTopic(ev.ID))
	return ev, nil
}

// Update merges the patch over the stored record and writes the whole record
// back. Without expectedVersion concurrent updates are last-write-wins.
func (s *EventService) Update(ctx context.Context, actor identity.Identity, id string, patch EventPatch, expectedVersion *int64) (*models.Event, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	ctx, span := telemetry.StartSpan(ctx, "events.update", attribute.String("event_id", id))
	defer span.End()

	ev, err := s.events.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get event: %w", err)
	}
	if ev == nil {
		return nil, ErrEventNotFound
	}
	if ev.OwnerID != actor.UserID {
		return nil, ErrPermissionDenied
	}
	if expectedVersion != nil && *expectedVersion != ev.Version {
		return nil, ErrVersionConflict
	}

	if err := s.applyPatch(ev, patch); err != nil {
		return nil, err
	}
	if err := validateEvent(ev); err != nil {
		return nil, err
	}

	prevVersion := ev.Version
	ev.Version++
	ev.UpdatedAt = s.nextUpdatedAt(ev.UpdatedAt)

	var cond *int64
	if expectedVersion != nil {
		cond = &prevVersion
	}
	if err := s.events.Save(ctx, ev, cond); err != nil {
		if errors.Is(err, repository.ErrStaleVersion) {
			return nil, ErrVersionConflict
		}
		return nil, fmt.Errorf("save event: %w", err)
	}
	s.publish(ctx, ev, realtime.OwnerTopic(ev.OwnerID), realtime.EventTopic(ev.ID))
	return ev, nil
}

// Delete re-checks ownership and removes the event with its guests.
func (s *EventService) Delete(ctx context.Context, actor identity.Identity, id string) error {
	if err := requireActor(actor); err != nil {
		return err
	}
	ev, err := s.events.GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("get event: %w", err)
	}
	if ev == nil {
		return ErrEventNotFound
	}
	if ev.OwnerID != actor.UserID {
		return ErrPermissionDenied
	}
	deleted, err := s.events.Delete(ctx, id)
	if err != nil {
		return fmt.Errorf("delete event: %w", err)
	}
	if !deleted {
		return ErrEventNotFound
	}
	s.publish(ctx, ev, realtime.OwnerTopic(ev.OwnerID), realtime.EventTopic(ev.ID), realtime.GuestsTopic(ev.ID))
	return nil
}

// nextUpdatedAt keeps updatedAt strictly increasing even when the clock
// does not move between two writes. Postgres stores microseconds.
func (s *EventService) nextUpdatedAt(prev time.Time) time.Time {
	now := s.now().UTC().Truncate(time.Microsecond)
	if !now.After(prev) {
		now = prev.Add(time.Microsecond)
	}
	return now
}

func (s *EventService) applyPatch(ev *models.Event, p EventPatch) error {
	setString(&ev.Name, p.Name)
	if p.Name != nil {
		ev.Name = strings.TrimSpace(ev.Name)
	}
	setString(&ev.Description, p.Description)
	setString(&ev.Date, p.Date)
	setString(&ev.Visibility, p.Visibility)
	setString(&ev.Theme, p.Theme)
	setString(&ev.Status, p.Status)
	setString(&ev.Plan, p.Plan)
	setString(&ev.CoverImageURL, p.CoverImageURL)
	if p.MaxGuests != nil {
		ev.MaxGuests = *p.MaxGuests
	}

	kindChanged := p.Kind != nil && *p.Kind != ev.Kind
	if p.Kind != nil {
		ev.Kind = *p.Kind
	}

	legacy, err := models.NormalizeExtraFields(ev.Kind, p.ExtraFields)
	if err != nil {
		return &ValidationError{Fields: map[string]string{"extraFields": err.Error()}}
	}
	switch {
	case p.Details != nil:
		ev.Details = *p.Details
		if ev.Details.Kind == "" {
			ev.Details.Kind = ev.Kind
		}
	case !legacy.Details.IsZero():
		ev.Details = legacy.Details
	case kindChanged:
		ev.Details = models.EventDetails{}
	}

	protected := firstBool(p.PasswordProtected, legacy.PasswordProtected)
	password := firstString(p.Password, legacy.Password)
	if protected == nil && password == nil {
		return nil
	}
	if protected == nil {
		on := ev.Protection.PasswordProtected
		protected = &on
	}
	return applyPassword(ev, protected, password)
}

// applyPassword stores only a bcrypt hash. Turning protection off drops the hash.
func applyPassword(ev *models.Event, protected *bool, password *string) error {
	if protected != nil && !*protected {
		ev.Protection = models.Protection{}
		return nil
	}
	if password != nil && *password != "" {
		if len(*password) > utils.MaxPasswordBytes {
			return &ValidationError{Fields: map[string]string{"password": fmt.Sprintf("must be at most %d bytes", utils.MaxPasswordBytes)}}
		}
		hash, err := utils.HashPassword(*password)
		if err != nil {
			return fmt.Errorf("hash event password: %w", err)
		}
		ev.Protection.PasswordHash = hash
	}
	if protected != nil && *protected {
		if ev.Protection.PasswordHash == "" {
			return &ValidationError{Fields: map[string]string{"password": "required when the event is password protected"}}
		}
		ev.Protection.PasswordProtected = true
	}
	return nil
}

func validateEvent(ev *models.Event) error {
	fe, err := check(ev)
	if err != nil {
		return fmt.Errorf("validate event: %w", err)
	}
	if err := ev.Details.Validate(); err != nil {
		fe.add("details", err.Error())
	} else if !ev.Details.IsZero() && ev.Details.Kind != ev.Kind {
		fe.add("details", models.ErrDetailsKindMismatch.Error())
	}
	return fe.err()
}

func (s *EventService) publish(ctx context.Context, ev *models.Event, topics ...string) {
	if s.broker == nil {
		return
	}
	if err := s.broker.Publish(ctx, topics...); err != nil {
		logger.WithContext(ctx).Error("publish event change",
			zap.String("event_id", ev.ID),
			zap.Error(err),
		)
	}
}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

func firstBool(a, b *bool) *bool {
	if a != nil {
		return a
	}
	return b
}

func firstString(a, b *string) *string {
	if a != nil {
		return a
	}
	return b
}
