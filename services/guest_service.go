package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dishevent/dishevent-server/identity"
	"github.com/dishevent/dishevent-server/logger"
	"github.com/dishevent/dishevent-server/models"
	"github.com/dishevent/dishevent-server/realtime"
	"github.com/dishevent/dishevent-server/repository"
	"github.com/dishevent/dishevent-server/utils"
)

type GuestInput struct {
	Name      string              `json:"name" binding:"required,max=255"`
	Email     string              `json:"email" binding:"required,email,max=255"`
	Phone     *string             `json:"phone" binding:"omitempty,max=50"`
	Response  models.RSVPResponse `json:"response" binding:"required,oneof=yes no maybe"`
	Attendees int                 `json:"attendees" binding:"omitempty,min=1"`
	Note      *string             `json:"note"`
}

// GuestPatch: Phone and Note may be cleared with an explicit null.
type GuestPatch struct {
	Name      *string                `json:"name" binding:"omitempty,max=255"`
	Email     *string                `json:"email" binding:"omitempty,email,max=255"`
	Phone     utils.Nullable[string] `json:"phone"`
	Response  *models.RSVPResponse   `json:"response" binding:"omitempty,oneof=yes no maybe"`
	Attendees *int                   `json:"attendees" binding:"omitempty,min=1"`
	Note      utils.Nullable[string] `json:"note"`
}

type GuestService struct {
	events repository.EventRepository
	guests repository.GuestRepository
	access *AccessService
	broker realtime.Broker
	now    func() time.Time
}

func NewGuestService(events repository.EventRepository, guests repository.GuestRepository, access *AccessService, broker realtime.Broker) *GuestService {
	return &GuestService{events: events, guests: guests, access: access, broker: broker, now: time.Now}
}

// Create records an RSVP. The viewer needs no account but must be able to
// see the event, password gate included.
func (s *GuestService) Create(ctx context.Context, viewer identity.Identity, eventID, accessToken string, in GuestInput) (*models.Guest, error) {
	ev, err := s.access.View(ctx, viewer, eventID, accessToken)
	if err != nil {
		return nil, err
	}

	if in.Attendees == 0 {
		in.Attendees = 1
	}
	g := &models.Guest{
		ID:        uuid.NewString(),
		EventID:   ev.ID,
		Name:      strings.TrimSpace(in.Name),
		Email:     strings.TrimSpace(in.Email),
		Phone:     in.Phone,
		Response:  in.Response,
		Attendees: in.Attendees,
		Note:      in.Note,
	}
	if err := validateGuest(g); err != nil {
		return nil, err
	}
	now := s.now().UTC()
	g.InvitedAt = now
	g.RespondedAt = &now

	if err := s.guests.Create(ctx, g, ev.MaxGuests); err != nil {
		if errors.Is(err, repository.ErrCapacityExceeded) {
			return nil, ErrEventFull
		}
		return nil, fmt.Errorf("create guest: %w", err)
	}
	s.publish(ctx, ev.ID)
	return g, nil
}

// Update is owner only. A changed response restamps RespondedAt.
func (s *GuestService) Update(ctx context.Context, actor identity.Identity, eventID, guestID string, p GuestPatch) (*models.Guest, error) {
	ev, err := s.ownedEvent(ctx, actor, eventID, true)
	if err != nil {
		return nil, err
	}
	g, err := s.guests.GetByID(ctx, eventID, guestID)
	if err != nil {
		return nil, fmt.Errorf("get guest: %w", err)
	}
	if g == nil {
		return nil, ErrGuestNotFound
	}

	before := *g
	setString(&g.Name, p.Name)
	setString(&g.Email, p.Email)
	p.Phone.Apply(&g.Phone)
	p.Note.Apply(&g.Note)
	if p.Response != nil {
		g.Response = *p.Response
	}
	if p.Attendees != nil {
		g.Attendees = *p.Attendees
	}
	g.Name = strings.TrimSpace(g.Name)
	g.Email = strings.TrimSpace(g.Email)
	if err := validateGuest(g); err != nil {
		return nil, err
	}

	if err := s.checkCapacity(ctx, ev, &before, g); err != nil {
		return nil, err
	}
	if g.Response != before.Response {
		now := s.now().UTC()
		g.RespondedAt = &now
	}
	if err := s.guests.Save(ctx, g); err != nil {
		return nil, fmt.Errorf("save guest: %w", err)
	}
	s.publish(ctx, ev.ID)
	return g, nil
}

func (s *GuestService) List(ctx context.Context, actor identity.Identity, eventID string) ([]models.Guest, error) {
	if _, err := s.ownedEvent(ctx, actor, eventID, false); err != nil {
		return nil, err
	}
	guests, err := s.guests.ListByEvent(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("list guests: %w", err)
	}
	return guests, nil
}

// Subscribe opens a live view of an event's guest list.
func (s *GuestService) Subscribe(ctx context.Context, actor identity.Identity, eventID string) (*realtime.Feed[[]models.Guest], error) {
	if _, err := s.ownedEvent(ctx, actor, eventID, false); err != nil {
		return nil, err
	}
	load := func(ctx context.Context) ([]models.Guest, error) {
		return s.guests.ListByEvent(ctx, eventID)
	}
	return realtime.NewFeed(ctx, s.broker, load, realtime.GuestsTopic(eventID))
}

func (s *GuestService) Delete(ctx context.Context, actor identity.Identity, eventID, guestID string) error {
	if _, err := s.ownedEvent(ctx, actor, eventID, true); err != nil {
		return err
	}
	deleted, err := s.guests.Delete(ctx, eventID, guestID)
	if err != nil {
		return fmt.Errorf("delete guest: %w", err)
	}
	if !deleted {
		return ErrGuestNotFound
	}
	s.publish(ctx, eventID)
	return nil
}

// ownedEvent loads the event for its owner. Reads by anyone else look like
// a missing event; mutations report ErrPermissionDenied.
func (s *GuestService) ownedEvent(ctx context.Context, actor identity.Identity, eventID string, mutating bool) (*models.Event, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	ev, err := s.events.GetByID(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("get event: %w", err)
	}
	if ev == nil {
		return nil, ErrEventNotFound
	}
	if ev.OwnerID != actor.UserID {
		if mutating {
			return nil, ErrPermissionDenied
		}
		return nil, ErrEventNotFound
	}
	return ev, nil
}

// checkCapacity re-counts yes attendees when an edit adds seats.
func (s *GuestService) checkCapacity(ctx context.Context, ev *models.Event, before, after *models.Guest) error {
	if ev.MaxGuests <= 0 || after.Response != models.RSVPYes {
		return nil
	}
	if before.Response == models.RSVPYes && after.Attendees <= before.Attendees {
		return nil
	}
	guests, err := s.guests.ListByEvent(ctx, ev.ID)
	if err != nil {
		return fmt.Errorf("list guests: %w", err)
	}
	attending := 0
	for _, g := range guests {
		if g.ID != after.ID && g.Response == models.RSVPYes {
			attending += g.Attendees
		}
	}
	if attending+after.Attendees > ev.MaxGuests {
		return ErrEventFull
	}
	return nil
}

func validateGuest(g *models.Guest) error {
	fe, err := check(g)
	if err != nil {
		return fmt.Errorf("validate guest: %w", err)
	}
	return fe.err()
}

func (s *GuestService) publish(ctx context.Context, eventID string) {
	if s.broker == nil {
		return
	}
	if err := s.broker.Publish(ctx, realtime.GuestsTopic(eventID)); err != nil {
		logger.WithContext(ctx).Error("publish guest change",
			zap.String("event_id", eventID),
			zap.Error(err),
		)
	}
}
