package services

import (
	"context"
	"fmt"

	"github.com/dishevent/dishevent-server/identity"
	"github.com/dishevent/dishevent-server/models"
	"github.com/dishevent/dishevent-server/repository"
	"github.com/dishevent/dishevent-server/utils"
)

// AccessService decides who may view a public event page.
type AccessService struct {
	events repository.EventRepository
	secret string
}

func NewAccessService(events repository.EventRepository, secret string) *AccessService {
	return &AccessService{events: events, secret: secret}
}

func isOwner(viewer identity.Identity, ev *models.Event) bool {
	return viewer.UserID != "" && viewer.UserID == ev.OwnerID
}

// Check passes when the event has no gate, the viewer owns it, or the
// access token was issued for this event.
func (s *AccessService) Check(_ context.Context, viewer identity.Identity, ev *models.Event, accessToken string) error {
	if !ev.IsGated() || isOwner(viewer, ev) {
		return nil
	}
	if err := utils.VerifyEventAccessToken(s.secret, accessToken, ev.ID); err != nil {
		return ErrPasswordRequired
	}
	return nil
}

// View loads an event for its public page. Private events are reported as
// missing to anyone but the owner.
func (s *AccessService) View(ctx context.Context, viewer identity.Identity, eventID, accessToken string) (*models.Event, error) {
	ev, err := s.visible(ctx, viewer, eventID)
	if err != nil {
		return nil, err
	}
	if err := s.Check(ctx, viewer, ev, accessToken); err != nil {
		return nil, err
	}
	return ev, nil
}

// Unlock compares the password and returns a token for the event_access cookie.
func (s *AccessService) Unlock(ctx context.Context, viewer identity.Identity, eventID, password string) (string, error) {
	ev, err := s.visible(ctx, viewer, eventID)
	if err != nil {
		return "", err
	}
	if ev.IsGated() && !utils.CheckPassword(ev.Protection.PasswordHash, password) {
		return "", ErrWrongPassword
	}
	token, err := utils.GenerateEventAccessToken(s.secret, ev.ID)
	if err != nil {
		return "", fmt.Errorf("issue access token: %w", err)
	}
	return token, nil
}

func (s *AccessService) visible(ctx context.Context, viewer identity.Identity, eventID string) (*models.Event, error) {
	ev, err := s.events.GetByID(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("get event: %w", err)
	}
	if ev == nil {
		return nil, ErrEventNotFound
	}
	if ev.Visibility == models.VisibilityPrivate && !isOwner(viewer, ev) {
		return nil, ErrEventNotFound
	}
	return ev, nil
}
