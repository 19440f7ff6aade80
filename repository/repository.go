package repository

import (
	"context"
	"errors"

	"github.com/dishevent/dishevent-server/models"
)

var (
	// ErrStaleVersion is returned by a conditional save when the stored version moved on.
	ErrStaleVersion = errors.New("stored version does not match")
	// ErrCapacityExceeded is returned when a yes-RSVP would pass the event's guest limit.
	ErrCapacityExceeded = errors.New("guest capacity exceeded")
)

// EventRepository lookups return nil, nil when the row does not exist.
type EventRepository interface {
	Create(ctx context.Context, event *models.Event) error
	GetByID(ctx context.Context, id string) (*models.Event, error)
	ListByOwner(ctx context.Context, ownerID string) ([]models.Event, error)
	// Save writes the whole record. With expectedVersion set the write only
	// happens if the stored version still equals it.
	Save(ctx context.Context, event *models.Event, expectedVersion *int64) error
	// Delete removes the event and its guests together.
	Delete(ctx context.Context, id string) (bool, error)
	Ping(ctx context.Context) error
}

type GuestRepository interface {
	// Create inserts the guest. When maxGuests > 0 and the guest answered yes,
	// the insert fails with ErrCapacityExceeded if the yes-attendee total would pass it.
	Create(ctx context.Context, guest *models.Guest, maxGuests int) error
	GetByID(ctx context.Context, eventID, guestID string) (*models.Guest, error)
	ListByEvent(ctx context.Context, eventID string) ([]models.Guest, error)
	Save(ctx context.Context, guest *models.Guest) error
	Delete(ctx context.Context, eventID, guestID string) (bool, error)
}
