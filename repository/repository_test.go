package repository

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/dishevent/dishevent-server/models"
)

type repos struct {
	events EventRepository
	guests GuestRepository
}

func newEvent(owner string) *models.Event {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return &models.Event{
		ID:         uuid.NewString(),
		OwnerID:    owner,
		Kind:       models.KindWedding,
		Name:       "Anna & Ben",
		Date:       "2027-06-01",
		MaxGuests:  3,
		Visibility: models.VisibilityPublic,
		Status:     models.StatusActive,
		Plan:       models.PlanFree,
		Theme:      models.DefaultTheme,
		Details: models.EventDetails{
			Kind:    models.KindWedding,
			Wedding: &models.WeddingDetails{BrideName: "Anna"},
		},
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func newGuest(eventID string, resp models.RSVPResponse, attendees int) *models.Guest {
	return &models.Guest{
		ID:        uuid.NewString(),
		EventID:   eventID,
		Name:      "Guest",
		Email:     "guest@example.com",
		Response:  resp,
		Attendees: attendees,
		InvitedAt: time.Now().UTC(),
	}
}

func exerciseRepositories(t *testing.T, r repos) {
	ctx := context.Background()
	owner := "owner-" + uuid.NewString()

	ev := newEvent(owner)
	require.NoError(t, r.events.Create(ctx, ev))

	t.Run("get and list", func(t *testing.T) {
		got, err := r.events.GetByID(ctx, ev.ID)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, "Anna", got.Details.Wedding.BrideName)

		missing, err := r.events.GetByID(ctx, uuid.NewString())
		require.NoError(t, err)
		assert.Nil(t, missing)

		list, err := r.events.ListByOwner(ctx, owner)
		require.NoError(t, err)
		assert.Len(t, list, 1)
	})

	t.Run("conditional save", func(t *testing.T) {
		stale := int64(99)
		ev.Name = "Renamed"
		assert.ErrorIs(t, r.events.Save(ctx, ev, &stale), ErrStaleVersion)

		current := ev.Version
		ev.Version++
		require.NoError(t, r.events.Save(ctx, ev, &current))

		got, err := r.events.GetByID(ctx, ev.ID)
		require.NoError(t, err)
		assert.Equal(t, "Renamed", got.Name)
		assert.Equal(t, int64(2), got.Version)
	})

	t.Run("capacity", func(t *testing.T) {
		require.NoError(t, r.guests.Create(ctx, newGuest(ev.ID, models.RSVPYes, 2), ev.MaxGuests))
		require.NoError(t, r.guests.Create(ctx, newGuest(ev.ID, models.RSVPNo, 5), ev.MaxGuests))
		assert.ErrorIs(t, r.guests.Create(ctx, newGuest(ev.ID, models.RSVPYes, 2), ev.MaxGuests), ErrCapacityExceeded)
		require.NoError(t, r.guests.Create(ctx, newGuest(ev.ID, models.RSVPYes, 1), ev.MaxGuests))

		list, err := r.guests.ListByEvent(ctx, ev.ID)
		require.NoError(t, err)
		assert.Len(t, list, 3)
		assert.Equal(t, 3, models.AttendingCount(list))
	})

	t.Run("guest delete", func(t *testing.T) {
		g := newGuest(ev.ID, models.RSVPMaybe, 1)
		require.NoError(t, r.guests.Create(ctx, g, 0))

		ok, err := r.guests.Delete(ctx, "other-event", g.ID)
		require.NoError(t, err)
		assert.False(t, ok)

		ok, err = r.guests.Delete(ctx, ev.ID, g.ID)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("event delete cascades", func(t *testing.T) {
		ok, err := r.events.Delete(ctx, ev.ID)
		require.NoError(t, err)
		assert.True(t, ok)

		guests, err := r.guests.ListByEvent(ctx, ev.ID)
		require.NoError(t, err)
		assert.Empty(t, guests)

		ok, err = r.events.Delete(ctx, ev.ID)
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

func TestMemoryRepositories(t *testing.T) {
	s := NewMemoryStore()
	exerciseRepositories(t, repos{events: s.Events(), guests: s.Guests()})
}

func TestMemoryRepository_ReturnsCopies(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	ev := newEvent("o1")
	require.NoError(t, s.Events().Create(ctx, ev))

	got, err := s.Events().GetByID(ctx, ev.ID)
	require.NoError(t, err)
	got.Details.Wedding.BrideName = "changed"

	again, err := s.Events().GetByID(ctx, ev.ID)
	require.NoError(t, err)
	assert.Equal(t, "Anna", again.Details.Wedding.BrideName)
}

func TestGormRepositories_Integration(t *testing.T) {
	if os.Getenv("INTEGRATION_TEST") != "true" {
		t.Skip("set INTEGRATION_TEST=true to run against PostgreSQL")
	}
	dsn := os.Getenv("DATABASE_DSN")
	if dsn == "" {
		dsn = "host=localhost port=5432 user=postgres password=postgres dbname=dishevent_test sslmode=disable"
	}
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Event{}, &models.Guest{}))

	events := NewGormEventRepository(db)
	require.NoError(t, events.Ping(context.Background()))
	exerciseRepositories(t, repos{events: events, guests: NewGormGuestRepository(db)})
}
