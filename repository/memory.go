package repository

import (
	"context"
	"sort"
	"sync"

	"github.com/dishevent/dishevent-server/models"
)

// MemoryStore keeps events and guests in process. It backs the service and
// handler tests and follows the same contracts as the gorm repositories.
type MemoryStore struct {
	mu     sync.Mutex
	events map[string]models.Event
	guests map[string]models.Guest
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		events: make(map[string]models.Event),
		guests: make(map[string]models.Guest),
	}
}

func (s *MemoryStore) Events() *MemoryEventRepository { return &MemoryEventRepository{s} }
func (s *MemoryStore) Guests() *MemoryGuestRepository { return &MemoryGuestRepository{s} }

func cloneEvent(e models.Event) models.Event {
	d := e.Details
	if d.Wedding != nil {
		w := *d.Wedding
		d.Wedding = &w
	}
	if d.Birthday != nil {
		b := *d.Birthday
		d.Birthday = &b
	}
	if d.Corporate != nil {
		c := *d.Corporate
		c.Agenda = append([]string(nil), c.Agenda...)
		d.Corporate = &c
	}
	e.Details = d
	e.Guests = nil
	return e
}

type MemoryEventRepository struct{ s *MemoryStore }

func (r *MemoryEventRepository) Create(_ context.Context, event *models.Event) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.events[event.ID] = cloneEvent(*event)
	return nil
}

func (r *MemoryEventRepository) GetByID(_ context.Context, id string) (*models.Event, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	e, ok := r.s.events[id]
	if !ok {
		return nil, nil
	}
	out := cloneEvent(e)
	return &out, nil
}

func (r *MemoryEventRepository) ListByOwner(_ context.Context, ownerID string) ([]models.Event, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []models.Event
	for _, e := range r.s.events {
		if e.OwnerID == ownerID {
			out = append(out, cloneEvent(e))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *MemoryEventRepository) Save(_ context.Context, event *models.Event, expectedVersion *int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if expectedVersion != nil {
		cur, ok := r.s.events[event.ID]
		if !ok || cur.Version != *expectedVersion {
			return ErrStaleVersion
		}
	}
	r.s.events[event.ID] = cloneEvent(*event)
	return nil
}

func (r *MemoryEventRepository) Delete(_ context.Context, id string) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.events[id]; !ok {
		return false, nil
	}
	delete(r.s.events, id)
	for gid, g := range r.s.guests {
		if g.EventID == id {
			delete(r.s.guests, gid)
		}
	}
	return true, nil
}

func (r *MemoryEventRepository) Ping(context.Context) error { return nil }

type MemoryGuestRepository struct{ s *MemoryStore }

func (r *MemoryGuestRepository) Create(_ context.Context, guest *models.Guest, maxGuests int) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if maxGuests > 0 && guest.Response == models.RSVPYes {
		attending := 0
		for _, g := range r.s.guests {
			if g.EventID == guest.EventID && g.Response == models.RSVPYes {
				attending += g.Attendees
			}
		}
		if attending+guest.Attendees > maxGuests {
			return ErrCapacityExceeded
		}
	}
	r.s.guests[guest.ID] = *guest
	return nil
}

func (r *MemoryGuestRepository) GetByID(_ context.Context, eventID, guestID string) (*models.Guest, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	g, ok := r.s.guests[guestID]
	if !ok || g.EventID != eventID {
		return nil, nil
	}
	return &g, nil
}

func (r *MemoryGuestRepository) ListByEvent(_ context.Context, eventID string) ([]models.Guest, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []models.Guest
	for _, g := range r.s.guests {
		if g.EventID == eventID {
			out = append(out, g)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].InvitedAt.Before(out[j].InvitedAt) })
	return out, nil
}

func (r *MemoryGuestRepository) Save(_ context.Context, guest *models.Guest) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.guests[guest.ID] = *guest
	return nil
}

func (r *MemoryGuestRepository) Delete(_ context.Context, eventID, guestID string) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	g, ok := r.s.guests[guestID]
	if !ok || g.EventID != eventID {
		return false, nil
	}
	delete(r.s.guests, guestID)
	return true, nil
}

var (
	_ EventRepository = (*GormEventRepository)(nil)
	_ GuestRepository = (*GormGuestRepository)(nil)
	_ EventRepository = (*MemoryEventRepository)(nil)
	_ GuestRepository = (*MemoryGuestRepository)(nil)
)
