// Package realtime carries change notifications between writers and live
// subscriptions. Notifications hold no payload: a subscriber reloads the
// current state when poked.
package realtime

import (
	"context"
	"errors"
)

var ErrBrokerClosed = errors.New("realtime: broker closed")

// Broker fans change notifications out to listeners by topic.
type Broker interface {
	Publish(ctx context.Context, topics ...string) error
	Subscribe(ctx context.Context, topics ...string) (Listener, error)
	Ping(ctx context.Context) error
	Close() error
}

// Listener receives a coalesced signal for every publish on its topics.
// C is closed after Close.
type Listener interface {
	C() <-chan struct{}
	Close() error
}

func OwnerTopic(ownerID string) string { return "events:owner:" + ownerID }

func EventTopic(eventID string) string { return "events:" + eventID }

func GuestsTopic(eventID string) string { return "events:" + eventID + ":guests" }

// notify performs a non-blocking send; a pending signal already covers this one.
func notify(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}
