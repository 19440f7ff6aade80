package realtime

import (
	"context"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
)

const redisChannelPrefix = "dishevent:"

// RedisBroker fans notifications out across server instances with Redis pub/sub.
type RedisBroker struct {
	client *redis.Client
}

func NewRedisBroker(client *redis.Client) *RedisBroker {
	return &RedisBroker{client: client}
}

func channels(topics []string) []string {
	out := make([]string, len(topics))
	for i, t := range topics {
		out[i] = redisChannelPrefix + t
	}
	return out
}

func (b *RedisBroker) Publish(ctx context.Context, topics ...string) error {
	pipe := b.client.Pipeline()
	for _, ch := range channels(topics) {
		pipe.Publish(ctx, ch, "changed")
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("publish: %w", err)
	}
	return nil
}

// Subscribe returns once Redis has confirmed every channel, so a snapshot
// loaded afterwards cannot miss a change. A message that lands while the
// remaining confirmations are pending is kept as a notification.
func (b *RedisBroker) Subscribe(ctx context.Context, topics ...string) (Listener, error) {
	chans := uniqueChannels(topics)
	pubsub := b.client.Subscribe(ctx, chans...)
	pending := false
	for confirmed := 0; confirmed < len(chans); {
		msg, err := pubsub.Receive(ctx)
		if err != nil {
			_ = pubsub.Close()
			return nil, fmt.Errorf("subscribe: %w", err)
		}
		switch msg.(type) {
		case *redis.Subscription:
			confirmed++
		case *redis.Message:
			pending = true
		}
	}

	l := &redisListener{pubsub: pubsub, ch: make(chan struct{}, 1)}
	if pending {
		notify(l.ch)
	}
	go l.forward()
	return l, nil
}

// uniqueChannels prefixes topics and drops repeats.
func uniqueChannels(topics []string) []string {
	seen := make(map[string]bool, len(topics))
	out := make([]string, 0, len(topics))
	for _, ch := range channels(topics) {
		if !seen[ch] {
			seen[ch] = true
			out = append(out, ch)
		}
	}
	return out
}

func (b *RedisBroker) Ping(ctx context.Context) error {
	return b.client.Ping(ctx).Err()
}

func (b *RedisBroker) Close() error {
	return b.client.Close()
}

type redisListener struct {
	pubsub *redis.PubSub
	ch     chan struct{}
	once   sync.Once
}

func (l *redisListener) forward() {
	defer close(l.ch)
	for range l.pubsub.Channel() {
		notify(l.ch)
	}
}

func (l *redisListener) C() <-chan struct{} { return l.ch }

func (l *redisListener) Close() error {
	var err error
	l.once.Do(func() { err = l.pubsub.Close() })
	return err
}
