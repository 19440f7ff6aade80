package realtime

import (
	"context"
	"sync"
)

// MemoryBroker is an in-process Broker for tests and single-node runs.
type MemoryBroker struct {
	mu     sync.Mutex
	topics map[string]map[*memoryListener]struct{}
	closed bool
}

func NewMemoryBroker() *MemoryBroker {
	return &MemoryBroker{topics: make(map[string]map[*memoryListener]struct{})}
}

type memoryListener struct {
	broker *MemoryBroker
	topics []string
	ch     chan struct{}
	once   sync.Once
}

func (l *memoryListener) C() <-chan struct{} { return l.ch }

func (l *memoryListener) Close() error {
	l.once.Do(func() {
		l.broker.remove(l)
	})
	return nil
}

func (b *MemoryBroker) Publish(_ context.Context, topics ...string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrBrokerClosed
	}
	for _, t := range topics {
		for l := range b.topics[t] {
			notify(l.ch)
		}
	}
	return nil
}

func (b *MemoryBroker) Subscribe(_ context.Context, topics ...string) (Listener, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, ErrBrokerClosed
	}
	l := &memoryListener{broker: b, topics: topics, ch: make(chan struct{}, 1)}
	for _, t := range topics {
		set, ok := b.topics[t]
		if !ok {
			set = make(map[*memoryListener]struct{})
			b.topics[t] = set
		}
		set[l] = struct{}{}
	}
	return l, nil
}

func (b *MemoryBroker) remove(l *memoryListener) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, t := range l.topics {
		delete(b.topics[t], l)
		if len(b.topics[t]) == 0 {
			delete(b.topics, t)
		}
	}
	close(l.ch)
}

func (b *MemoryBroker) Ping(context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrBrokerClosed
	}
	return nil
}

// Close closes every remaining listener.
func (b *MemoryBroker) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	var open []*memoryListener
	for _, set := range b.topics {
		for l := range set {
			open = append(open, l)
		}
	}
	b.mu.Unlock()

	for _, l := range open {
		_ = l.Close()
	}
	return nil
}

// listeners reports how many listeners are attached to topic.
func (b *MemoryBroker) listeners(topic string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.topics[topic])
}
