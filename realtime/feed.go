package realtime

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/dishevent/dishevent-server/logger"
)

// LoadFunc produces the current snapshot for a feed.
type LoadFunc[T any] func(ctx context.Context) (T, error)

// Feed is a live subscription. It pushes a snapshot immediately and again
// after every notification on its topics. Only the newest unread snapshot is
// kept. Callers must Close it.
type Feed[T any] struct {
	updates  chan T
	listener Listener
	load     LoadFunc[T]
	cancel   context.CancelFunc
	done     chan struct{}
	once     sync.Once
}

// NewFeed subscribes first and loads second, so a change racing the initial
// load is still delivered.
func NewFeed[T any](ctx context.Context, broker Broker, load LoadFunc[T], topics ...string) (*Feed[T], error) {
	listener, err := broker.Subscribe(ctx, topics...)
	if err != nil {
		return nil, err
	}

	initial, err := load(ctx)
	if err != nil {
		_ = listener.Close()
		return nil, err
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	f := &Feed[T]{
		updates:  make(chan T, 1),
		listener: listener,
		load:     load,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
	f.updates <- initial
	go f.run(runCtx)
	return f, nil
}

// Updates is closed after Close.
func (f *Feed[T]) Updates() <-chan T {
	return f.updates
}

func (f *Feed[T]) run(ctx context.Context) {
	defer close(f.done)
	defer close(f.updates)
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-f.listener.C():
			if !ok {
				return
			}
			snapshot, err := f.load(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				logger.WithContext(ctx).Warn("feed reload failed", zap.Error(err))
				continue
			}
			f.push(ctx, snapshot)
		}
	}
}

func (f *Feed[T]) push(ctx context.Context, v T) {
	for {
		if ctx.Err() != nil {
			return
		}
		select {
		case f.updates <- v:
			return
		default:
			// Drop the stale snapshot the consumer has not read yet.
			select {
			case <-f.updates:
			default:
			}
		}
	}
}

// Close stops the feed and releases its listener. It is safe to call more than once.
func (f *Feed[T]) Close() {
	f.once.Do(func() {
		f.cancel()
		_ = f.listener.Close()
		<-f.done
	})
}
