package service

import (
	"context"
	"sync"

	"github.com/raphaelgruber/complycheck/internal/models"
)

// broadcaster fans task updates out to subscribers. Each subscriber owns a
// buffered channel; when it is full the oldest update is discarded so
// Publish never blocks. After a terminal update every channel is closed.
type broadcaster struct {
	mu     sync.Mutex
	size   int
	subs   map[*subscription]struct{}
	closed bool
	final  models.TaskUpdate
}

type subscription struct {
	ch   chan models.TaskUpdate
	done chan struct{}
}

func newBroadcaster(size int) *broadcaster {
	if size < 1 {
		size = 1
	}
	return &broadcaster{size: size, subs: make(map[*subscription]struct{})}
}

// subscribe registers a subscriber whose first update is current. The
// channel closes after the terminal update or when ctx ends.
func (b *broadcaster) subscribe(ctx context.Context, current models.TaskUpdate) <-chan models.TaskUpdate {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		ch := make(chan models.TaskUpdate, 1)
		ch <- b.final
		close(ch)
		return ch
	}

	sub := &subscription{
		ch:   make(chan models.TaskUpdate, b.size),
		done: make(chan struct{}),
	}
	sub.ch <- current
	b.subs[sub] = struct{}{}

	go func() {
		select {
		case <-ctx.Done():
			b.unsubscribe(sub)
		case <-sub.done:
		}
	}()
	return sub.ch
}

func (b *broadcaster) unsubscribe(sub *subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.subs[sub]; ok {
		delete(b.subs, sub)
		close(sub.ch)
		close(sub.done)
	}
}

// publish delivers u to every subscriber. A terminal update closes the
// broadcaster.
func (b *broadcaster) publish(u models.TaskUpdate) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}

	for sub := range b.subs {
		offer(sub.ch, u)
	}

	if u.Terminal {
		b.closed = true
		b.final = u
		for sub := range b.subs {
			close(sub.ch)
			close(sub.done)
		}
		clear(b.subs)
	}
}

// offer sends u, discarding the oldest queued update when ch is full. The
// caller must be the only sender.
func offer(ch chan models.TaskUpdate, u models.TaskUpdate) {
	for {
		select {
		case ch <- u:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}

func (b *broadcaster) subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}
