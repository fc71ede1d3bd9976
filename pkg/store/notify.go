package store

import (
	"context"
	"sync"
)

// Broadcaster fans change signals out to in-process subscribers. Signals are
// coalesced: a subscriber that has not consumed the previous one misses
// nothing, because every signal means "re-read everything".
type Broadcaster struct {
	mu   sync.Mutex
	next int
	subs map[string]map[int]chan struct{}
}

func NewBroadcaster() *Broadcaster {
	return &Broadcaster{subs: make(map[string]map[int]chan struct{})}
}

// Listen registers a channel for path. The channel is primed with one
// pending signal.
func (b *Broadcaster) Listen(path string) (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)
	ch <- struct{}{}

	b.mu.Lock()
	id := b.next
	b.next++
	if b.subs[path] == nil {
		b.subs[path] = make(map[int]chan struct{})
	}
	b.subs[path][id] = ch
	b.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs[path], id)
			b.mu.Unlock()
		})
	}
}

// Notify signals every listener on path.
func (b *Broadcaster) Notify(path string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs[path] {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// Subscribe runs onChange on its own goroutine for every signal on path
// until ctx ends or the returned function is called. The returned function
// blocks until the goroutine has exited.
func (b *Broadcaster) Subscribe(ctx context.Context, path string, onChange func()) func() {
	ch, cancel := b.Listen(path)
	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			select {
			case <-ctx.Done():
				return
			case <-stop:
				return
			case <-ch:
				onChange()
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			cancel()
			close(stop)
			<-done
		})
	}
}
