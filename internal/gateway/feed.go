package gateway

import (
	"sort"
	"sync"
)

// Feed fans values out to subscribers. Handlers run synchronously on the
// sending goroutine, in subscription order, outside the feed's lock.
type Feed[T any] struct {
	mu   sync.Mutex
	next int
	subs map[int]func(T)
}

// Subscribe registers fn until the returned subscription is released.
func (f *Feed[T]) Subscribe(fn func(T)) *Subscription {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.subs == nil {
		f.subs = make(map[int]func(T))
	}
	id := f.next
	f.next++
	f.subs[id] = fn

	return &Subscription{release: func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		delete(f.subs, id)
	}}
}

// Send delivers v to every current subscriber.
func (f *Feed[T]) Send(v T) {
	f.mu.Lock()
	ids := make([]int, 0, len(f.subs))
	for id := range f.subs {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	handlers := make([]func(T), 0, len(ids))
	for _, id := range ids {
		handlers = append(handlers, f.subs[id])
	}
	f.mu.Unlock()

	for _, fn := range handlers {
		fn(v)
	}
}

// Subscription is a handle to a registered handler.
type Subscription struct {
	once    sync.Once
	release func()
}

// Unsubscribe releases the handler. Safe to call more than once, and on nil.
func (s *Subscription) Unsubscribe() {
	if s == nil {
		return
	}
	s.once.Do(s.release)
}
