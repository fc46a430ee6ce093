package discovery

import (
	"slices"
	"sync"
	"sync/atomic"
)

// snapshotItem is satisfied by the host records trackers publish.
type snapshotItem[T any] interface {
	Equal(T) bool
}

// feed holds the published snapshot and fans changes out to subscribers.
// Readers always see a complete snapshot; subscribers receive the latest one
// and may skip intermediate versions if they fall behind.
type feed[T snapshotItem[T]] struct {
	current atomic.Pointer[[]T]

	mu   sync.Mutex
	next int
	subs map[int]chan []T
}

func (f *feed[T]) load() []T {
	if p := f.current.Load(); p != nil {
		return *p
	}
	return nil
}

// publish stores next and notifies subscribers when it differs by content
// from the current snapshot. It reports whether a change was published.
func (f *feed[T]) publish(next []T) bool {
	if slices.EqualFunc(f.load(), next, func(a, b T) bool { return a.Equal(b) }) {
		return false
	}
	f.current.Store(&next)

	f.mu.Lock()
	defer f.mu.Unlock()
	for _, ch := range f.subs {
		offer(ch, next)
	}
	return true
}

// subscribe returns a channel primed with the current snapshot.
func (f *feed[T]) subscribe() (<-chan []T, func()) {
	ch := make(chan []T, 1)

	f.mu.Lock()
	if f.subs == nil {
		f.subs = make(map[int]chan []T)
	}
	id := f.next
	f.next++
	f.subs[id] = ch
	ch <- f.load()
	f.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			f.mu.Lock()
			delete(f.subs, id)
			f.mu.Unlock()
		})
	}
}

// offer replaces whatever is buffered in ch with v.
func offer[V any](ch chan V, v V) {
	select {
	case ch <- v:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- v:
	default:
	}
}
