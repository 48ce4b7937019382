// Package storage provides the asynchronous key/value areas that hold the cached
// remote config ("local") and the user's rule toggles ("sync").
package storage

import (
	"context"
	"sync"
)

// Area names
const (
	AreaLocal = "local"
	AreaSync  = "sync"
)

// Change describes a single key mutation. New is nil when the key was removed.
type Change struct {
	Area string
	Key  string
	Old  []byte
	New  []byte
}

// Store is a key/value area. Values are raw JSON documents.
type Store interface {
	// Get returns the values of the requested keys that exist
	Get(ctx context.Context, keys ...string) (map[string][]byte, error)

	// Set writes every item, notifying listeners after the write
	Set(ctx context.Context, items map[string][]byte) error

	// Remove deletes the keys, notifying listeners for the ones that existed
	Remove(ctx context.Context, keys ...string) error

	// OnChanged registers a listener and returns a function that unregisters it
	OnChanged(fn func(Change)) (unsubscribe func())

	Close() error
}

// notifier fans changes out to listeners in registration order
type notifier struct {
	mu        sync.Mutex
	next      int
	listeners map[int]func(Change)
	order     []int
}

func (n *notifier) subscribe(fn func(Change)) func() {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.listeners == nil {
		n.listeners = make(map[int]func(Change))
	}
	id := n.next
	n.next++
	n.listeners[id] = fn
	n.order = append(n.order, id)

	return func() {
		n.mu.Lock()
		defer n.mu.Unlock()
		delete(n.listeners, id)
		for i, v := range n.order {
			if v == id {
				n.order = append(n.order[:i], n.order[i+1:]...)
				break
			}
		}
	}
}

func (n *notifier) emit(changes []Change) {
	if len(changes) == 0 {
		return
	}

	n.mu.Lock()
	fns := make([]func(Change), 0, len(n.order))
	for _, id := range n.order {
		fns = append(fns, n.listeners[id])
	}
	n.mu.Unlock()

	// Listeners run outside the lock so they may write back to the store
	for _, c := range changes {
		for _, fn := range fns {
			fn(c)
		}
	}
}
