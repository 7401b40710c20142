// Package registry maps protocol identifiers to listeners.
package registry

import (
	"fmt"
	"reflect"
	"sync"

	"go.uber.org/zap"

	"github.com/muurk/lightwave/internal/logging"
)

// Registry maps external identifiers (room/device pairs, serials, feature
// ids) to listeners. It is safe for concurrent use from receive loops and
// from callers registering or unregistering devices.
//
// Registering an id twice replaces the previous listener. Callers that care
// should Unregister first. Listeners are matched with Same, so listener
// values that cannot be compared with == never match and never panic.
type Registry[K comparable, L any] struct {
	name string

	mu        sync.RWMutex
	listeners map[K]L
}

// New creates an empty registry. name only appears in log output.
func New[K comparable, L any](name string) *Registry[K, L] {
	return &Registry[K, L]{
		name:      name,
		listeners: make(map[K]L),
	}
}

// Register associates id with listener and returns the listener it
// replaced, if any.
func (r *Registry[K, L]) Register(id K, listener L) (previous L, replaced bool) {
	r.mu.Lock()
	previous, replaced = r.listeners[id]
	r.listeners[id] = listener
	r.mu.Unlock()

	if replaced && !Same(previous, listener) {
		logging.Warn("Listener replaced",
			zap.String("registry", r.name),
			zap.String("id", fmt.Sprint(id)),
		)
	}
	return previous, replaced
}

// Unregister removes id. It reports whether id was registered.
func (r *Registry[K, L]) Unregister(id K) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, ok := r.listeners[id]
	delete(r.listeners, id)
	return ok
}

// UnregisterListener removes every id registered to listener and returns
// how many were removed.
func (r *Registry[K, L]) UnregisterListener(listener L) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for id, l := range r.listeners {
		if Same(l, listener) {
			delete(r.listeners, id)
			removed++
		}
	}
	return removed
}

// Lookup returns the listener registered for id.
func (r *Registry[K, L]) Lookup(id K) (L, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	l, ok := r.listeners[id]
	return l, ok
}

// Len returns the number of registered ids
func (r *Registry[K, L]) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.listeners)
}

// IDs returns a snapshot of the registered ids in no particular order.
func (r *Registry[K, L]) IDs() []K {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]K, 0, len(r.listeners))
	for id := range r.listeners {
		ids = append(ids, id)
	}
	return ids
}

// Same reports whether a and b are the same listener. Values whose dynamic
// type cannot be compared with == (slices, maps, funcs, or structs and
// interfaces holding them) are never the same, even as themselves.
func Same[L any](a, b L) bool {
	va, vb := reflect.ValueOf(&a).Elem(), reflect.ValueOf(&b).Elem()
	if !va.Comparable() || !vb.Comparable() {
		return false
	}
	return any(a) == any(b)
}
