// Package notify dispatches preference change events to observers.
//
// Observers subscribe either to one key or to every key. Observers of a key
// are called in the order they subscribed, followed by the any-key
// observers. Delivery happens on the caller's goroutine after the
// notifier's lock has been released, so observers may subscribe,
// unsubscribe or trigger further notifications.
package notify

import (
	"errors"
	"reflect"
	"slices"
	"sync"

	"github.com/google/uuid"
)

// ErrDuplicate is returned by SubscribeKey when an observer with the same
// identity is already subscribed to the key.
var ErrDuplicate = errors.New("notify: duplicate observer")

// ChangeType represents the type of change.
type ChangeType int

const (
	// ChangeSet indicates a value was set to a different value.
	ChangeSet ChangeType = iota

	// ChangeReload indicates the whole namespace was re-read after an
	// external modification.
	ChangeReload
)

// String returns the change type name.
func (c ChangeType) String() string {
	switch c {
	case ChangeSet:
		return "set"
	case ChangeReload:
		return "reload"
	default:
		return "unknown"
	}
}

// Change is a change event.
type Change struct {
	// Key is the preference key. Empty for reload events.
	Key string

	// Type is the type of change.
	Type ChangeType

	// OldValue is the previous value.
	OldValue any

	// NewValue is the new value.
	NewValue any

	// Source identifies where the change came from.
	Source string
}

// Observer is called when a change occurs.
type Observer func(change Change)

type entry struct {
	id       uuid.UUID
	identity any
	observer Observer
}

// Subscription represents an active observer subscription.
type Subscription struct {
	id       uuid.UUID
	key      string
	notifier *Notifier
}

// ID returns the subscription's unique id.
func (s *Subscription) ID() uuid.UUID { return s.id }

// Key returns the subscribed key, or "" for an any-key subscription.
func (s *Subscription) Key() string { return s.key }

// Unsubscribe removes this subscription. It is safe to call more than once.
func (s *Subscription) Unsubscribe() {
	if s != nil && s.notifier != nil {
		s.notifier.unsubscribe(s.id, s.key)
	}
}

// Notifier manages change subscriptions.
type Notifier struct {
	mu sync.RWMutex

	// Observers of every key, in subscription order.
	global []entry

	// Per-key observers, in subscription order.
	keyed map[string][]entry
}

// New creates a new Notifier.
func New() *Notifier {
	return &Notifier{
		keyed: make(map[string][]entry),
	}
}

// Subscribe registers an observer for changes to every key.
func (n *Notifier) Subscribe(observer Observer) *Subscription {
	n.mu.Lock()
	defer n.mu.Unlock()

	id := uuid.New()
	n.global = append(n.global, entry{id: id, observer: observer})
	return &Subscription{id: id, notifier: n}
}

// SubscribeKey registers an observer for changes to key.
//
// identity distinguishes observers for duplicate detection. When identity
// is a comparable value equal to the identity of an observer already
// subscribed to key, ErrDuplicate is returned together with the existing
// subscription. A nil or non-comparable identity never collides.
func (n *Notifier) SubscribeKey(key string, identity any, observer Observer) (*Subscription, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if isComparable(identity) {
		for _, e := range n.keyed[key] {
			if isComparable(e.identity) && e.identity == identity {
				return &Subscription{id: e.id, key: key, notifier: n}, ErrDuplicate
			}
		}
	}

	id := uuid.New()
	n.keyed[key] = append(n.keyed[key], entry{id: id, identity: identity, observer: observer})
	return &Subscription{id: id, key: key, notifier: n}, nil
}

// UnsubscribeKey removes every observer of key.
func (n *Notifier) UnsubscribeKey(key string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	delete(n.keyed, key)
}

// UnsubscribeAll removes every observer, keyed and global.
func (n *Notifier) UnsubscribeAll() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.global = nil
	clear(n.keyed)
}

// Count returns the number of observers subscribed to key.
func (n *Notifier) Count(key string) int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return len(n.keyed[key])
}

// Len returns the total number of subscriptions.
func (n *Notifier) Len() int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	total := len(n.global)
	for _, entries := range n.keyed {
		total += len(entries)
	}
	return total
}

// Notify delivers change to the observers of change.Key, then to the
// any-key observers. Reload events only reach any-key observers.
func (n *Notifier) Notify(change Change) {
	n.mu.RLock()
	var observers []Observer
	if change.Type != ChangeReload {
		for _, e := range n.keyed[change.Key] {
			observers = append(observers, e.observer)
		}
	}
	for _, e := range n.global {
		observers = append(observers, e.observer)
	}
	n.mu.RUnlock()

	// Call observers outside the lock
	for _, obs := range observers {
		obs(change)
	}
}

// NotifySet is a convenience method for set changes.
func (n *Notifier) NotifySet(key string, oldValue, newValue any, source string) {
	n.Notify(Change{
		Key:      key,
		Type:     ChangeSet,
		OldValue: oldValue,
		NewValue: newValue,
		Source:   source,
	})
}

// NotifyReload is a convenience method for reload events.
func (n *Notifier) NotifyReload(source string) {
	n.Notify(Change{
		Type:   ChangeReload,
		Source: source,
	})
}

// unsubscribe removes an observer by ID.
func (n *Notifier) unsubscribe(id uuid.UUID, key string) {
	n.mu.Lock()
	defer n.mu.Unlock()

	match := func(e entry) bool { return e.id == id }
	if key == "" {
		n.global = slices.DeleteFunc(n.global, match)
		return
	}
	entries := slices.DeleteFunc(n.keyed[key], match)
	if len(entries) == 0 {
		delete(n.keyed, key)
		return
	}
	n.keyed[key] = entries
}

// isComparable reports whether v can be compared with == without panicking.
func isComparable(v any) bool {
	return v != nil && reflect.ValueOf(v).Comparable()
}
