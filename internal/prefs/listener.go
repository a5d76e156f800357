package prefs

import (
	"errors"

	"go.uber.org/zap"

	"github.com/dshills/typedprefs/internal/prefs/notify"
)

// Subscription identifies a registered listener. Unsubscribe removes it.
type Subscription = notify.Subscription

// Listener receives changes of one preference.
type Listener[T any] interface {
	OnPreferenceChanged(item Item[T], oldValue, newValue T)
}

// ListenerFunc adapts a function to Listener. Function values cannot be
// compared, so every ListenerFunc registration is distinct; keep the
// returned Subscription to remove it.
type ListenerFunc[T any] func(item Item[T], oldValue, newValue T)

// OnPreferenceChanged implements Listener.
func (f ListenerFunc[T]) OnPreferenceChanged(item Item[T], oldValue, newValue T) {
	f(item, oldValue, newValue)
}

// AddListener registers l for changes of item. Listeners of one item are
// called in registration order.
//
// ErrMissingDescriptor is returned when item is not registered.
// ErrDuplicateListener is returned, together with the existing
// subscription, when an equal listener value is already registered for
// the item.
func AddListener[T any](h *Handler, item Item[T], l Listener[T]) (*Subscription, error) {
	if !h.HasPreference(item) {
		h.logger.Warn("cannot add listener for unregistered preference", zap.String("key", item.key))
		return nil, &PreferenceError{Key: item.key, Err: ErrMissingDescriptor}
	}

	var identity any = l
	if _, ok := l.(ListenerFunc[T]); ok {
		identity = nil
	}

	observer := func(c notify.Change) {
		oldValue, _ := c.OldValue.(T)
		newValue, _ := c.NewValue.(T)
		l.OnPreferenceChanged(item, oldValue, newValue)
	}

	sub, err := h.notifier.SubscribeKey(item.key, identity, observer)
	if errors.Is(err, notify.ErrDuplicate) {
		h.logger.Warn("listener already registered", zap.String("key", item.key))
		return sub, &PreferenceError{Key: item.key, Err: ErrDuplicateListener}
	}
	return sub, err
}

// RemoveListener removes the listener behind sub. Removing a listener
// twice is a no-op.
func (h *Handler) RemoveListener(sub *Subscription) {
	sub.Unsubscribe()
}

// RemoveAllListenersFor removes every listener of d.
func (h *Handler) RemoveAllListenersFor(d Descriptor) error {
	if !h.HasPreference(d) {
		h.logger.Warn("cannot remove listeners for unregistered preference", zap.String("key", d.Key()))
		return &PreferenceError{Key: d.Key(), Err: ErrMissingDescriptor}
	}
	h.notifier.UnsubscribeKey(d.Key())
	return nil
}

// RemoveAllListeners removes every listener and observer of the handler.
func (h *Handler) RemoveAllListeners() {
	h.notifier.UnsubscribeAll()
}

// SubscribeAll registers fn for every change the handler dispatches: each
// set that changes a value, after the preference's own listeners, and a
// reload event whenever ExternalChangeHook refreshes the cache.
func (h *Handler) SubscribeAll(fn func(notify.Change)) *Subscription {
	return h.notifier.Subscribe(fn)
}

// ListenerCount returns the number of listeners registered for d.
func (h *Handler) ListenerCount(d Descriptor) int {
	return h.notifier.Count(d.Key())
}
