package prefs

import (
	"context"
	"fmt"
	"maps"
	"sync"

	"go.uber.org/zap"

	"github.com/dshills/typedprefs/internal/prefs/notify"
	"github.com/dshills/typedprefs/internal/prefs/store"
)

// Handler is the registry of typed preferences for one store namespace.
// It keeps a snapshot of the store in memory, materializes defaults on
// first read and notifies listeners when a value changes.
//
// A Handler is safe for concurrent use. Change events are queued in the
// order their writes reached the store and delivered one at a time, after
// the handler's lock has been released. The Set that starts delivery runs
// the listeners on its goroutine and returns once the queue is empty. A
// Set made from inside a listener, or while another goroutine is
// delivering, returns after queueing its events; the delivering goroutine
// runs them next. Listeners therefore never overlap and never observe
// changes out of order.
type Handler struct {
	mu sync.Mutex

	store store.Store
	items map[string]Descriptor
	order []string
	cache map[string]store.Value

	notifier *notify.Notifier
	logger   *zap.Logger
	metrics  *metrics

	// Pending change events, guarded by qmu. Events are queued while mu
	// is held so the queue follows store write order.
	qmu      sync.Mutex
	queue    []func()
	draining bool
}

// New creates a Handler bound to st and loads its cache.
func New(ctx context.Context, st store.Store, opts ...Option) (*Handler, error) {
	o := options{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}

	h := &Handler{
		store:    st,
		items:    make(map[string]Descriptor),
		cache:    make(map[string]store.Value),
		notifier: notify.New(),
		logger:   o.logger.With(zap.String("namespace", st.Name())),
	}
	if o.registerer != nil {
		h.metrics = newMetrics(o.registerer, st.Name())
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.refreshLocked(ctx); err != nil {
		return nil, err
	}
	return h, nil
}

// NewWithItems creates a Handler bound to st and registers items.
func NewWithItems(ctx context.Context, st store.Store, items []Descriptor, opts ...Option) (*Handler, error) {
	h, err := New(ctx, st, opts...)
	if err != nil {
		return nil, err
	}
	if err := h.Register(items...); err != nil {
		return nil, err
	}
	return h, nil
}

// Name returns the namespace of the bound store.
func (h *Handler) Name() string { return h.store.Name() }

// Store returns the bound store.
func (h *Handler) Store() store.Store { return h.store }

// Register adds items to the handler. Registering an item again is a
// no-op. If any item has an empty key, or reuses a registered key with a
// different type, codec or default, nothing is registered and the error is
// returned.
func (h *Handler) Register(items ...Descriptor) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	pending := make(map[string]Descriptor, len(items))
	for _, d := range items {
		key := d.Key()
		if key == "" {
			return ErrInvalidKey
		}
		existing, ok := h.items[key]
		if !ok {
			existing, ok = pending[key]
		}
		if ok {
			if !sameDescriptor(existing, d) {
				return &PreferenceError{Key: key, Err: ErrDuplicateKey}
			}
			continue
		}
		pending[key] = d
	}

	for _, d := range items {
		if _, ok := pending[d.Key()]; !ok {
			continue
		}
		delete(pending, d.Key())
		h.items[d.Key()] = d
		h.order = append(h.order, d.Key())
	}
	return nil
}

// HasPreference reports whether d is registered with this handler.
func (h *Handler) HasPreference(d Descriptor) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.registeredLocked(d)
}

// DescriptorByKey returns the registered descriptor for key.
func (h *Handler) DescriptorByKey(key string) (Descriptor, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	d, ok := h.items[key]
	return d, ok
}

// Items returns the registered descriptors in registration order.
func (h *Handler) Items() []Descriptor {
	h.mu.Lock()
	defer h.mu.Unlock()

	out := make([]Descriptor, 0, len(h.order))
	for _, key := range h.order {
		out = append(out, h.items[key])
	}
	return out
}

// Cached returns a copy of the cached store contents, including keys that
// are not registered with the handler.
func (h *Handler) Cached() map[string]store.Value {
	h.mu.Lock()
	defer h.mu.Unlock()
	return maps.Clone(h.cache)
}

// Get returns the value of item. When the store has no value for the item,
// its default is written to the store first and returned.
func Get[T any](ctx context.Context, h *Handler, item Item[T]) (T, error) {
	var zero T

	h.mu.Lock()
	defer h.mu.Unlock()

	sv, err := h.readLocked(ctx, item)
	if err != nil {
		return zero, err
	}
	v, err := item.codec.Decode(sv)
	if err != nil {
		h.metrics.fail("get")
		return zero, withKey(err, item.key)
	}
	return v, nil
}

// Set stores value for item. Listeners of the item are notified when the
// previous value differs from value; storing an equal value rewrites the
// store without notifying.
func Set[T any](ctx context.Context, h *Handler, item Item[T], value T) error {
	return h.set(ctx, item, value)
}

// Value is the type-erased form of Get.
func (h *Handler) Value(ctx context.Context, d Descriptor) (any, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	sv, err := h.readLocked(ctx, d)
	if err != nil {
		return nil, err
	}
	v, err := d.decodeAny(sv)
	if err != nil {
		h.metrics.fail("get")
		return nil, err
	}
	return v, nil
}

// SetValue is the type-erased form of Set. value must have the
// preference's type.
func (h *Handler) SetValue(ctx context.Context, d Descriptor, value any) error {
	return h.set(ctx, d, value)
}

// Raw returns the stored form of d's value, materializing the default if
// needed.
func (h *Handler) Raw(ctx context.Context, d Descriptor) (store.Value, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.readLocked(ctx, d)
}

// Clear removes d's value from the store. The next read returns the
// default. Listeners are not notified.
func (h *Handler) Clear(ctx context.Context, d Descriptor) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.registeredLocked(d) {
		h.metrics.fail("clear")
		return unknownPreference(d.Key())
	}
	h.logger.Debug("clearing value", zap.String("key", d.Key()))
	if err := h.store.Remove(ctx, d.Key()); err != nil {
		h.metrics.fail("clear")
		return fmt.Errorf("removing %q: %w", d.Key(), err)
	}
	return h.refreshLocked(ctx)
}

// ClearAll removes every value in the namespace, including keys that are
// not registered. Listeners are not notified.
func (h *Handler) ClearAll(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.logger.Debug("clearing all values")
	if err := h.store.RemoveAll(ctx); err != nil {
		h.metrics.fail("clear_all")
		return fmt.Errorf("removing all values: %w", err)
	}
	return h.refreshLocked(ctx)
}

// RefreshCache reloads the cache from the store. Use it after the store
// was modified by another writer.
func (h *Handler) RefreshCache(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.refreshLocked(ctx)
}

// ExternalChangeHook returns a callback for collaborators that detect
// out-of-band modifications of the store, such as a file watcher. The
// callback reloads the cache and sends a reload event to any-key
// observers. Failures are logged.
func (h *Handler) ExternalChangeHook(ctx context.Context) func() {
	return func() {
		h.mu.Lock()
		if err := h.refreshLocked(ctx); err != nil {
			h.mu.Unlock()
			h.logger.Error("reloading after external change failed", zap.Error(err))
			return
		}
		h.logger.Debug("reloaded after external change")
		h.enqueueLocked(func() { h.notifier.NotifyReload("external") })
		h.mu.Unlock()
		h.dispatch()
	}
}

// set is the shared implementation of Set and SetValue.
func (h *Handler) set(ctx context.Context, d Descriptor, value any) error {
	h.mu.Lock()

	key := d.Key()
	if !h.registeredLocked(d) {
		h.mu.Unlock()
		h.metrics.fail("set")
		return unknownPreference(key)
	}

	sv, err := d.encodeAny(value)
	if err != nil {
		h.mu.Unlock()
		h.metrics.fail("set")
		return err
	}

	old, oldSV, err := h.oldValueLocked(ctx, d)
	if err != nil {
		h.mu.Unlock()
		return err
	}

	h.logger.Debug("setting new value", zap.String("key", key))
	h.metrics.set()
	if err := h.store.Put(ctx, key, sv); err != nil {
		h.mu.Unlock()
		h.metrics.fail("set")
		return fmt.Errorf("writing %q: %w", key, err)
	}
	if err := h.refreshLocked(ctx); err != nil {
		h.mu.Unlock()
		return err
	}
	// Values are compared in stored form, so NaN equals NaN and state the
	// codec drops never counts as a change.
	if !oldSV.Equal(sv) {
		h.enqueueLocked(func() { h.notifier.NotifySet(key, old, value, "set") })
	}
	h.mu.Unlock()

	h.dispatch()
	return nil
}

// enqueueLocked queues the delivery of a change event. h.mu must be held.
func (h *Handler) enqueueLocked(deliver func()) {
	h.metrics.notify()
	h.qmu.Lock()
	h.queue = append(h.queue, deliver)
	h.qmu.Unlock()
}

// dispatch delivers queued events unless another call is already doing so.
func (h *Handler) dispatch() {
	h.qmu.Lock()
	if h.draining {
		h.qmu.Unlock()
		return
	}
	h.draining = true
	h.qmu.Unlock()

	done := false
	defer func() {
		// A panicking listener must not stall later deliveries.
		if !done {
			h.qmu.Lock()
			h.draining = false
			h.qmu.Unlock()
		}
	}()

	for {
		h.qmu.Lock()
		if len(h.queue) == 0 {
			h.queue = nil
			h.draining = false
			done = true
			h.qmu.Unlock()
			return
		}
		deliver := h.queue[0]
		h.queue[0] = nil
		h.queue = h.queue[1:]
		h.qmu.Unlock()

		deliver()
	}
}

// oldValueLocked returns the current value of d and its stored form for
// change detection. A stored value that no longer decodes is reported as
// the default so that it can be overwritten.
func (h *Handler) oldValueLocked(ctx context.Context, d Descriptor) (any, store.Value, error) {
	sv, err := h.readLocked(ctx, d)
	if err != nil {
		return nil, store.Value{}, err
	}
	old, err := d.decodeAny(sv)
	if err != nil {
		h.logger.Warn("replacing undecodable value", zap.String("key", d.Key()), zap.Error(err))
		def := d.DefaultAny()
		defSV, err := d.encodeAny(def)
		if err != nil {
			return nil, store.Value{}, err
		}
		return def, defSV, nil
	}
	return old, sv, nil
}

// readLocked returns the stored value of d, writing the encoded default
// first if the store has none.
func (h *Handler) readLocked(ctx context.Context, d Descriptor) (store.Value, error) {
	key := d.Key()
	if !h.registeredLocked(d) {
		h.metrics.fail("get")
		return store.Value{}, unknownPreference(key)
	}

	h.logger.Debug("retrieving value", zap.String("key", key))
	h.metrics.get()
	if sv, ok := h.cache[key]; ok {
		return sv, nil
	}

	h.logger.Debug("materializing default", zap.String("key", key))
	sv, err := d.encodeAny(d.DefaultAny())
	if err != nil {
		h.metrics.fail("get")
		return store.Value{}, err
	}
	if err := h.store.Put(ctx, key, sv); err != nil {
		h.metrics.fail("get")
		return store.Value{}, fmt.Errorf("writing default for %q: %w", key, err)
	}
	h.metrics.materialize()
	if err := h.refreshLocked(ctx); err != nil {
		return store.Value{}, err
	}
	if cached, ok := h.cache[key]; ok {
		return cached, nil
	}
	return sv, nil
}

func (h *Handler) refreshLocked(ctx context.Context) error {
	all, err := h.store.All(ctx)
	if err != nil {
		h.metrics.fail("refresh")
		return fmt.Errorf("loading %s: %w", h.store.Name(), err)
	}
	h.cache = all
	h.metrics.refresh()
	return nil
}

func (h *Handler) registeredLocked(d Descriptor) bool {
	registered, ok := h.items[d.Key()]
	return ok && sameDescriptor(registered, d)
}
