// Package prefs provides typed, defaulted preferences on top of an untyped
// key-value store.
//
// Preferences are declared once as Items and registered with a Handler
// bound to one store namespace:
//
//	var Theme = prefs.NewItem("THEME", int32(0))
//
//	h, err := prefs.NewWithItems(ctx, st, []prefs.Descriptor{Theme})
//	theme, err := prefs.Get(ctx, h, Theme)
//	err = prefs.Set(ctx, h, Theme, 2)
//
// # Storage
//
// Values of bool, signed integer, float32 and string kinds are stored as
// the primitive of the same kind, with int8 and int16 widened to int32 and
// int to int64. Other values are encoded to text by the
// item's Codec, JSON by default. The first read of a preference with no
// stored value writes the default to the store.
//
// # Cache
//
// The handler keeps a full snapshot of the namespace and replaces it after
// every write it performs. Writes made by other processes are picked up by
// RefreshCache or the callback returned by ExternalChangeHook.
//
// # Listeners
//
// AddListener registers a typed callback for one item. Set notifies the
// item's listeners, in registration order, only when the new value differs
// from the old one. Clear and ClearAll never notify.
package prefs
