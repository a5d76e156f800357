// Package storetest provides a conformance suite that every store.Store
// implementation runs from its own tests.
package storetest

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/typedprefs/internal/prefs/store"
)

// Factory returns a fresh, empty store. Stores returned by one call must
// not share data with stores returned by another call.
type Factory func(t *testing.T) store.Store

// Run executes the conformance suite against stores built by newStore.
func Run(t *testing.T, newStore Factory) {
	t.Helper()

	t.Run("EmptyAll", func(t *testing.T) {
		s := newStore(t)
		all, err := s.All(context.Background())
		require.NoError(t, err)
		assert.Empty(t, all)
	})

	t.Run("GetMissing", func(t *testing.T) {
		s := newStore(t)
		_, ok, err := s.Get(context.Background(), "missing")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("RoundTripKinds", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		values := map[string]store.Value{
			"bool.false":    store.Bool(false),
			"bool.true":     store.Bool(true),
			"int32.min":     store.Int32(math.MinInt32),
			"int32.max":     store.Int32(math.MaxInt32),
			"int64.min":     store.Int64(math.MinInt64),
			"int64.max":     store.Int64(math.MaxInt64),
			"float32.small": store.Float32(math.SmallestNonzeroFloat32),
			"float32.max":   store.Float32(math.MaxFloat32),
			"float32.neg":   store.Float32(-1.5),
			"string.empty":  store.String(""),
			"string.text":   store.String("héllo \"world\"\nline"),
			"string.json":   store.String(`{"name":"x","list":[1,2,3]}`),
		}
		for k, v := range values {
			require.NoError(t, s.Put(ctx, k, v), "Put(%s)", k)
		}

		for k, want := range values {
			got, ok, err := s.Get(ctx, k)
			require.NoError(t, err)
			require.True(t, ok, "key %s missing", k)
			assert.True(t, want.Equal(got), "Get(%s) = %v (%s), want %v (%s)", k, got, got.Kind(), want, want.Kind())
		}

		all, err := s.All(ctx)
		require.NoError(t, err)
		require.Len(t, all, len(values))
		for k, want := range values {
			assert.True(t, want.Equal(all[k]), "All()[%s] = %v, want %v", k, all[k], want)
		}
	})

	t.Run("Overwrite", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		require.NoError(t, s.Put(ctx, "k", store.Int32(1)))
		require.NoError(t, s.Put(ctx, "k", store.String("two")))

		got, ok, err := s.Get(ctx, "k")
		require.NoError(t, err)
		require.True(t, ok)
		assert.True(t, store.String("two").Equal(got))
	})

	t.Run("Remove", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		require.NoError(t, s.Put(ctx, "a", store.Bool(true)))
		require.NoError(t, s.Put(ctx, "b", store.Bool(false)))

		require.NoError(t, s.Remove(ctx, "a"))
		require.NoError(t, s.Remove(ctx, "never-set"))

		_, ok, err := s.Get(ctx, "a")
		require.NoError(t, err)
		assert.False(t, ok)

		all, err := s.All(ctx)
		require.NoError(t, err)
		assert.Len(t, all, 1)
		assert.Contains(t, all, "b")
	})

	t.Run("RemoveAll", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		for _, k := range []string{"a", "b", "c"} {
			require.NoError(t, s.Put(ctx, k, store.String(k)))
		}
		require.NoError(t, s.RemoveAll(ctx))

		all, err := s.All(ctx)
		require.NoError(t, err)
		assert.Empty(t, all)

		// Store stays usable after RemoveAll.
		require.NoError(t, s.Put(ctx, "a", store.Int64(7)))
		got, ok, err := s.Get(ctx, "a")
		require.NoError(t, err)
		require.True(t, ok)
		assert.True(t, store.Int64(7).Equal(got))
	})

	t.Run("AllReturnsCopy", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		require.NoError(t, s.Put(ctx, "a", store.Int32(1)))

		all, err := s.All(ctx)
		require.NoError(t, err)
		all["a"] = store.Int32(99)
		all["b"] = store.Int32(2)

		got, _, err := s.Get(ctx, "a")
		require.NoError(t, err)
		assert.True(t, store.Int32(1).Equal(got))
		_, ok, err := s.Get(ctx, "b")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("RejectsInvalid", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		assert.ErrorIs(t, s.Put(ctx, "", store.Bool(true)), store.ErrInvalidKey)
		assert.ErrorIs(t, s.Put(ctx, "k", store.Value{}), store.ErrInvalidValue)
	})

	t.Run("DottedKeysAreFlat", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		require.NoError(t, s.Put(ctx, "ui.theme", store.Int32(1)))
		require.NoError(t, s.Put(ctx, "ui", store.String("flat")))

		all, err := s.All(ctx)
		require.NoError(t, err)
		assert.Len(t, all, 2)
		assert.True(t, store.Int32(1).Equal(all["ui.theme"]))
		assert.True(t, store.String("flat").Equal(all["ui"]))
	})
}
