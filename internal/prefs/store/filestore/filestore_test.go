package filestore_test

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/typedprefs/internal/prefs/store"
	"github.com/dshills/typedprefs/internal/prefs/store/filestore"
	"github.com/dshills/typedprefs/internal/prefs/store/yamlstore"
)

func TestNew_Validation(t *testing.T) {
	_, err := filestore.New("", yamlstore.Format{})
	assert.Error(t, err)

	_, err = filestore.New(filepath.Join(t.TempDir(), "p.yaml"), nil)
	assert.Error(t, err)
}

func TestNew_NameFromPath(t *testing.T) {
	s, err := filestore.New(filepath.Join(t.TempDir(), "editor.prefs.yaml"), yamlstore.Format{})
	require.NoError(t, err)
	assert.Equal(t, "editor.prefs", s.Name())
	assert.True(t, filepath.IsAbs(s.Path()))

	s, err = filestore.New(filepath.Join(t.TempDir(), "p.yaml"), yamlstore.Format{}, filestore.WithName("custom"))
	require.NoError(t, err)
	assert.Equal(t, "custom", s.Name())
}

func TestMissingFileIsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "prefs.yaml")
	s, err := filestore.New(path, yamlstore.Format{})
	require.NoError(t, err)

	all, err := s.All(context.Background())
	require.NoError(t, err)
	assert.Empty(t, all)

	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err), "reads must not create the file")

	require.NoError(t, s.Put(context.Background(), "k", store.Bool(true)))
	_, err = os.Stat(path)
	require.NoError(t, err, "first write creates parent directories and file")
}

func TestEmptyFileIsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prefs.yaml")
	require.NoError(t, os.WriteFile(path, []byte("\n  \n"), 0o644))

	s, err := filestore.New(path, yamlstore.Format{})
	require.NoError(t, err)
	all, err := s.All(context.Background())
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestObservesExternalEdits(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prefs.yaml")
	s, err := filestore.New(path, yamlstore.Format{})
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, "a", store.Int32(1)))

	content := "a:\n  kind: int32\n  value: 5\nb:\n  kind: string\n  value: added\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	all, err := s.All(ctx)
	require.NoError(t, err)
	assert.True(t, store.Int32(5).Equal(all["a"]))
	assert.True(t, store.String("added").Equal(all["b"]))
}

func TestInfersMissingKind(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prefs.yaml")
	content := "flag:\n  value: true\ncount:\n  value: 12\nratio:\n  value: 0.5\nname:\n  value: x\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	s, err := filestore.New(path, yamlstore.Format{})
	require.NoError(t, err)
	all, err := s.All(context.Background())
	require.NoError(t, err)

	assert.True(t, store.Bool(true).Equal(all["flag"]))
	assert.True(t, store.Int64(12).Equal(all["count"]))
	assert.True(t, store.Float32(0.5).Equal(all["ratio"]))
	assert.True(t, store.String("x").Equal(all["name"]))
}

func TestMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prefs.yaml")
	require.NoError(t, os.WriteFile(path, []byte("a: [unterminated\n"), 0o644))

	s, err := filestore.New(path, yamlstore.Format{})
	require.NoError(t, err)

	_, err = s.All(context.Background())
	assert.Error(t, err)
	assert.Error(t, s.Put(context.Background(), "k", store.Bool(true)), "writes must not clobber an unreadable file")

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "a: [unterminated\n", string(raw))
}

func TestBadKind(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prefs.yaml")
	require.NoError(t, os.WriteFile(path, []byte("a:\n  kind: int32\n  value: 99999999999\n"), 0o644))

	s, err := filestore.New(path, yamlstore.Format{})
	require.NoError(t, err)
	_, err = s.All(context.Background())
	assert.ErrorIs(t, err, store.ErrInvalidValue)
}

func TestNoTempFilesLeft(t *testing.T) {
	dir := t.TempDir()
	s, err := filestore.New(filepath.Join(dir, "prefs.yaml"), yamlstore.Format{})
	require.NoError(t, err)
	ctx := context.Background()

	for i := range 5 {
		require.NoError(t, s.Put(ctx, "k", store.Int32(int32(i))))
	}
	require.NoError(t, s.RemoveAll(ctx))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "prefs.yaml", entries[0].Name())
}

func TestConcurrentPuts(t *testing.T) {
	s, err := filestore.New(filepath.Join(t.TempDir(), "prefs.yaml"), yamlstore.Format{})
	require.NoError(t, err)
	ctx := context.Background()

	keys := []string{"a", "b", "c", "d", "e", "f", "g", "h"}
	var wg sync.WaitGroup
	for i, k := range keys {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, s.Put(ctx, k, store.Int32(int32(i))))
		}()
	}
	wg.Wait()

	all, err := s.All(ctx)
	require.NoError(t, err)
	assert.Len(t, all, len(keys), "no write may be lost")
}
