package appprefs

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/typedprefs/internal/prefs"
	"github.com/dshills/typedprefs/internal/prefs/store"
	"github.com/dshills/typedprefs/internal/prefs/store/tomlstore"
)

func TestDeclarations(t *testing.T) {
	all := All()
	require.Len(t, all, 3)
	assert.Equal(t, "THEME", all[0].Key())
	assert.Equal(t, "BOOLEAN_SETTING", all[1].Key())
	assert.Equal(t, "COMPLEX_SETTING", all[2].Key())

	assert.True(t, ThemePref.IsPrimitive())
	assert.Equal(t, store.KindInt32, ThemePref.Kind())
	assert.True(t, BooleanSetting.IsPrimitive())
	assert.False(t, ComplexSetting.IsPrimitive())
	for _, d := range all {
		assert.NotEmpty(t, d.Description(), d.Key())
	}
}

func TestThemeString(t *testing.T) {
	assert.Equal(t, "system", ThemeSystem.String())
	assert.Equal(t, "light", ThemeLight.String())
	assert.Equal(t, "dark", ThemeDark.String())
	assert.Equal(t, "unknown", Theme(9).String())
}

func TestDefaults(t *testing.T) {
	ctx := context.Background()
	h, err := New(ctx, store.NewMemory("demo"))
	require.NoError(t, err)

	theme, err := prefs.Get(ctx, h, ThemePref)
	require.NoError(t, err)
	assert.Equal(t, ThemeSystem, theme)

	flag, err := prefs.Get(ctx, h, BooleanSetting)
	require.NoError(t, err)
	assert.True(t, flag)

	c, err := prefs.Get(ctx, h, ComplexSetting)
	require.NoError(t, err)
	assert.Equal(t, Complex{Name: "Complex ^", Number: 10, List: []int{1, 2, 3}}, c)
}

func TestPersistsInTOMLFile(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "demo.toml")

	st, err := tomlstore.Open(path)
	require.NoError(t, err)
	h, err := New(ctx, st)
	require.NoError(t, err)

	var seen []Theme
	_, err = prefs.AddListener(h, ThemePref, prefs.ListenerFunc[Theme](func(_ prefs.Item[Theme], _, newValue Theme) {
		seen = append(seen, newValue)
	}))
	require.NoError(t, err)

	require.NoError(t, prefs.Set(ctx, h, ThemePref, ThemeDark))
	require.NoError(t, prefs.Set(ctx, h, ComplexSetting, Complex{Name: "saved", List: []int{}}))
	assert.Equal(t, []Theme{ThemeDark}, seen)

	reopened, err := tomlstore.Open(path)
	require.NoError(t, err)
	h2, err := New(ctx, reopened)
	require.NoError(t, err)
	assert.Equal(t, "demo", h2.Name())

	theme, err := prefs.Get(ctx, h2, ThemePref)
	require.NoError(t, err)
	assert.Equal(t, ThemeDark, theme)

	c, err := prefs.Get(ctx, h2, ComplexSetting)
	require.NoError(t, err)
	assert.Equal(t, "saved", c.Name)
	assert.Empty(t, c.List)
}
