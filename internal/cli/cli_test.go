package cli

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/dshills/typedprefs/internal/appprefs"
	"github.com/dshills/typedprefs/internal/config"
	"github.com/dshills/typedprefs/internal/prefs"
	"github.com/dshills/typedprefs/internal/prefs/store"
	"github.com/dshills/typedprefs/internal/prefs/store/tomlstore"
)

// syncBuffer is a bytes.Buffer safe for concurrent writers and readers.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func setupTestApp(t *testing.T, cfg *config.Config) (*App, *syncBuffer) {
	t.Helper()
	if cfg == nil {
		cfg = config.Default()
		cfg.Backend = config.BackendMemory
		cfg.Namespace = "test"
	}
	cfg.LogLevel = "error"

	out := &syncBuffer{}
	app, err := NewApp(context.Background(), cfg, out, &syncBuffer{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.Close() })
	return app, out
}

func execute(t *testing.T, cmd *cobra.Command, args ...string) error {
	t.Helper()
	cmd.SetArgs(args)
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	return cmd.Execute()
}

func TestGet_Default(t *testing.T) {
	app, out := setupTestApp(t, nil)

	require.NoError(t, execute(t, newGetCmd(NewTestProvider(app)), "THEME"))
	assert.Equal(t, "0\n", out.String())

	sv, ok, err := app.Store.Get(context.Background(), "THEME")
	require.NoError(t, err)
	require.True(t, ok, "get writes the default to the store")
	assert.True(t, store.Int32(0).Equal(sv))
}

func TestGet_Complex(t *testing.T) {
	app, out := setupTestApp(t, nil)

	require.NoError(t, execute(t, newGetCmd(NewTestProvider(app)), "COMPLEX_SETTING"))
	assert.Contains(t, out.String(), `"name": "Complex ^"`)
	assert.Contains(t, out.String(), `"number": 10`)
}

func TestGet_Field(t *testing.T) {
	app, out := setupTestApp(t, nil)
	provider := NewTestProvider(app)

	require.NoError(t, execute(t, newGetCmd(provider), "COMPLEX_SETTING", "--field", "list.1"))
	assert.Equal(t, "2\n", out.String())

	err := execute(t, newGetCmd(provider), "COMPLEX_SETTING", "--field", "missing")
	assert.ErrorContains(t, err, "not found")

	err = execute(t, newGetCmd(provider), "THEME", "--field", "x")
	assert.ErrorContains(t, err, "not a JSON value")
}

func TestGet_JSON(t *testing.T) {
	app, out := setupTestApp(t, nil)
	provider := NewTestProvider(app)
	provider.JSON = true

	require.NoError(t, execute(t, newGetCmd(provider), "BOOLEAN_SETTING"))
	doc := out.String()
	require.True(t, gjson.Valid(doc), doc)
	assert.Equal(t, "BOOLEAN_SETTING", gjson.Get(doc, "key").String())
	assert.True(t, gjson.Get(doc, "value").Bool())
}

func TestGet_Unknown(t *testing.T) {
	app, _ := setupTestApp(t, nil)

	err := execute(t, newGetCmd(NewTestProvider(app)), "NOPE")
	assert.ErrorIs(t, err, prefs.ErrUnknownPreference)
}

func TestSet(t *testing.T) {
	ctx := context.Background()
	app, out := setupTestApp(t, nil)
	provider := NewTestProvider(app)

	require.NoError(t, execute(t, newSetCmd(provider), "THEME", "2"))
	assert.Equal(t, "Set THEME = 2\n", out.String())

	theme, err := prefs.Get(ctx, app.Handler, appprefs.ThemePref)
	require.NoError(t, err)
	assert.Equal(t, appprefs.ThemeDark, theme)

	require.NoError(t, execute(t, newSetCmd(provider), "BOOLEAN_SETTING", "false"))
	flag, err := prefs.Get(ctx, app.Handler, appprefs.BooleanSetting)
	require.NoError(t, err)
	assert.False(t, flag)

	require.NoError(t, execute(t, newSetCmd(provider), "COMPLEX_SETTING", `{"name":"json","number":3,"list":[]}`))
	c, err := prefs.Get(ctx, app.Handler, appprefs.ComplexSetting)
	require.NoError(t, err)
	assert.Equal(t, "json", c.Name)
	assert.Equal(t, 3, c.Number)

	assert.ErrorIs(t, execute(t, newSetCmd(provider), "THEME", "dark"), store.ErrInvalidValue)
	assert.ErrorIs(t, execute(t, newSetCmd(provider), "COMPLEX_SETTING", "{"), prefs.ErrCodec)
}

func TestSet_Field(t *testing.T) {
	ctx := context.Background()
	app, _ := setupTestApp(t, nil)
	provider := NewTestProvider(app)

	require.NoError(t, execute(t, newSetCmd(provider), "COMPLEX_SETTING", "New name", "--field", "name"))
	require.NoError(t, execute(t, newSetCmd(provider), "COMPLEX_SETTING", "5", "--field", "list.0"))

	c, err := prefs.Get(ctx, app.Handler, appprefs.ComplexSetting)
	require.NoError(t, err)
	assert.Equal(t, appprefs.Complex{Name: "New name", Number: 10, List: []int{5, 2, 3}}, c)

	err = execute(t, newSetCmd(provider), "COMPLEX_SETTING", "many", "--field", "number")
	assert.ErrorIs(t, err, prefs.ErrCodec, "a string does not decode into an int field")

	err = execute(t, newSetCmd(provider), "THEME", "1", "--field", "x")
	assert.ErrorContains(t, err, "needs a JSON value")
}

func TestSet_NotifiesListeners(t *testing.T) {
	app, _ := setupTestApp(t, nil)

	var got []appprefs.Theme
	_, err := prefs.AddListener(app.Handler, appprefs.ThemePref,
		prefs.ListenerFunc[appprefs.Theme](func(_ prefs.Item[appprefs.Theme], _, newValue appprefs.Theme) {
			got = append(got, newValue)
		}))
	require.NoError(t, err)

	provider := NewTestProvider(app)
	require.NoError(t, execute(t, newSetCmd(provider), "THEME", "1"))
	require.NoError(t, execute(t, newSetCmd(provider), "THEME", "1"))
	assert.Equal(t, []appprefs.Theme{appprefs.ThemeLight}, got)
}

func TestClear(t *testing.T) {
	ctx := context.Background()
	app, out := setupTestApp(t, nil)
	provider := NewTestProvider(app)

	require.NoError(t, execute(t, newSetCmd(provider), "THEME", "2"))
	require.NoError(t, execute(t, newClearCmd(provider), "THEME"))
	assert.Contains(t, out.String(), "Cleared THEME")

	_, ok, err := app.Store.Get(ctx, "THEME")
	require.NoError(t, err)
	assert.False(t, ok)

	assert.ErrorIs(t, execute(t, newClearCmd(provider), "NOPE"), prefs.ErrUnknownPreference)
}

func TestClearAll(t *testing.T) {
	ctx := context.Background()
	app, _ := setupTestApp(t, nil)
	provider := NewTestProvider(app)

	require.NoError(t, execute(t, newSetCmd(provider), "THEME", "2"))
	require.NoError(t, app.Store.Put(ctx, "stray", store.String("x")))

	err := execute(t, newClearAllCmd(provider))
	assert.ErrorContains(t, err, "--force")

	require.NoError(t, execute(t, newClearAllCmd(provider), "--force"))
	all, err := app.Store.All(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestList(t *testing.T) {
	ctx := context.Background()
	app, out := setupTestApp(t, nil)
	provider := NewTestProvider(app)

	require.NoError(t, app.Store.Put(ctx, "stray", store.String("x")))
	require.NoError(t, app.Handler.RefreshCache(ctx))

	require.NoError(t, execute(t, newListCmd(provider)))
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "THEME"))
	assert.Contains(t, lines[1], "true")
	assert.Contains(t, lines[2], `{"name":"Complex ^","number":10,"list":[1,2,3]}`)
	assert.NotContains(t, out.String(), "stray")

	require.NoError(t, execute(t, newListCmd(provider), "--all"))
	assert.Contains(t, out.String(), "(unregistered)")
}

func TestList_JSON(t *testing.T) {
	app, out := setupTestApp(t, nil)
	provider := NewTestProvider(app)
	provider.JSON = true

	require.NoError(t, execute(t, newListCmd(provider)))
	doc := out.String()
	require.True(t, gjson.Valid(doc), doc)
	assert.Equal(t, int64(0), gjson.Get(doc, "THEME").Int())
	assert.True(t, gjson.Get(doc, "BOOLEAN_SETTING").Bool())
	assert.Equal(t, "Complex ^", gjson.Get(doc, "COMPLEX_SETTING.name").String())
}

func TestList_SQLiteShowsUpdateTimes(t *testing.T) {
	cfg := config.Default()
	cfg.Backend = config.BackendSQLite
	cfg.Path = filepath.Join(t.TempDir(), "prefs.db")
	cfg.Namespace = "demo"
	app, out := setupTestApp(t, cfg)

	require.NoError(t, execute(t, newListCmd(NewTestProvider(app))))
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 3)
	for _, line := range lines {
		assert.Regexp(t, `\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}`, line)
	}
}

func TestKeys(t *testing.T) {
	app, out := setupTestApp(t, nil)

	require.NoError(t, execute(t, newKeysCmd(NewTestProvider(app))))
	text := out.String()
	assert.Contains(t, text, "BOOLEAN_SETTING")
	assert.Contains(t, text, "int32")
	assert.Contains(t, text, "encoded")
	assert.Contains(t, text, "demo boolean switch")

	all, err := app.Store.All(context.Background())
	require.NoError(t, err)
	assert.Empty(t, all, "keys does not materialize defaults")
}

func TestKeys_JSON(t *testing.T) {
	app, out := setupTestApp(t, nil)
	provider := NewTestProvider(app)
	provider.JSON = true

	require.NoError(t, execute(t, newKeysCmd(provider)))
	doc := out.String()
	require.True(t, gjson.Valid(doc), doc)
	assert.Equal(t, `["THEME","BOOLEAN_SETTING","COMPLEX_SETTING"]`, gjson.Get(doc, "#.key").Raw)
	assert.Equal(t, "int32", gjson.Get(doc, "0.kind").String())
	assert.Equal(t, int64(10), gjson.Get(doc, "2.default.number").Int())
}

func TestWatch_RequiresFileBackend(t *testing.T) {
	app, _ := setupTestApp(t, nil)

	err := execute(t, newWatchCmd(NewTestProvider(app)))
	assert.ErrorContains(t, err, "file backend")
}

func TestWatch_PrintsExternalChanges(t *testing.T) {
	cfg := config.Default()
	cfg.Path = filepath.Join(t.TempDir(), "demo.toml")
	cfg.WatchDebounce = 10 * time.Millisecond
	app, out := setupTestApp(t, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cmd := newWatchCmd(NewTestProvider(app))
	cmd.SetArgs(nil)
	done := make(chan error, 1)
	go func() { done <- cmd.ExecuteContext(ctx) }()

	require.Eventually(t, func() bool {
		return strings.Contains(out.String(), "Watching")
	}, 5*time.Second, 10*time.Millisecond)

	other, err := tomlstore.Open(cfg.Path)
	require.NoError(t, err)
	require.NoError(t, other.Put(context.Background(), "THEME", store.Int32(2)))

	require.Eventually(t, func() bool {
		return strings.Contains(out.String(), "THEME: (unset) -> 2")
	}, 5*time.Second, 10*time.Millisecond, out.String())

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watch did not stop after cancel")
	}
}

func TestDiffSnapshots(t *testing.T) {
	before := map[string]store.Value{
		"same":    store.Int32(1),
		"changed": store.String("a"),
		"removed": store.Bool(true),
	}
	after := map[string]store.Value{
		"same":    store.Int32(1),
		"changed": store.String("b"),
		"added":   store.Float32(1.5),
	}
	assert.Equal(t, []string{"added", "changed", "removed"}, diffSnapshots(before, after))
	assert.Empty(t, diffSnapshots(after, after))
}

func TestEscapeKey(t *testing.T) {
	assert.Equal(t, "THEME", escapeKey("THEME"))
	assert.Equal(t, `ui\.theme`, escapeKey("ui.theme"))
	assert.Equal(t, `a\*b\?`, escapeKey("a*b?"))

	doc := `{"ui.theme":1}`
	assert.Equal(t, int64(1), gjson.Get(doc, escapeKey("ui.theme")).Int())
}

func TestSetField(t *testing.T) {
	doc, err := setField(`{"a":1}`, "a", "2")
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":2}`, doc)

	doc, err = setField(doc, "b", "text")
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":2,"b":"text"}`, doc)

	doc, err = setField(doc, "c", `[1,2]`)
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":2,"b":"text","c":[1,2]}`, doc)
}

func TestOpenStore(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	tests := []struct {
		backend config.Backend
		path    string
		name    string
	}{
		{config.BackendMemory, "", "ns"},
		{config.BackendTOML, filepath.Join(dir, "a.toml"), "a"},
		{config.BackendYAML, filepath.Join(dir, "b.yaml"), "b"},
		{config.BackendSQLite, filepath.Join(dir, "c.db"), "ns"},
	}
	for _, tt := range tests {
		t.Run(string(tt.backend), func(t *testing.T) {
			cfg := config.Default()
			cfg.Backend = tt.backend
			cfg.Path = tt.path
			cfg.Namespace = "ns"

			st, closeStore, err := OpenStore(ctx, cfg)
			require.NoError(t, err)
			defer closeStore()

			assert.Equal(t, tt.name, st.Name())
			require.NoError(t, st.Put(ctx, "k", store.Bool(true)))
			v, ok, err := st.Get(ctx, "k")
			require.NoError(t, err)
			require.True(t, ok)
			assert.True(t, store.Bool(true).Equal(v))
		})
	}
}

func TestProvider_FlagsOverrideEnvironment(t *testing.T) {
	t.Setenv("PREFS_BACKEND", "memory")
	t.Setenv("PREFS_NAMESPACE", "fromenv")
	t.Setenv("PREFS_LOG_LEVEL", "error")

	p := &AppProvider{Out: &bytes.Buffer{}, Err: &bytes.Buffer{}}
	app, err := p.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "fromenv", app.Handler.Name())
	require.NoError(t, p.Close())

	p = &AppProvider{Namespace: "fromflag", Out: &bytes.Buffer{}, Err: &bytes.Buffer{}}
	app, err = p.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "fromflag", app.Handler.Name())
	require.NoError(t, p.Close())

	p = &AppProvider{Backend: "etcd"}
	_, err = p.Get(context.Background())
	assert.ErrorIs(t, err, config.ErrInvalidConfig)
}

func TestRootCmd_Wiring(t *testing.T) {
	root := NewRootCmd(&AppProvider{})
	var names []string
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	assert.ElementsMatch(t, []string{"get", "set", "clear", "clear-all", "list", "keys", "watch"}, names)
	assert.NotNil(t, root.PersistentFlags().Lookup("backend"))
	assert.NotNil(t, root.PersistentFlags().Lookup("json"))
}

func TestRootCmd_Metrics(t *testing.T) {
	app, out := setupTestApp(t, nil)
	errOut, ok := app.Err.(*syncBuffer)
	require.True(t, ok)

	root := NewRootCmd(NewTestProvider(app))
	require.NoError(t, execute(t, root, "get", "THEME"))
	assert.Empty(t, errOut.String(), "counters are printed only on request")

	require.NoError(t, execute(t, root, "--metrics", "get", "THEME"))
	assert.Equal(t, "0\n0\n", out.String())
	metrics := errOut.String()
	assert.Contains(t, metrics, "# TYPE typedprefs_get_total counter")
	assert.Contains(t, metrics, `typedprefs_get_total{namespace="test"} 2`)
	assert.Contains(t, metrics, `typedprefs_materialize_total{namespace="test"} 1`)
}

func TestKeys_JSONFields(t *testing.T) {
	app, out := setupTestApp(t, nil)
	provider := NewTestProvider(app)
	provider.JSON = true

	require.NoError(t, execute(t, newKeysCmd(provider)))
	doc := out.String()
	assert.Equal(t, "appprefs.Theme", gjson.Get(doc, "0.type").String())
	assert.Equal(t, "demo boolean switch", gjson.Get(doc, "1.description").String())
	assert.Equal(t, "encoded", gjson.Get(doc, "2.kind").String())
	assert.True(t, gjson.Get(doc, "1.default").Bool())
}
