package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"github.com/bytedance/sonic"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/dshills/typedprefs/internal/prefs/notify"
	"github.com/dshills/typedprefs/internal/prefs/store"
	"github.com/dshills/typedprefs/internal/prefs/store/filestore"
	"github.com/dshills/typedprefs/internal/prefs/watcher"
)

func newWatchCmd(provider *AppProvider) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Print changes made to the preference file",
		Long: `Watch the preference file and print every value that changes when
another process edits it. Runs until interrupted. Requires the toml or
yaml backend.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := provider.Get(cmd.Context())
			if err != nil {
				return err
			}
			return runWatch(cmd.Context(), app)
		},
	}
}

func runWatch(ctx context.Context, app *App) error {
	fs, ok := app.Store.(*filestore.Store)
	if !ok {
		return fmt.Errorf("watch needs a file backend, not %s", app.Config.Backend)
	}
	if err := os.MkdirAll(filepath.Dir(fs.Path()), 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", filepath.Dir(fs.Path()), err)
	}

	w := watcher.New(
		watcher.WithDebounce(app.Config.WatchDebounce),
		watcher.WithLogger(app.Logger),
	)
	if err := w.Watch(fs.Path()); err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)

	hook := app.Handler.ExternalChangeHook(gctx)
	w.OnChange(func(ev watcher.Event) {
		app.Logger.Debug("preference file changed",
			zap.String("path", ev.Path),
			zap.Stringer("op", ev.Op))
		hook()
	})

	changes := make(chan notify.Change, 16)
	sub := app.Handler.SubscribeAll(func(c notify.Change) {
		select {
		case changes <- c:
		case <-gctx.Done():
		}
	})
	defer sub.Unsubscribe()

	snapshot := app.Handler.Cached()

	g.Go(func() error {
		if err := w.Start(gctx); err != nil {
			return fmt.Errorf("watching %s: %w", fs.Path(), err)
		}
		fmt.Fprintf(app.Out, "Watching %s\n", fs.Path())
		<-gctx.Done()
		w.Stop()
		return nil
	})

	g.Go(func() error {
		for {
			select {
			case <-gctx.Done():
				return nil
			case c := <-changes:
				snapshot = printChange(app, c, snapshot)
			}
		}
	})

	return g.Wait()
}

// printChange writes one line per changed key and returns the snapshot to
// compare the next reload against.
func printChange(app *App, c notify.Change, before map[string]store.Value) map[string]store.Value {
	after := app.Handler.Cached()

	if c.Type == notify.ChangeSet {
		fmt.Fprintf(app.Out, "%s: %s -> %s\n", c.Key, displayAny(c.OldValue), displayAny(c.NewValue))
		return after
	}

	for _, key := range diffSnapshots(before, after) {
		fmt.Fprintf(app.Out, "%s: %s -> %s\n", key, displayStored(before, key), displayStored(after, key))
	}
	return after
}

// diffSnapshots returns the sorted keys whose stored value differs between
// before and after, including keys present in only one of them.
func diffSnapshots(before, after map[string]store.Value) []string {
	var keys []string
	for key, a := range after {
		if b, ok := before[key]; !ok || !b.Equal(a) {
			keys = append(keys, key)
		}
	}
	for key := range before {
		if _, ok := after[key]; !ok {
			keys = append(keys, key)
		}
	}
	slices.Sort(keys)
	return keys
}

func displayStored(snapshot map[string]store.Value, key string) string {
	v, ok := snapshot[key]
	if !ok {
		return "(unset)"
	}
	return v.String()
}

func displayAny(v any) string {
	s, err := sonic.ConfigStd.MarshalToString(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return s
}
