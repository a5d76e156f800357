// Package cli implements the prefsctl command-line interface.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/dshills/typedprefs/internal/appprefs"
	"github.com/dshills/typedprefs/internal/config"
	"github.com/dshills/typedprefs/internal/logging"
	"github.com/dshills/typedprefs/internal/prefs"
	"github.com/dshills/typedprefs/internal/prefs/store"
	"github.com/dshills/typedprefs/internal/prefs/store/sqlitestore"
	"github.com/dshills/typedprefs/internal/prefs/store/tomlstore"
	"github.com/dshills/typedprefs/internal/prefs/store/yamlstore"
)

// App holds the state shared by all commands.
type App struct {
	Handler *prefs.Handler
	Store   store.Store
	Config  *config.Config
	Logger  *zap.Logger
	Metrics *prometheus.Registry
	Out     io.Writer
	Err     io.Writer

	closers []func() error
}

// NewApp opens the store selected by cfg and registers the application
// preferences with a handler bound to it.
func NewApp(ctx context.Context, cfg *config.Config, out, errOut io.Writer) (*App, error) {
	logger, err := logging.New(cfg.Logging())
	if err != nil {
		return nil, err
	}

	st, closeStore, err := OpenStore(ctx, cfg)
	if err != nil {
		_ = logger.Sync()
		return nil, err
	}

	reg := prometheus.NewRegistry()
	h, err := appprefs.New(ctx, st, prefs.WithLogger(logger), prefs.WithMetrics(reg))
	if err != nil {
		_ = closeStore()
		_ = logger.Sync()
		return nil, err
	}

	logger.Debug("opened preferences",
		zap.String("backend", string(cfg.Backend)),
		zap.String("namespace", st.Name()))

	return &App{
		Handler: h,
		Store:   st,
		Config:  cfg,
		Logger:  logger,
		Metrics: reg,
		Out:     out,
		Err:     errOut,
		closers: []func() error{closeStore},
	}, nil
}

// OpenStore opens the backend selected by cfg. The returned function
// releases it.
func OpenStore(ctx context.Context, cfg *config.Config) (store.Store, func() error, error) {
	noop := func() error { return nil }

	if cfg.Backend == config.BackendMemory {
		return store.NewMemory(cfg.Namespace), noop, nil
	}

	path, err := cfg.StorePath()
	if err != nil {
		return nil, nil, err
	}

	switch cfg.Backend {
	case config.BackendTOML:
		st, err := tomlstore.Open(path)
		if err != nil {
			return nil, nil, err
		}
		return st, noop, nil
	case config.BackendYAML:
		st, err := yamlstore.Open(path)
		if err != nil {
			return nil, nil, err
		}
		return st, noop, nil
	case config.BackendSQLite:
		st, err := sqlitestore.Open(ctx, path, cfg.Namespace)
		if err != nil {
			return nil, nil, err
		}
		return st, st.Close, nil
	default:
		return nil, nil, fmt.Errorf("%w: unknown backend %q", config.ErrInvalidConfig, cfg.Backend)
	}
}

// Close releases the store and flushes the logger.
func (a *App) Close() error {
	var errs []error
	for _, c := range a.closers {
		errs = append(errs, c())
	}
	a.closers = nil
	if a.Logger != nil {
		_ = a.Logger.Sync()
	}
	return errors.Join(errs...)
}

// WriteMetrics writes the handler's counters to w in the Prometheus text
// format.
func (a *App) WriteMetrics(w io.Writer) error {
	families, err := a.Metrics.Gather()
	if err != nil {
		return fmt.Errorf("gathering metrics: %w", err)
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return err
		}
	}
	return nil
}

// Lookup returns the registered preference for key.
func (a *App) Lookup(key string) (prefs.Descriptor, error) {
	d, ok := a.Handler.DescriptorByKey(key)
	if !ok {
		return nil, &prefs.PreferenceError{Key: key, Err: prefs.ErrUnknownPreference}
	}
	return d, nil
}

// Color reports whether output goes to a terminal.
func (a *App) Color() bool {
	f, ok := a.Out.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// SuccessColor returns s in green when writing to a terminal.
func (a *App) SuccessColor(s string) string {
	if a.Color() {
		return "\033[32m" + s + "\033[0m"
	}
	return s
}

// DimColor returns s in grey when writing to a terminal.
func (a *App) DimColor(s string) string {
	if a.Color() {
		return "\033[90m" + s + "\033[0m"
	}
	return s
}
