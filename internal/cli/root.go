package cli

import (
	"context"
	"io"
	"os"
	"sync"

	"github.com/spf13/cobra"

	"github.com/dshills/typedprefs/internal/config"
)

// AppProvider lazily initializes the App on first use, after flags have
// been parsed.
type AppProvider struct {
	once sync.Once
	app  *App
	err  error

	// Flag overrides of the environment configuration.
	Backend   string
	Path      string
	Namespace string
	LogLevel  string
	JSON      bool
	Metrics   bool

	Out io.Writer
	Err io.Writer
}

// NewTestProvider returns a provider pre-initialized with app.
func NewTestProvider(app *App) *AppProvider {
	return &AppProvider{
		app: app,
		Out: app.Out,
		Err: app.Err,
	}
}

// Get returns the App, initializing it on first call.
func (p *AppProvider) Get(ctx context.Context) (*App, error) {
	p.once.Do(func() {
		if p.app == nil {
			p.app, p.err = p.init(ctx)
		}
	})
	return p.app, p.err
}

// Close releases the App if it was initialized.
func (p *AppProvider) Close() error {
	if p.app == nil {
		return nil
	}
	return p.app.Close()
}

func (p *AppProvider) init(ctx context.Context) (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if p.Backend != "" {
		cfg.Backend = config.Backend(p.Backend)
	}
	if p.Path != "" {
		cfg.Path = p.Path
	}
	if p.Namespace != "" {
		cfg.Namespace = p.Namespace
	}
	if p.LogLevel != "" {
		cfg.LogLevel = p.LogLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	out := p.Out
	if out == nil {
		out = os.Stdout
	}
	errOut := p.Err
	if errOut == nil {
		errOut = os.Stderr
	}
	return NewApp(ctx, cfg, out, errOut)
}

// Execute runs the CLI until it finishes or ctx is cancelled.
func Execute(ctx context.Context, version string) error {
	provider := &AppProvider{
		Out: os.Stdout,
		Err: os.Stderr,
	}
	defer provider.Close()

	rootCmd := NewRootCmd(provider)
	rootCmd.Version = version
	return rootCmd.ExecuteContext(ctx)
}

// NewRootCmd creates the root command with all subcommands.
func NewRootCmd(provider *AppProvider) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "prefsctl",
		Short: "Inspect and edit typed application preferences",
		Long: `prefsctl reads and writes the preferences of the demo application.
Values are stored in a TOML or YAML file, a SQLite database or memory,
selected with --backend or PREFS_BACKEND.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&provider.Backend, "backend", "", "Store backend: memory, toml, yaml or sqlite (env PREFS_BACKEND)")
	flags.StringVar(&provider.Path, "path", "", "Preference file or database path (env PREFS_PATH)")
	flags.StringVar(&provider.Namespace, "namespace", "", "Namespace for the sqlite and memory backends (env PREFS_NAMESPACE)")
	flags.StringVar(&provider.LogLevel, "log-level", "", "Log level: debug, info, warn, error (env PREFS_LOG_LEVEL)")
	flags.BoolVar(&provider.JSON, "json", false, "Output in JSON format")
	flags.BoolVar(&provider.Metrics, "metrics", false, "Print operation counters to stderr after the command")

	rootCmd.PersistentPostRunE = func(cmd *cobra.Command, args []string) error {
		if !provider.Metrics || provider.app == nil {
			return nil
		}
		return provider.app.WriteMetrics(provider.app.Err)
	}

	rootCmd.AddCommand(newGetCmd(provider))
	rootCmd.AddCommand(newSetCmd(provider))
	rootCmd.AddCommand(newClearCmd(provider))
	rootCmd.AddCommand(newClearAllCmd(provider))
	rootCmd.AddCommand(newListCmd(provider))
	rootCmd.AddCommand(newKeysCmd(provider))
	rootCmd.AddCommand(newWatchCmd(provider))

	return rootCmd
}
