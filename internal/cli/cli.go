package cli

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/matzehuels/trussview/pkg/buildinfo"
	"github.com/matzehuels/trussview/pkg/cache"
	"github.com/matzehuels/trussview/pkg/manifest"
	"github.com/matzehuels/trussview/pkg/observability"
	"github.com/matzehuels/trussview/pkg/pipeline"
	"github.com/matzehuels/trussview/pkg/render"
)

// =============================================================================
// Constants
// =============================================================================

const (
	// appName is the application name used for directories and display.
	appName = "trussview"

	// defaultAddr is the listen address of the serve command.
	defaultAddr = "127.0.0.1:8080"
)

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// =============================================================================
// CLI - Central CLI State
// =============================================================================

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger

	// hooks are registered by the root command for each execution.
	hooks *observability.LogHooks
}

// New creates a new CLI instance with a default logger.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{Logger: newLogger(w, level)}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:          appName,
		Short:        "Trussview renders report figures from structural solver output",
		Long:         `Trussview reads the node, element, rigid link, support and load tables of a structural model and renders a full-model view, one zoomed view per fitting load and one view per winch load group.`,
		Version:      buildinfo.Version,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			c.hooks = observability.NewLogHooks(c.Logger)
			observability.SetPipelineHooks(c.hooks)
			observability.SetCacheHooks(c.hooks)
			observability.SetHTTPHooks(c.hooks)
			cmd.SetContext(withLogger(cmd.Context(), c.Logger))
			return nil
		},
	}

	root.SetVersionTemplate(buildinfo.Template())

	root.AddCommand(c.renderCommand())
	root.AddCommand(c.inspectCommand())
	root.AddCommand(c.serveCommand())
	root.AddCommand(c.cacheCommand())
	root.AddCommand(c.completionCommand())

	return root
}

// =============================================================================
// Backends
// =============================================================================

// backendFlags select the artifact cache and the shared manifest store.
type backendFlags struct {
	noCache    bool
	redisURL   string
	cacheScope string
	mongoURI   string
	mongoDB    string
}

func (b *backendFlags) register(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&b.noCache, "no-cache", false, "disable the image cache")
	cmd.Flags().StringVar(&b.redisURL, "redis", os.Getenv("TRUSSVIEW_REDIS_URL"), "redis URL for a shared image cache")
	cmd.Flags().StringVar(&b.cacheScope, "cache-scope", "", "prefix for cache keys, e.g. a project name")
	b.registerStore(cmd)
}

func (b *backendFlags) registerStore(cmd *cobra.Command) {
	cmd.Flags().StringVar(&b.mongoURI, "mongo-uri", os.Getenv("TRUSSVIEW_MONGO_URI"), "MongoDB URI for a shared manifest store")
	cmd.Flags().StringVar(&b.mongoDB, "mongo-db", manifest.DefaultDatabase, "MongoDB database name")
}

// newRunner creates a pipeline runner for CLI use.
func (c *CLI) newRunner(ctx context.Context, b backendFlags) (*pipeline.Runner, error) {
	ch, err := c.newCache(ctx, b)
	if err != nil {
		return nil, err
	}
	var keyer cache.Keyer
	if b.cacheScope != "" {
		keyer = cache.NewScopedKeyer(cache.NewDefaultKeyer(), b.cacheScope)
	}
	runner := pipeline.NewRunner(ch, keyer, c.Logger)

	if b.mongoURI != "" {
		store, err := manifest.NewMongoStore(ctx, b.mongoURI, b.mongoDB)
		if err != nil {
			_ = runner.Close()
			return nil, err
		}
		runner.Store = store
	}
	return runner, nil
}

// newCache picks redis when configured, the per-user file cache otherwise.
// A file cache that cannot be created disables caching instead of failing.
func (c *CLI) newCache(ctx context.Context, b backendFlags) (cache.Cache, error) {
	switch {
	case b.noCache:
		return cache.NewNullCache(), nil
	case b.redisURL != "":
		return cache.NewRedisCache(ctx, b.redisURL)
	}
	dir, err := cacheDir()
	if err != nil {
		c.Logger.Debug("no cache directory", "err", err)
		return cache.NewNullCache(), nil
	}
	fc, err := cache.NewFileCache(dir)
	if err != nil {
		c.Logger.Warn("cache disabled", "dir", dir, "err", err)
		return cache.NewNullCache(), nil
	}
	return fc, nil
}

// newStore opens the manifest store used by serve: MongoDB when configured,
// the manifest file in dir otherwise.
func newStore(ctx context.Context, b backendFlags, dir string) (manifest.Store, error) {
	if b.mongoURI != "" {
		return manifest.NewMongoStore(ctx, b.mongoURI, b.mongoDB)
	}
	return manifest.NewFileStore(dir), nil
}

// =============================================================================
// Paths
// =============================================================================

// cacheDir returns the cache directory using XDG standard (~/.cache/trussview/).
func cacheDir() (string, error) {
	if cacheHome := os.Getenv("XDG_CACHE_HOME"); cacheHome != "" {
		return filepath.Join(cacheHome, appName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".cache", appName), nil
}

// =============================================================================
// Options Helpers
// =============================================================================

// parseFormats parses a comma-separated format string into a slice.
func parseFormats(s string) []string {
	if s == "" {
		return []string{render.FormatPNG}
	}
	var out []string
	for _, f := range strings.Split(s, ",") {
		if f = strings.ToLower(strings.TrimSpace(f)); f != "" {
			out = append(out, f)
		}
	}
	return out
}
