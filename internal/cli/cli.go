// Package cli implements the sqltree command-line interface.
//
// Commands work on three kinds of documents: editor states ({nodes, edges}),
// exported schemas ({tables, sqlQuery}) and derivation payloads as returned
// by the conversion service ({algebraRelacional, rootId, nodos}).
//
//   - export, import, connect: edit and convert schema documents locally
//   - validate, convert: talk to the conversion service
//   - layout, tree: position and print derivation trees
//   - history: inspect the stored schemas
//   - serve: run the HTTP API
//   - cache: manage the response cache
//
// All commands support --verbose (-v) for debug logging and --config to pick
// a config file. The logger travels in the command context.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/matzehuels/sqltree/pkg/buildinfo"
	"github.com/matzehuels/sqltree/pkg/cache"
	"github.com/matzehuels/sqltree/pkg/config"
	"github.com/matzehuels/sqltree/pkg/history"
	"github.com/matzehuels/sqltree/pkg/integrations/converter"
	"github.com/matzehuels/sqltree/pkg/observability"
	"github.com/matzehuels/sqltree/pkg/pipeline"
)

const appName = config.AppName

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

	configPath string
	cfg        *config.Config
}

// New creates a CLI logging to w at level.
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
		Use:   appName,
		Short: "sqltree builds relational schemas and shows how SQL queries derive into relational algebra",
		Long: `sqltree edits relational schemas (tables, columns, primary and foreign keys),
exports them for the SQL-to-relational-algebra conversion service, and lays
out the derivation trees the service returns.`,
		Version:      buildinfo.Get().Version,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(c.configPath)
			if err != nil {
				return err
			}
			c.cfg = cfg
			observability.NewLogHooks(c.Logger).Register()
			cmd.SetContext(withLogger(cmd.Context(), c.Logger))
			return nil
		},
	}

	root.SetVersionTemplate(buildinfo.Template())
	root.PersistentFlags().StringVar(&c.configPath, "config", "", "config file (default "+config.DefaultPath()+")")

	root.AddCommand(c.exportCommand())
	root.AddCommand(c.importCommand())
	root.AddCommand(c.connectCommand())
	root.AddCommand(c.validateCommand())
	root.AddCommand(c.convertCommand())
	root.AddCommand(c.layoutCommand())
	root.AddCommand(c.treeCommand())
	root.AddCommand(c.historyCommand())
	root.AddCommand(c.serveCommand())
	root.AddCommand(c.cacheCommand())
	root.AddCommand(c.completionCommand())

	return root
}

// config returns the loaded configuration, or the defaults when a command
// runs without the root's pre-run (tests calling helpers directly).
func (c *CLI) config() *config.Config {
	if c.cfg == nil {
		c.cfg = config.Default()
	}
	return c.cfg
}

// =============================================================================
// Runner Factory
// =============================================================================

type runnerOpts struct {
	noCache bool
	history bool
}

// newRunner creates a pipeline runner from the configuration. The caller
// must call closeRunner.
func (c *CLI) newRunner(ctx context.Context, o runnerOpts) (*pipeline.Runner, error) {
	cfg := c.config()
	cc, err := openCache(ctx, cfg, o.noCache)
	if err != nil {
		return nil, err
	}

	var h *history.History
	if o.history {
		if h, err = openHistory(ctx, cfg); err != nil {
			cc.Close()
			return nil, err
		}
	}

	svc := converter.NewClient(cfg.Service.BaseURL, cc, cfg.Cache.TTL())
	return pipeline.NewRunner(cc, nil, svc, h, c.Logger), nil
}

func closeRunner(r *pipeline.Runner) {
	if r.History != nil {
		_ = r.History.Close()
	}
	_ = r.Close()
}

// openCache opens the configured response cache.
func openCache(ctx context.Context, cfg *config.Config, noCache bool) (cache.Cache, error) {
	if noCache {
		return cache.NewNullCache(), nil
	}
	switch cfg.Cache.Backend {
	case config.BackendNone:
		return cache.NewNullCache(), nil
	case config.BackendMemory:
		return cache.NewMemoryCache(), nil
	case config.BackendRedis:
		r := cfg.Redis
		return cache.DialRedis(ctx, r.Addr, r.Password, r.DB, r.Prefix+"cache:")
	default:
		return cache.NewFileCache(cfg.Cache.Dir)
	}
}

// openHistory opens the configured history store.
func openHistory(ctx context.Context, cfg *config.Config) (*history.History, error) {
	var backend history.Backend
	switch cfg.Store.Backend {
	case config.BackendMemory:
		backend = history.NewCacheBackend(cache.NewMemoryCache())
	case config.BackendFile:
		fc, err := cache.NewFileCache(filepath.Join(filepath.Dir(cfg.Store.Path), "history"))
		if err != nil {
			return nil, err
		}
		backend = history.NewCacheBackend(fc)
	case config.BackendRedis:
		r := cfg.Redis
		rc, err := cache.DialRedis(ctx, r.Addr, r.Password, r.DB, r.Prefix+"history:")
		if err != nil {
			return nil, err
		}
		backend = history.NewCacheBackend(rc)
	case config.BackendMongo:
		m := cfg.Mongo
		mb, err := history.DialMongo(ctx, m.URI, m.Database, m.Collection)
		if err != nil {
			return nil, err
		}
		backend = mb
	default:
		sb, err := history.OpenSQLite(ctx, cfg.Store.Path)
		if err != nil {
			return nil, err
		}
		backend = sb
	}
	return history.Open(ctx, backend, cfg.Store.Key)
}

// =============================================================================
// Input / Output
// =============================================================================

// readInput reads path, or stdin for "-".
func readInput(cmd *cobra.Command, path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return data, nil
}

// writeOutput writes data to path, or to the command's stdout when path is
// empty or "-".
func writeOutput(cmd *cobra.Command, path string, data []byte) error {
	if path == "" || path == "-" {
		_, err := cmd.OutOrStdout().Write(data)
		return err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// toFile reports whether output goes to a file rather than stdout.
func toFile(path string) bool {
	return path != "" && path != "-"
}

// baseName strips the directory and extension from path.
func baseName(path string) string {
	return strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
}

// parseFormats splits a comma-separated format list.
func parseFormats(s string) []string {
	if s == "" {
		return []string{pipeline.DefaultFormat}
	}
	var out []string
	for _, f := range strings.Split(s, ",") {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	return out
}
