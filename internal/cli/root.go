package cli

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	_ "modernc.org/sqlite"

	"github.com/0xTanzim/rushtpl"
	"github.com/0xTanzim/rushtpl/internal/logging"
)

// Version is set at build time.
var Version = "dev"

// globalFlags are shared by every subcommand.
type globalFlags struct {
	configPath   string
	templatesDir string
	debug        bool
	logLevel     string
	logFormat    string
	redisAddr    string
	redisPrefix  string
	sqlitePath   string
	sqliteTable  string
}

func newRootCmd() *cobra.Command {
	g := &globalFlags{}
	root := &cobra.Command{
		Use:   "rushtpl",
		Short: "Render and inspect rushtpl templates",
		Long: `rushtpl renders templates that mix {{ mustache }}, <% angle %> and <Component>
syntax with partials, components and layouts.

Settings come from --config (YAML), or from RUSHTPL_* environment variables and
a .env file when no config is given.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&g.configPath, "config", "c", "", "YAML config file")
	pf.StringVar(&g.templatesDir, "templates", "", "templates directory; partials, components and layouts are looked up below it")
	pf.BoolVar(&g.debug, "debug", false, "emit diagnostic comments for unresolved references")
	pf.StringVar(&g.logLevel, "log-level", "info", "log level: debug, info, warn, error")
	pf.StringVar(&g.logFormat, "log-format", "text", "log format: text or json")
	pf.StringVar(&g.redisAddr, "redis", "", "read templates from this Redis server instead of the file system")
	pf.StringVar(&g.redisPrefix, "redis-prefix", "rushtpl:", "Redis key prefix")
	pf.StringVar(&g.sqlitePath, "sqlite", "", "read templates from this SQLite database instead of the file system")
	pf.StringVar(&g.sqliteTable, "sqlite-table", "templates", "SQLite table holding templates")

	root.AddCommand(
		newRenderCmd(g),
		newInspectCmd(g),
		newServeCmd(g),
		newHelpersCmd(g),
	)
	return root
}

// Execute runs the CLI and exits non-zero on error.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func (g *globalFlags) logger(w io.Writer) *slog.Logger {
	return logging.New(logging.Config{
		Level:  logging.ParseLevel(g.logLevel),
		Format: logging.ParseFormat(g.logFormat),
		Output: w,
	})
}

func (g *globalFlags) config() (rushtpl.Config, error) {
	var (
		cfg rushtpl.Config
		err error
	)
	if g.configPath != "" {
		cfg, err = rushtpl.LoadConfig(g.configPath)
	} else {
		cfg, err = rushtpl.ConfigFromEnv()
	}
	if err != nil {
		return cfg, err
	}
	if g.templatesDir != "" {
		cfg.TemplatesDir = g.templatesDir
		cfg.PartialsDir = filepath.Join(g.templatesDir, "partials")
		cfg.ComponentsDir = filepath.Join(g.templatesDir, "components")
		cfg.LayoutsDir = filepath.Join(g.templatesDir, "layouts")
	}
	if g.debug {
		cfg.Debug = true
	}
	return cfg, nil
}

// engine builds an engine from the flags. The returned func releases any
// source connection.
func (g *globalFlags) engine(ctx context.Context, cmd *cobra.Command) (*rushtpl.Engine, func(), error) {
	cfg, err := g.config()
	if err != nil {
		return nil, nil, err
	}
	opts := []rushtpl.Option{rushtpl.WithLogger(g.logger(cmd.ErrOrStderr()))}
	cleanup := func() {}

	switch {
	case g.redisAddr != "":
		src, err := rushtpl.NewRedisSource(rushtpl.RedisConfig{Address: g.redisAddr, Prefix: g.redisPrefix}, cfg.Extension)
		if err != nil {
			return nil, nil, err
		}
		opts = append(opts, rushtpl.WithSource(src))
		cleanup = func() { _ = src.Close() }
	case g.sqlitePath != "":
		db, err := sql.Open("sqlite", g.sqlitePath)
		if err != nil {
			return nil, nil, fmt.Errorf("opening %s: %w", g.sqlitePath, err)
		}
		src, err := rushtpl.NewSQLSource(db, g.sqliteTable, cfg.Extension)
		if err == nil {
			err = src.EnsureSchema(ctx)
		}
		if err != nil {
			_ = db.Close()
			return nil, nil, err
		}
		opts = append(opts, rushtpl.WithSource(src))
		cleanup = func() { _ = db.Close() }
	}

	e, err := rushtpl.New(cfg, opts...)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	return e, cleanup, nil
}
