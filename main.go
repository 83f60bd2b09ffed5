package main

import (
	"context"
	"fmt"
	"os"
	"runtime/debug"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"

	"github.com/hay-kot/kvpub/internal/commands"
	"github.com/hay-kot/kvpub/internal/core/config"
	"github.com/hay-kot/kvpub/internal/core/logging"
	"github.com/hay-kot/kvpub/internal/kvpub"
	"github.com/hay-kot/kvpub/pkg/logutils"
)

var (
	// Build information. Populated at build-time via -ldflags flag.
	// When installed via `go install module@version`, init() populates
	// these from runtime/debug.BuildInfo instead.
	version = "dev"
	commit  = "HEAD"
	date    = "now"
)

func build() string {
	v, c, d := version, commit, date

	if v == "dev" {
		if info, ok := debug.ReadBuildInfo(); ok {
			if mv := info.Main.Version; mv != "" && mv != "(devel)" {
				v = mv
			}
			for _, s := range info.Settings {
				switch s.Key {
				case "vcs.revision":
					c = s.Value
				case "vcs.time":
					d = s.Value
				}
			}
		}
	}

	short := c
	if len(c) > 7 {
		short = c[:7]
	}

	return fmt.Sprintf("%s (%s) %s", v, short, d)
}

func main() {
	ctx := context.Background()

	var (
		logCloser func()
		kvApp     = &kvpub.App{}
	)

	flags := &commands.Flags{}

	app := &cli.Command{
		Name:      "kvpub",
		Usage:     "Publish short text values under memorable keys",
		UsageText: "kvpub [global options] command [command options]",
		Description: `kvpub stores small key/value pairs and serves each value at /{key}.

Run 'kvpub serve' to start the web form and value endpoint.
Run 'kvpub put KEY VALUE' or 'kvpub get KEY' to use the store directly.

Once the store holds retention.threshold entries, the next write removes all
but the newest retention.retain entries.`,
		Version: build(),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "log-level",
				Usage:       "log level (debug, info, warn, error, fatal, panic)",
				Sources:     cli.EnvVars("KVPUB_LOG_LEVEL"),
				Value:       "info",
				Destination: &flags.LogLevel,
			},
			&cli.StringFlag{
				Name:        "log-file",
				Usage:       "path to log file (defaults to stderr)",
				Sources:     cli.EnvVars("KVPUB_LOG_FILE"),
				Destination: &flags.LogFile,
			},
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "path to config file",
				Sources:     cli.EnvVars("KVPUB_CONFIG"),
				Value:       commands.DefaultConfigPath(),
				Destination: &flags.ConfigPath,
			},
			&cli.StringFlag{
				Name:        "data-dir",
				Usage:       "path to data directory",
				Sources:     cli.EnvVars("KVPUB_DATA_DIR"),
				Value:       commands.DefaultDataDir(),
				Destination: &flags.DataDir,
			},
			&cli.StringFlag{
				Name:        "backend",
				Usage:       "storage backend (memory, sqlite, bolt); overrides store.backend",
				Sources:     cli.EnvVars("KVPUB_BACKEND"),
				Destination: &flags.Backend,
			},
			&cli.StringFlag{
				Name:        "db-uri",
				Usage:       "SQLite database path or sqlite:// URI; overrides database.path",
				Sources:     cli.EnvVars("DB_URI"),
				Destination: &flags.DBURI,
			},
		},
		Before: func(ctx context.Context, c *cli.Command) (context.Context, error) {
			logger, closer, err := logutils.New(flags.LogLevel, flags.LogFile)
			if err != nil {
				return ctx, fmt.Errorf("setup logger: %w", err)
			}
			log.Logger = logger.Hook(logging.ContextHook{})
			logCloser = closer

			cfg, err := config.Load(flags.ConfigPath, flags.DataDir)
			if err != nil {
				return ctx, fmt.Errorf("load config: %w", err)
			}

			if flags.Backend != "" {
				cfg.Store.Backend = flags.Backend
			}
			if flags.DBURI != "" {
				cfg.SetDatabaseURI(flags.DBURI)
			}
			if err := cfg.Validate(); err != nil {
				return ctx, fmt.Errorf("invalid config: %w", err)
			}

			store, err := kvpub.OpenStore(cfg)
			if err != nil {
				return ctx, fmt.Errorf("open store: %w", err)
			}

			log.Debug().
				Str("backend", cfg.Store.Backend).
				Str("data_dir", cfg.DataDir).
				Msg("store opened")

			// Populate the pre-allocated App struct (commands already hold a pointer to it)
			*kvApp = *kvpub.NewApp(cfg, store, logging.Component("gateway"))

			return logging.WithBackend(ctx, cfg.Store.Backend), nil
		},
		After: func(ctx context.Context, c *cli.Command) error {
			if err := kvApp.Close(); err != nil {
				log.Error().Err(err).Msg("failed to close store")
				return err
			}

			if logCloser != nil {
				logCloser()
			}
			return nil
		},
	}

	app = commands.NewServeCmd(flags, kvApp).Register(app)
	app = commands.NewGetCmd(flags, kvApp).Register(app)
	app = commands.NewPutCmd(flags, kvApp).Register(app)
	app = commands.NewLsCmd(flags, kvApp).Register(app)
	app = commands.NewImportCmd(flags, kvApp).Register(app)
	app = commands.NewPruneCmd(flags, kvApp).Register(app)
	app = commands.NewConfigCmd(flags, kvApp).Register(app)
	app = commands.NewDBCmd(flags, kvApp).Register(app)

	exitCode := 0
	runErr := app.Run(ctx, os.Args)
	if runErr != nil {
		fmt.Println()
		fmt.Println(runErr.Error())
		exitCode = 1
	}

	os.Exit(exitCode)
}
