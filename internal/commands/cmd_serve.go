package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"
	"golang.org/x/sync/errgroup"

	"github.com/hay-kot/kvpub/internal/core/logging"
	"github.com/hay-kot/kvpub/internal/kvpub"
	"github.com/hay-kot/kvpub/internal/kvpub/sweep"
	"github.com/hay-kot/kvpub/internal/profiler"
	"github.com/hay-kot/kvpub/internal/web"
)

type ServeCmd struct {
	flags *Flags
	app   *kvpub.App

	// flags
	port      int
	pprofPort int
}

// NewServeCmd creates a new serve command
func NewServeCmd(flags *Flags, app *kvpub.App) *ServeCmd {
	return &ServeCmd{flags: flags, app: app}
}

// Register adds the serve command to the application
func (cmd *ServeCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "serve",
		Usage:     "Run the HTTP server",
		UsageText: "kvpub serve [--port PORT]",
		Description: `Serves the publishing form on / and published values on /{key}.

The port comes from --port, the PORT environment variable, or server.port in
the config file, in that order. When retention.sweep_interval is set, the
retention check also runs in the background on that interval.`,
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:        "port",
				Aliases:     []string{"p"},
				Usage:       "port to listen on (default from config, 3000)",
				Sources:     cli.EnvVars("PORT"),
				Destination: &cmd.port,
			},
			&cli.IntFlag{
				Name:        "pprof-port",
				Usage:       "serve /debug/pprof on this port (disabled when 0)",
				Sources:     cli.EnvVars("KVPUB_PPROF_PORT"),
				Destination: &cmd.pprofPort,
			},
		},
		Action: cmd.run,
	})

	return app
}

func (cmd *ServeCmd) run(ctx context.Context, c *cli.Command) error {
	cfg := cmd.app.Config
	if c.IsSet("port") {
		cfg.Server.Port = cmd.port
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	handler := web.Routes(
		web.NewHandler(cmd.app.Gateway, kvpub.GatewayOptionsFrom(cfg)),
		logging.Component("http"),
	)
	srv := web.NewServer(handler, web.ServerOptions{
		Addr:            cfg.Addr(),
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	}, logging.Component("server"))

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Start(ctx)
	})
	g.Go(func() error {
		sweep.Start(ctx, cmd.app.Gateway, cfg.Retention.SweepInterval)
		return nil
	})
	if cmd.pprofPort > 0 {
		debugSrv := web.NewServer(profiler.Handler(), web.ServerOptions{
			Addr: fmt.Sprintf("localhost:%d", cmd.pprofPort),
		}, logging.Component("profiler"))
		g.Go(func() error {
			return debugSrv.Start(ctx)
		})
	}

	return g.Wait()
}
