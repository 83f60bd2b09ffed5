package commands

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"

	"github.com/hay-kot/kvpub/internal/data/db"
	"github.com/hay-kot/kvpub/internal/data/stores"
	"github.com/hay-kot/kvpub/internal/kvpub"
)

type DBCmd struct {
	flags *Flags
	app   *kvpub.App

	// flags
	steps int
}

// NewDBCmd creates a new db command.
func NewDBCmd(flags *Flags, app *kvpub.App) *DBCmd {
	return &DBCmd{flags: flags, app: app}
}

// Register adds the db command and its subcommands to the application.
func (cmd *DBCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:  "db",
		Usage: "SQLite schema maintenance",
		Commands: []*cli.Command{
			{
				Name:      "rollback",
				Usage:     "Revert the most recent schema migrations",
				UsageText: "kvpub db rollback [--steps N]",
				Description: `Runs the down migrations for the last N applied versions, newest first.
Only the sqlite backend has a schema. Reverting the entries table drops every
stored entry; the next command that opens the store migrates it back up.`,
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:        "steps",
						Usage:       "number of migrations to revert",
						Value:       1,
						Destination: &cmd.steps,
					},
				},
				Action: cmd.runRollback,
			},
		},
	})

	return app
}

func (cmd *DBCmd) runRollback(ctx context.Context, c *cli.Command) error {
	s, ok := cmd.app.Store.(*stores.SQLStore)
	if !ok {
		return cli.Exit(fmt.Sprintf("db rollback needs the sqlite backend, configured backend is %q", cmd.app.Config.Store.Backend), 1)
	}

	if err := db.MigrateDown(ctx, s.DB().Conn(), cmd.steps); err != nil {
		return fmt.Errorf("rollback: %w", err)
	}

	log.Info().Int("steps", cmd.steps).Str("path", cmd.app.Config.DatabasePath()).Msg("migrations reverted")
	_, _ = fmt.Fprintf(c.Root().Writer, "Reverted %d migration(s)\n", cmd.steps)
	return nil
}
