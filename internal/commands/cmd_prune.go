package commands

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/hay-kot/kvpub/internal/kvpub"
)

type PruneCmd struct {
	flags *Flags
	app   *kvpub.App

	// flags
	retain int
}

// NewPruneCmd creates a new prune command
func NewPruneCmd(flags *Flags, app *kvpub.App) *PruneCmd {
	return &PruneCmd{flags: flags, app: app}
}

// Register adds the prune command to the application
func (cmd *PruneCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "prune",
		Usage:     "Run the retention policy now",
		UsageText: "kvpub prune [--retain N]",
		Description: `Without flags, applies the configured retention policy: if at least
retention.threshold entries are stored, all but the newest retention.retain
are removed.

With --retain, removes all but the newest N entries regardless of the threshold.`,
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:        "retain",
				Usage:       "keep only the newest N entries",
				Destination: &cmd.retain,
			},
		},
		Action: cmd.run,
	})

	return app
}

func (cmd *PruneCmd) run(ctx context.Context, c *cli.Command) error {
	var (
		removed int
		err     error
	)

	if c.IsSet("retain") {
		if cmd.retain < 0 {
			return fmt.Errorf("--retain must not be negative, got %d", cmd.retain)
		}
		removed, err = cmd.app.Gateway.EvictTo(ctx, cmd.retain)
	} else {
		removed, err = cmd.app.Gateway.Enforce(ctx)
	}
	if err != nil {
		return fmt.Errorf("prune entries: %w", err)
	}

	out := c.Root().Writer
	if removed == 0 {
		_, _ = fmt.Fprintln(out, "No entries to prune")
		return nil
	}

	_, _ = fmt.Fprintf(out, "Pruned %d entry(s)\n", removed)
	return nil
}
