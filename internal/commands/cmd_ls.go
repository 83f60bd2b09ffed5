package commands

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/hay-kot/kvpub/internal/kvpub"
	"github.com/hay-kot/kvpub/pkg/iojson"
)

type LsCmd struct {
	flags *Flags
	app   *kvpub.App

	// flags
	jsonOutput bool
}

// NewLsCmd creates a new ls command
func NewLsCmd(flags *Flags, app *kvpub.App) *LsCmd {
	return &LsCmd{flags: flags, app: app}
}

// Register adds the ls command to the application
func (cmd *LsCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "ls",
		Usage:     "List stored entries",
		UsageText: "kvpub ls [--json]",
		Description: `Displays stored entries newest first, which is the order eviction keeps them.

Use --json for one JSON object per line including the value.`,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:        "json",
				Usage:       "output as JSON lines",
				Destination: &cmd.jsonOutput,
			},
		},
		Action: cmd.run,
	})

	return app
}

// entryInfo is the JSON output format for kvpub ls --json.
type entryInfo struct {
	Key       string    `json:"key"`
	Value     string    `json:"value"`
	CreatedAt time.Time `json:"created_at"`
}

func (cmd *LsCmd) run(ctx context.Context, c *cli.Command) error {
	entries, err := cmd.app.Gateway.List(ctx)
	if err != nil {
		return fmt.Errorf("list entries: %w", err)
	}

	if len(entries) == 0 {
		if !cmd.jsonOutput {
			fmt.Fprintf(os.Stderr, "No entries stored\n")
		}
		return nil
	}

	out := c.Root().Writer

	if cmd.jsonOutput {
		for _, e := range entries {
			if err := iojson.WriteLine(out, entryInfo(e)); err != nil {
				return fmt.Errorf("encode entry: %w", err)
			}
		}
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "KEY\tSIZE\tCREATED")
	for _, e := range entries {
		_, _ = fmt.Fprintf(w, "%s\t%d\t%s\n", e.Key, len(e.Value), e.CreatedAt.Format(time.RFC3339))
	}
	return w.Flush()
}
