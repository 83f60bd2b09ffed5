package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/hay-kot/kvpub/internal/kvpub"
	"github.com/hay-kot/kvpub/pkg/iojson"
)

type GetCmd struct {
	flags *Flags
	app   *kvpub.App

	// flags
	jsonOutput bool
}

// NewGetCmd creates a new get command
func NewGetCmd(flags *Flags, app *kvpub.App) *GetCmd {
	return &GetCmd{flags: flags, app: app}
}

// Register adds the get command to the application
func (cmd *GetCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:          "get",
		Usage:         "Print the value stored for a key",
		UsageText:     "kvpub get [--json] KEY",
		Description:   "Exits with status 1 when the key is not stored.",
		ArgsUsage:     "KEY",
		ShellComplete: KeyCompleter(cmd.app),
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:        "json",
				Usage:       "output as a JSON object",
				Destination: &cmd.jsonOutput,
			},
		},
		Action: cmd.run,
	})

	return app
}

type getOutput struct {
	Key    string `json:"key"`
	Status string `json:"status"`
	Value  string `json:"value,omitempty"`
}

func (cmd *GetCmd) run(ctx context.Context, c *cli.Command) error {
	if c.Args().Len() != 1 {
		return errors.New("expected exactly one argument: KEY")
	}
	key := c.Args().Get(0)

	res := cmd.app.Gateway.Get(ctx, key)
	out := c.Root().Writer

	if cmd.jsonOutput {
		if err := iojson.WriteLine(out, getOutput{Key: key, Status: res.Status.String(), Value: res.Value}); err != nil {
			return fmt.Errorf("encode result: %w", err)
		}
	}

	switch res.Status {
	case kvpub.Found:
		if !cmd.jsonOutput {
			_, _ = fmt.Fprintln(out, res.Value)
		}
		return nil
	case kvpub.Unavailable:
		return cli.Exit(fmt.Sprintf("storage unavailable while reading %q", key), 2)
	default:
		if cmd.jsonOutput {
			return cli.Exit("", 1)
		}
		return cli.Exit(fmt.Sprintf("key %q not found", key), 1)
	}
}
