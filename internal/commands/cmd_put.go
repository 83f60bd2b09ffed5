package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/hay-kot/kvpub/internal/kvpub"
)

type PutCmd struct {
	flags *Flags
	app   *kvpub.App

	// Stdin is read when VALUE is "-". Defaults to os.Stdin.
	Stdin io.Reader
}

// NewPutCmd creates a new put command
func NewPutCmd(flags *Flags, app *kvpub.App) *PutCmd {
	return &PutCmd{flags: flags, app: app, Stdin: os.Stdin}
}

// Register adds the put command to the application
func (cmd *PutCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "put",
		Usage:     "Store a value under a key",
		UsageText: "kvpub put KEY VALUE\n   echo value | kvpub put KEY -",
		Description: `Stores VALUE under KEY, replacing any previous value. Pass "-" as VALUE
to read it from stdin (a single trailing newline is trimmed).

The same size limits and retention policy as the web form apply.`,
		ArgsUsage: "KEY VALUE",
		Action:    cmd.run,
	})

	return app
}

func (cmd *PutCmd) run(ctx context.Context, c *cli.Command) error {
	if c.Args().Len() != 2 {
		return errors.New("expected exactly two arguments: KEY VALUE")
	}
	key, value := c.Args().Get(0), c.Args().Get(1)

	if value == "-" {
		data, err := io.ReadAll(cmd.Stdin)
		if err != nil {
			return fmt.Errorf("read stdin: %w", err)
		}
		value = strings.TrimSuffix(string(data), "\n")
	}

	if err := cmd.app.Gateway.Add(ctx, key, value); err != nil {
		return fmt.Errorf("put %q: %w", key, err)
	}

	_, _ = fmt.Fprintf(c.Root().ErrWriter, "stored %q (%d bytes)\n", key, len(value))
	return nil
}
