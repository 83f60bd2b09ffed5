package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hay-kot/criterio"
	"github.com/urfave/cli/v3"

	"github.com/hay-kot/kvpub/internal/kvpub"
)

type ConfigCmd struct {
	flags *Flags
	app   *kvpub.App

	// flags
	format string
}

// NewConfigCmd creates a new config command.
func NewConfigCmd(flags *Flags, app *kvpub.App) *ConfigCmd {
	return &ConfigCmd{flags: flags, app: app}
}

// Register adds the config command and its subcommands to the application.
func (cmd *ConfigCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:  "config",
		Usage: "Configuration management commands",
		Commands: []*cli.Command{
			{
				Name:        "validate",
				Usage:       "Validate configuration file",
				UsageText:   "kvpub config validate [options]",
				Description: "Validates the configuration file, checking value ranges and that the storage paths are usable.",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:        "format",
						Usage:       "output format (text, json)",
						Value:       "text",
						Destination: &cmd.format,
					},
				},
				Action: cmd.runValidate,
			},
		},
	})

	return app
}

type validationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (cmd *ConfigCmd) runValidate(ctx context.Context, c *cli.Command) error {
	errs, err := collectFieldErrors(cmd.app.Config.ValidateDeep(cmd.flags.ConfigPath))
	if err != nil {
		return err
	}

	if cmd.format == "json" {
		out := struct {
			Valid  bool              `json:"valid"`
			Errors []validationError `json:"errors,omitempty"`
		}{
			Valid:  len(errs) == 0,
			Errors: errs,
		}

		enc := json.NewEncoder(c.Root().Writer)
		enc.SetIndent("", "  ")
		if err := enc.Encode(out); err != nil {
			return err
		}
	} else {
		w := c.Root().Writer
		for _, e := range errs {
			_, _ = fmt.Fprintf(w, "✗ %s: %s\n", e.Field, e.Message)
		}
		if len(errs) == 0 {
			_, _ = fmt.Fprintf(w, "✓ Configuration is valid (%s)\n", cmd.flags.ConfigPath)
		} else {
			_, _ = fmt.Fprintf(w, "\n%d error(s) found\n", len(errs))
		}
	}

	if len(errs) > 0 {
		return cli.Exit("", 1)
	}
	return nil
}

// collectFieldErrors flattens criterio field errors. Any other error is
// returned as is.
func collectFieldErrors(err error) ([]validationError, error) {
	if err == nil {
		return nil, nil
	}

	var fieldErrs criterio.FieldErrors
	if !errors.As(err, &fieldErrs) {
		return nil, err
	}

	out := make([]validationError, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		out = append(out, validationError{Field: fe.Field, Message: fe.Err.Error()})
	}
	return out, nil
}
