package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/hay-kot/criterio"
	"github.com/urfave/cli/v3"

	"github.com/hay-kot/kvpub/internal/core/logging"
	"github.com/hay-kot/kvpub/internal/core/validate"
	"github.com/hay-kot/kvpub/internal/kvpub"
	"github.com/hay-kot/kvpub/pkg/iojson"
)

// maxFailures stops an import after this many failed writes.
const maxFailures = 3

// Import result statuses.
const (
	StatusStored   = "stored"
	StatusRejected = "rejected"
	StatusFailed   = "failed"
	StatusSkipped  = "skipped"
)

// ImportInput is the JSON document read by kvpub import.
type ImportInput struct {
	Entries []ImportEntry `json:"entries"`
}

// ImportEntry is one key/value pair to store.
type ImportEntry struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Validate checks the input shape. Size limits are left to the gateway so
// oversized entries are reported per entry instead of failing the whole import.
func (in ImportInput) Validate() error {
	if len(in.Entries) == 0 {
		return criterio.NewFieldErrors("entries", errors.New("at least one entry is required"))
	}

	var errs criterio.FieldErrorsBuilder
	for i, e := range in.Entries {
		if err := validate.NonBlank(e.Key); err != nil {
			errs = errs.Append(fmt.Sprintf("entries[%d].key", i), err)
		}
	}
	return errs.ToError()
}

// ImportResult reports the outcome for one entry.
type ImportResult struct {
	Key    string `json:"key"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// ImportOutput is written to stdout when an import finishes.
type ImportOutput struct {
	Results []ImportResult `json:"results"`
}

type ImportCmd struct {
	flags *Flags
	app   *kvpub.App
	fr    *iojson.FileReader[ImportInput]
}

// NewImportCmd creates a new import command
func NewImportCmd(flags *Flags, app *kvpub.App) *ImportCmd {
	return &ImportCmd{
		flags: flags,
		app:   app,
		fr:    &iojson.FileReader[ImportInput]{},
	}
}

// Register adds the import command to the application
func (cmd *ImportCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:  "import",
		Usage: "Store many entries from JSON input",
		UsageText: `kvpub import [options]

Read from stdin:
  echo '{"entries":[{"key":"a","value":"1"}]}' | kvpub import

Read from file:
  kvpub import -f entries.json`,
		Description: `Stores each entry in order through the same path as the web form, so
size limits and the retention policy apply to every write.

Entries over the size limits are reported as rejected and do not count as
failures. Processing stops after 3 storage failures; entries not attempted
are marked as skipped.

Input JSON schema:
  {
    "entries": [
      {"key": "name", "value": "content"}
    ]
  }

Output is JSON with one result per entry.`,
		Flags:  []cli.Flag{cmd.fr.Flag()},
		Action: cmd.run,
	})

	return app
}

func (cmd *ImportCmd) run(ctx context.Context, c *cli.Command) error {
	log := logging.Component("import")

	input, err := cmd.fr.Read()
	if err != nil {
		return iojson.WriteErrorTo(c.Root().ErrWriter, fmt.Errorf("read input: %w", err), nil)
	}

	if err := input.Validate(); err != nil {
		return iojson.WriteErrorTo(c.Root().ErrWriter, fmt.Errorf("invalid input: %w", err), nil)
	}

	output := cmd.store(ctx, input)

	log.Info().
		Int("total", len(input.Entries)).
		Int("stored", countByStatus(output.Results, StatusStored)).
		Int("rejected", countByStatus(output.Results, StatusRejected)).
		Int("failed", countByStatus(output.Results, StatusFailed)).
		Int("skipped", countByStatus(output.Results, StatusSkipped)).
		Msg("import complete")

	if err := iojson.WriteWith(c.Root().Writer, c.Root().ErrWriter, output); err != nil {
		return err
	}
	if countByStatus(output.Results, StatusFailed) > 0 {
		return cli.Exit("", 1)
	}
	return nil
}

func (cmd *ImportCmd) store(ctx context.Context, input ImportInput) ImportOutput {
	output := ImportOutput{Results: make([]ImportResult, 0, len(input.Entries))}

	failures := 0
	for i, e := range input.Entries {
		if failures >= maxFailures {
			for _, rest := range input.Entries[i:] {
				output.Results = append(output.Results, ImportResult{Key: rest.Key, Status: StatusSkipped})
			}
			break
		}

		res := ImportResult{Key: e.Key, Status: StatusStored}
		if err := cmd.app.Gateway.Add(ctx, e.Key, e.Value); err != nil {
			res.Error = err.Error()
			if errors.Is(err, kvpub.ErrPayloadTooLarge) || errors.Is(err, kvpub.ErrInvalidKey) {
				res.Status = StatusRejected
			} else {
				res.Status = StatusFailed
				failures++
			}
		}
		output.Results = append(output.Results, res)
	}

	return output
}

func countByStatus(results []ImportResult, status string) int {
	n := 0
	for _, r := range results {
		if r.Status == status {
			n++
		}
	}
	return n
}
