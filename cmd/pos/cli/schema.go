package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/odyssey-erp/odyssey-pos/internal/schema"
)

// SchemaManager is implemented by *schema.Manager.
type SchemaManager interface {
	Initialize(ctx context.Context, version int) error
	Rebuild(ctx context.Context, version int) error
	Version(ctx context.Context) (int, error)
}

// SchemaCLI exposes the schema lifecycle to operators.
type SchemaCLI struct {
	manager SchemaManager
}

// NewSchemaCLI constructs the schema helper.
func NewSchemaCLI(manager SchemaManager) (*SchemaCLI, error) {
	if manager == nil {
		return nil, errors.New("schema cli: manager is required")
	}
	return &SchemaCLI{manager: manager}, nil
}

// Schema actions.
const (
	SchemaInit    = "init"
	SchemaRebuild = "rebuild"
	SchemaVersion = "version"
)

// SchemaOptions defines the flags of the schema command.
type SchemaOptions struct {
	Action     string
	Version    int
	Force      bool
	JSONOutput bool
	Stdout     io.Writer
	Stderr     io.Writer
}

// SchemaStatus is the JSON output of the schema command.
type SchemaStatus struct {
	Action  string `json:"action"`
	Version int    `json:"version"`
}

// SchemaCommand runs one schema action. Rebuild deletes every bill and refuses to
// run without Force.
func (c *SchemaCLI) SchemaCommand(ctx context.Context, opts SchemaOptions) int {
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}

	status := SchemaStatus{Action: opts.Action, Version: opts.Version}
	switch opts.Action {
	case SchemaInit, SchemaRebuild:
		if opts.Version < 1 {
			_, _ = fmt.Fprintln(opts.Stderr, "schema: --version must be at least 1")
			return ExitUsage
		}
	case SchemaVersion:
	default:
		_, _ = fmt.Fprintf(opts.Stderr, "schema: unknown action %q (expected init, rebuild or version)\n", opts.Action)
		return ExitUsage
	}

	var err error
	switch opts.Action {
	case SchemaInit:
		err = c.manager.Initialize(ctx, opts.Version)
	case SchemaRebuild:
		if !opts.Force {
			_, _ = fmt.Fprintln(opts.Stderr, "schema: rebuild discards every recorded bill; pass --force to continue")
			return ExitUsage
		}
		err = c.manager.Rebuild(ctx, opts.Version)
	case SchemaVersion:
		status.Version, err = c.manager.Version(ctx)
	}
	if err != nil {
		_, _ = fmt.Fprintf(opts.Stderr, "schema %s: %v\n", opts.Action, err)
		if errors.Is(err, schema.ErrDowngrade) || errors.Is(err, schema.ErrInvalidVersion) {
			return ExitUsage
		}
		return ExitFailure
	}

	if opts.JSONOutput {
		if err := json.NewEncoder(opts.Stdout).Encode(status); err != nil {
			_, _ = fmt.Fprintf(opts.Stderr, "schema: encode json: %v\n", err)
			return ExitFailure
		}
		return ExitOK
	}
	switch opts.Action {
	case SchemaInit:
		_, _ = fmt.Fprintf(opts.Stdout, "Schema ready at version %d.\n", status.Version)
	case SchemaRebuild:
		_, _ = fmt.Fprintf(opts.Stdout, "Schema rebuilt at version %d. All bills were removed.\n", status.Version)
	case SchemaVersion:
		if status.Version == 0 {
			_, _ = fmt.Fprintln(opts.Stdout, "Schema not initialised.")
		} else {
			_, _ = fmt.Fprintf(opts.Stdout, "Schema version %d.\n", status.Version)
		}
	}
	return ExitOK
}
