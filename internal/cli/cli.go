// Package cli runs a single command from the command line: it calls the
// client, post-processes and formats the result, evaluates specs and picks
// the process exit code.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/studiowebux/webpagetest/internal/config"
	"github.com/studiowebux/webpagetest/internal/filter"
	"github.com/studiowebux/webpagetest/internal/mapping"
	"github.com/studiowebux/webpagetest/internal/server"
	"github.com/studiowebux/webpagetest/internal/specs"
	"github.com/studiowebux/webpagetest/internal/wpt"
)

// Output formats
const (
	FormatJSON = "json"
	FormatYAML = "yaml"
	FormatText = "text"
)

// Client runs client commands by name
type Client interface {
	Run(ctx context.Context, command, arg string, in mapping.Input) (*wpt.Response, error)
}

// RunOptions contains options for running a command in CLI mode
type RunOptions struct {
	Command  string
	Arg      string
	Input    mapping.Input
	Format   string // json, yaml, text
	Query    string // JMESPath query or $(bash command)
	Output   string // save the payload to this file instead of stdout
	Reporter string // specs reporter when none is given on the command
}

// Runner executes commands against a client
type Runner struct {
	Client Client
	Stdout io.Writer
	Stderr io.Writer
}

// NewRunner creates a runner writing to the process streams
func NewRunner(client Client) *Runner {
	return &Runner{Client: client, Stdout: os.Stdout, Stderr: os.Stderr}
}

// Run executes one command and returns the exit code: 0 on success, 1 on
// any error and the number of failed assertions when specs are evaluated
func (r *Runner) Run(ctx context.Context, opts RunOptions) int {
	cmd, resolved, err := mapping.ResolveCommand(opts.Command, opts.Input)
	if err != nil {
		r.writeError(err, opts.Format)
		return 1
	}

	res, err := r.Client.Run(ctx, cmd.Name, opts.Arg, opts.Input)
	if err != nil {
		r.writeError(err, opts.Format)
		return 1
	}

	if raw := resolved.String("specs"); raw != "" && evaluatesSpecs(cmd, resolved) {
		if report, ok := r.runSpecs(raw, res.Data); ok {
			reporter := resolved.String("reporter")
			if reporter == "" {
				reporter = opts.Reporter
			}
			if err := specs.Write(r.Stdout, reporter, report); err != nil {
				fmt.Fprintf(r.Stderr, "Error: failed to write report: %v\n", err)
				return 1
			}
			return report.Failures()
		}
	}

	if err := r.writeResult(ctx, res, opts); err != nil {
		r.writeError(err, opts.Format)
		return 1
	}
	return 0
}

// evaluatesSpecs reports whether the command yields test results: results
// itself, or a test that blocks until results are available
func evaluatesSpecs(cmd *mapping.Command, opts mapping.Options) bool {
	if opts.Bool("dryRun") {
		return false
	}
	switch cmd.Method {
	case mapping.MethodTestResults:
		return true
	case mapping.MethodRunTest:
		return opts.Has("pollResults") || opts.Has("waitResults")
	}
	return false
}

// runSpecs evaluates specs against results. ok is false when the test is
// not complete yet and the results should be printed instead.
func (r *Runner) runSpecs(raw string, data any) (*specs.Report, bool) {
	s, err := specs.Load(raw)
	if err != nil {
		return specs.ErrorReport(err), true
	}
	if !specs.Complete(data) {
		return nil, false
	}
	return specs.Run(s, data), true
}

func (r *Runner) writeResult(ctx context.Context, res *wpt.Response, opts RunOptions) error {
	var out []byte
	if raw, ok := res.Data.([]byte); ok && res.Binary {
		out = raw
	} else {
		data, err := filter.Apply(ctx, res.Data, opts.Query)
		if err != nil {
			return err
		}
		if out, err = Format(data, opts.Format); err != nil {
			return fmt.Errorf("failed to format output: %w", err)
		}
	}

	if opts.Output != "" {
		if err := os.WriteFile(opts.Output, out, config.FilePermissions); err != nil {
			return fmt.Errorf("failed to save response: %w", err)
		}
		fmt.Fprintf(r.Stderr, "Response saved to %s\n", opts.Output)
		return nil
	}

	_, err := r.Stdout.Write(out)
	return err
}

func (r *Runner) writeError(err error, format string) {
	_, payload := server.ErrorPayload(err)
	out, ferr := Format(payload, format)
	if ferr != nil {
		fmt.Fprintf(r.Stderr, "Error: %v\n", err)
		return
	}
	r.Stdout.Write(out)
}

// Format renders data in the given output format. Strings are written as
// is except in YAML.
func Format(data any, format string) ([]byte, error) {
	switch format {
	case FormatYAML:
		return yaml.Marshal(data)

	case FormatText:
		switch v := data.(type) {
		case nil:
			return []byte("\n"), nil
		case string, float64, int, bool:
			return []byte(fmt.Sprintf("%v\n", v)), nil
		}
		fallthrough

	case FormatJSON, "":
		if s, ok := data.(string); ok {
			return []byte(s + "\n"), nil
		}
		out, err := json.MarshalIndent(data, "", "  ")
		if err != nil {
			return nil, err
		}
		return append(out, '\n'), nil

	default:
		return nil, fmt.Errorf("unsupported output format: %s (use json, yaml or text)", format)
	}
}

// Listen serves the local proxy until ctx is done
func Listen(ctx context.Context, srv *server.Server, stdout io.Writer) error {
	if err := srv.Start(); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "listening for requests on %s\n", srv.Info().URL)

	<-ctx.Done()
	return srv.Stop()
}
