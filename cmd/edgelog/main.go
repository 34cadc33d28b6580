// Command edgelog ships log records to an HTTP collector and receives
// them.
//
// # Usage
//
//	edgelog send --url https://logs.example.com/ingest --record-format json \
//		--level error --field city='"san francisco"' --field temp=72 disk almost full
//	edgelog send --config logging.yaml --logger app.db connection lost
//	edgelog tail --addr :8080
//	edgelog schema > logging.schema.json
//	edgelog version
//
// The persistent flags --log-level and --log-format control edgelog's own
// diagnostics on stderr, which include delivery failures.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync/atomic"

	"github.com/spf13/cobra"

	"go.jacobcolvin.com/edgelog/log"
	"go.jacobcolvin.com/edgelog/log/logconfig"
	"go.jacobcolvin.com/edgelog/version"
)

func main() {
	err := newRootCmd(os.Stdout, os.Stderr).Execute()
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}

// app holds state shared by all subcommands.
type app struct {
	stdout io.Writer
	stderr io.Writer
	logCfg *log.Config
	diag   *slog.Logger
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	a := &app{
		stdout: stdout,
		stderr: stderr,
		logCfg: log.NewConfig(),
	}

	rootCmd := &cobra.Command{
		Use:   "edgelog",
		Short: "Ship log records over HTTP and receive them",
		Long: `edgelog sends structured log records to an HTTP collector, either directly
or through a YAML logging configuration, and runs a small receiver that
displays records POSTed to it.`,
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			diag, err := a.logCfg.NewDiagnostics(a.stderr)
			if err != nil {
				return err
			}

			a.diag = diag

			return nil
		},
	}

	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)

	a.logCfg.RegisterFlags(rootCmd.PersistentFlags())

	completionErr := a.logCfg.RegisterCompletions(rootCmd)
	if completionErr != nil {
		fmt.Fprintf(stderr, "register completions: %v\n", completionErr)
	}

	rootCmd.AddCommand(
		a.newSendCmd(),
		a.newTailCmd(),
		a.newSchemaCmd(),
		a.newVersionCmd(),
	)

	return rootCmd
}

func (a *app) newSchemaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Print the JSON Schema for logging configuration files",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			s, err := logconfig.Schema()
			if err != nil {
				return err
			}

			out, err := json.MarshalIndent(s, "", "  ")
			if err != nil {
				return fmt.Errorf("encode schema: %w", err)
			}

			out = append(out, '\n')

			_, err = a.stdout.Write(out)
			if err != nil {
				return fmt.Errorf("write schema: %w", err)
			}

			return nil
		},
	}
}

func (a *app) newVersionCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			info := version.Get()

			if asJSON {
				enc := json.NewEncoder(a.stdout)
				enc.SetIndent("", "  ")

				return enc.Encode(info)
			}

			_, err := fmt.Fprintln(a.stdout, info.String())

			return err
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print as JSON")

	return cmd
}

// failureCounter counts diagnostics at [slog.LevelError] and above, which
// is how the registry reports delivery failures, regardless of the level
// the wrapped handler is configured with.
type failureCounter struct {
	slog.Handler

	n *atomic.Int64
}

func countFailures(diag *slog.Logger) (*slog.Logger, *atomic.Int64) {
	n := &atomic.Int64{}

	return slog.New(failureCounter{Handler: diag.Handler(), n: n}), n
}

func (f failureCounter) Enabled(ctx context.Context, level slog.Level) bool {
	return level >= slog.LevelError || f.Handler.Enabled(ctx, level)
}

func (f failureCounter) Handle(ctx context.Context, r slog.Record) error {
	if r.Level >= slog.LevelError {
		f.n.Add(1)
	}

	if !f.Handler.Enabled(ctx, r.Level) {
		return nil
	}

	return f.Handler.Handle(ctx, r)
}

func (f failureCounter) WithAttrs(attrs []slog.Attr) slog.Handler {
	return failureCounter{Handler: f.Handler.WithAttrs(attrs), n: f.n}
}

func (f failureCounter) WithGroup(name string) slog.Handler {
	return failureCounter{Handler: f.Handler.WithGroup(name), n: f.n}
}
