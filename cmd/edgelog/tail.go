package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	tea "charm.land/bubbletea/v2"

	"go.jacobcolvin.com/edgelog/log"
	"go.jacobcolvin.com/edgelog/log/httplog"
)

const (
	maxBodyBytes    = 1 << 20
	shutdownTimeout = 5 * time.Second

	// headerLogger names the logger of a plain-text record.
	headerLogger = "X-Logger"
	// fieldInstanceID carries the sender's [httplog.HeaderInstanceID].
	fieldInstanceID = "instance_id"

	displayTemplate = "{timestamp} {level} {name}: {message}"
)

type tailOptions struct {
	output *log.Config
	addr   string
	plain  bool
}

func (a *app) newTailCmd() *cobra.Command {
	opts := &tailOptions{
		output: log.Flags{Level: "min-level", Format: "output-format"}.NewConfig(),
	}

	cmd := &cobra.Command{
		Use:   "tail [flags]",
		Short: "Receive records over HTTP and display them",
		Long: `tail listens for records POSTed by edgelog send or any HTTP delivery handler.
JSON bodies are decoded as structured records; any other body is shown as
an INFO record whose logger is taken from the X-Logger header.

When stdout is a terminal, records are shown in a full-screen view; press q
to quit. Otherwise each record is written as one line.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return a.runTail(ctx, opts)
		},
	}

	flags := cmd.Flags()
	opts.output.RegisterFlags(flags)
	flags.StringVar(&opts.addr, "addr", ":8080", "address to listen on")
	flags.BoolVar(&opts.plain, "plain", false, "write lines even when stdout is a terminal")

	completionErr := opts.output.RegisterCompletions(cmd)
	if completionErr != nil {
		fmt.Fprintf(a.stderr, "register completions: %v\n", completionErr)
	}

	return cmd
}

func (a *app) runTail(ctx context.Context, opts *tailOptions) error {
	reg := log.NewRegistry(log.WithDiagnostics(a.diag), log.WithRootLevel(log.LevelDebug))
	defer reg.Shutdown()

	useTUI := !opts.plain && a.stdout == os.Stdout && term.IsTerminal(int(os.Stdout.Fd()))

	level, formatter, err := displaySettings(opts.output)
	if err != nil {
		return err
	}

	var (
		h   log.Handler
		sub *log.Subscription
	)

	if useTUI {
		pub, err := log.NewPublisher("tui", log.WithBufferSize(256))
		if err != nil {
			return err
		}

		sub = pub.Subscribe()
		h = pub
	} else {
		h, err = log.NewStreamHandler("stdout", a.stdout)
		if err != nil {
			return err
		}
	}

	err = h.SetLevel(level)
	if err != nil {
		return err
	}

	err = h.SetFormatter(formatter)
	if err != nil {
		return err
	}

	err = reg.Root().AddHandler(h)
	if err != nil {
		return err
	}

	ln, err := (&net.ListenConfig{}).Listen(ctx, "tcp", opts.addr)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}

	srv := &http.Server{
		Handler:           newReceiver(reg.Root(), a.diag),
		ReadHeaderTimeout: 5 * time.Second,
	}

	serveErr := make(chan error, 1)

	go func() {
		serveErr <- srv.Serve(ln)
	}()

	a.diag.Info("listening", "addr", ln.Addr().String())

	if useTUI {
		p := tea.NewProgram(newTailModel(sub, ln.Addr().String()), tea.WithContext(ctx))

		go func() {
			<-ctx.Done()
			p.Quit()
		}()

		_, err = p.Run()
		if err != nil && !errors.Is(err, tea.ErrProgramKilled) {
			a.diag.Error("tui", "error", err)
		}
	} else {
		select {
		case <-ctx.Done():
		case err := <-serveErr:
			if !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("serve: %w", err)
			}
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()

	err = srv.Shutdown(shutdownCtx)
	if err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	return nil
}

// displaySettings resolves the display level and formatter. The text
// format includes the level and logger name, which a bare message would
// lose.
func displaySettings(cfg *log.Config) (log.Level, log.Formatter, error) {
	lvl, err := log.ParseLevel(cfg.Level)
	if err != nil {
		return 0, nil, fmt.Errorf("--%s: %w", cfg.Flags.Level, err)
	}

	logFmt, err := log.ParseFormat(cfg.Format)
	if err != nil {
		return 0, nil, fmt.Errorf("--%s: %w", cfg.Flags.Format, err)
	}

	if logFmt == log.FormatText {
		return lvl, log.TextFormatter{Template: displayTemplate}, nil
	}

	return lvl, log.NewFormatter(logFmt), nil
}

// receiver accepts POSTed records and dispatches them through a logger.
type receiver struct {
	logger *log.Logger
	diag   *slog.Logger
	now    func() time.Time
}

func newReceiver(logger *log.Logger, diag *slog.Logger) *receiver {
	return &receiver{logger: logger, diag: diag, now: time.Now}
}

func (rv *receiver) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)

		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			http.Error(w, "request body too large", http.StatusRequestEntityTooLarge)

			return
		}

		http.Error(w, "read body", http.StatusBadRequest)

		return
	}

	rec, err := rv.decode(r, body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)

		return
	}

	err = rv.logger.Handle(rec)
	if err != nil {
		rv.diag.Error("display record", "logger", rec.LoggerName, "error", err)
		http.Error(w, "display record", http.StatusInternalServerError)

		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (rv *receiver) decode(r *http.Request, body []byte) (log.Record, error) {
	var rec log.Record

	if isJSON(r.Header.Get("Content-Type"), body) {
		var err error

		rec, err = log.ParseJSONRecord(body, "")
		if err != nil {
			return log.Record{}, err
		}
	} else {
		rec = log.Record{
			LoggerName: r.Header.Get(headerLogger),
			Message:    string(bytes.TrimSpace(body)),
		}
	}

	if rec.Time.IsZero() {
		rec.Time = rv.now()
	}

	if rec.Level == log.LevelNotSet {
		rec.Level = log.LevelInfo
	}

	if id := r.Header.Get(httplog.HeaderInstanceID); id != "" {
		if _, ok := rec.Extra[fieldInstanceID]; !ok {
			rec.Extra = rec.Extra.Merge(log.Fields{fieldInstanceID: id})
		}
	}

	return rec, nil
}

func isJSON(contentType string, body []byte) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err == nil {
		return mediaType == "application/json"
	}

	return bytes.HasPrefix(bytes.TrimSpace(body), []byte("{"))
}
