// Package log provides named loggers with named, individually configurable
// handlers, and structured formatters for their records.
//
// A [Registry] holds one [Logger] per name. Records pass the logger's
// effective level first and then each handler's own level, so the two form
// an AND filter. Handlers are managed by name:
//
//	logger := log.GetLogger("app.db")
//
//	console, err := log.NewStreamHandler("console", os.Stderr)
//	logger.AddHandler(console)
//
//	logger.SetHandlerLevel("console", log.LevelWarning)
//	logger.SetHandlerFormatter("console", log.JSONFormatter{})
//
//	logger.Info("connected", log.Fields{"host": "db1", "latency_ms": 12})
//	// {"timestamp":"...","level":"INFO","name":"app.db","message":"connected","host":"db1","latency_ms":12}
//
// Level names are parsed with [ParseLevel], which also accepts numeric
// ranks ("30"). Formatters are [TextFormatter] (the default),
// [JSONFormatter] and [LogfmtFormatter]; any value implementing
// [Formatter] works.
//
// # Errors
//
// Misconfiguration surfaces immediately: [ErrInvalidLevel],
// [ErrHandlerNotFound], and [ErrSerialization] for extra fields a formatter
// cannot encode. Delivery failures ([ErrDelivery]) never reach the logging
// call; they are reported to the registry's diagnostics [slog.Logger].
//
// # Handlers
//
// [StreamHandler] writes lines to an [io.Writer]. [Publisher] fans out
// formatted entries to subscribers, which is useful for displaying logs
// inside a Bubble Tea TUI:
//
//	pub, err := log.NewPublisher("tui")
//	logger.AddHandler(pub)
//
//	sub := pub.Subscribe()
//	go func() {
//	    for entry := range sub.C() {
//	        // Deliver entry to the TUI.
//	    }
//	}()
//
// [AsyncHandler] moves any handler off the caller's goroutine behind a
// bounded queue with a [DropPolicy]. The HTTP delivery handler lives in
// package httplog.
//
// # Configuration and diagnostics
//
// [Config] binds a level and format to CLI flags via
// [github.com/spf13/pflag], with shell completion support via
// [github.com/spf13/cobra]:
//
//	cfg := log.NewConfig()
//	cfg.RegisterFlags(rootCmd.PersistentFlags())
//	cfg.RegisterCompletions(rootCmd)
//
//	diag, err := cfg.NewDiagnostics(os.Stderr)
//	reg := log.NewRegistry(log.WithDiagnostics(diag))
//
// Code written against log/slog can log through a [Logger] with
// [Logger.SlogHandler].
package log
