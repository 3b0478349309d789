// Package logging configures the slog loggers used by rushtpl.
//
// The engine and the CLI take a *slog.Logger. The CLI builds one from its
// --log-level and --log-format flags:
//
//	logger := logging.New(logging.Config{
//	    Level:  logging.ParseLevel("debug"),
//	    Format: logging.FormatJSON,
//	})
//
// Library callers that do not want output pass logging.Nop().
package logging
