// Package logging provides structured logging for the marketsync CLI using slog.
//
// Text output goes through [Handler], which colours levels on a terminal and
// masks anything that looks like a credential (the Airtable token in
// particular). JSON output uses the standard library handler. A logger is
// carried in the command context:
//
//	ctx = logging.NewContext(ctx, logger)
//	logging.FromContext(ctx).Info("scanning", "root", root)
//
// # Levels
//
// [LevelFromVerbosity] maps the count of -v flags to a level. Zero flags
// keeps the CLI quiet except for warnings such as "remote check skipped".
// [LevelTrace] sits below debug for per-file scan output.
//
// # Testing
//
// Use [ForTest] to route log output through t.Log.
package logging
