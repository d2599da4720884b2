// Package reconcile turns registry diffs into a report and, in fix mode,
// applies the missing entries.
//
// Validate never writes. Fix appends missing keys to the settings file after
// taking a backup, guarded by the version captured when the file was read,
// and then pushes remote-missing entries best-effort. Orphans are reported
// and never removed.
//
// Both modes produce a [Report]. Its [Report.ExitCode] is 0 only when nothing
// is left unresolved; errors returned alongside a report are fatal.
package reconcile
