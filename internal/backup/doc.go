// Package backup manages timestamped copies of the settings file.
//
// Backups live next to the file they protect:
//
//	~/.claude/
//	├── settings.json
//	├── settings.json.backup.20261019T101500
//	└── settings.json.backup.20261019T101500-2
//
// The identifier is the creation time in 20060102T150405 form. A second
// backup within the same second gets a -N counter suffix, so identifiers
// never collide. Backups are created exclusively and never overwritten.
//
// # Creating Backups
//
//	mgr := backup.NewManager(backup.WithRetentionCount(10))
//	b, err := mgr.Create("/home/me/.claude/settings.json")
//
// # Restoring
//
// [Manager.Restore] verifies the backup exists, backs up the current file and
// then replaces it atomically with the backup content.
//
// # Retention
//
// [Manager.Prune] removes all but the newest backups. [Manager.PruneToRetention]
// applies the manager's configured retention count.
package backup
