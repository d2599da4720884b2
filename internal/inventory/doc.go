// Package inventory discovers the commands, agents and skills a marketplace
// declares by convention:
//
//	<root>/plugins/<plugin>/commands/<name>.md   command
//	<root>/plugins/<plugin>/agents/<name>.md     agent
//	<root>/plugins/<plugin>/skills/<name>/       skill
//
// A component's identity is the (plugin, kind, name) triple derived from its
// path by [Derive]. With case folding enabled two files whose triples differ
// only in case are one identity; the [Scanner] reports them as a [Conflict]
// instead of picking one.
//
// Scanning is read-only. Any directory that exists but cannot be read fails
// the whole scan with an error marked errors.ErrFatalInput, because a partial
// inventory would make registered components look orphaned.
package inventory
