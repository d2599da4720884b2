// Package registry reads and writes the places that record which components
// are known.
//
// The local registry is the permission array of a Claude settings file
// (permissions.allow by default). Commands appear there as
// SlashCommand(/<plugin>:<name>) and skills as Skill(<plugin>:<name>);
// everything else in the array is somebody else's permission and is left
// alone. [SettingsFile] reads the array, builds the appended document and
// commits it atomically behind a version check.
//
// The remote registry is an Airtable table with one record per
// (plugin, kind, name). [Remote] is the small interface the checker and
// reconciler use; [Airtable] implements it over the REST API.
package registry
