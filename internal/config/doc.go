// Package config loads marketsync configuration with Viper.
//
// Values come from, in increasing precedence: built-in defaults, a YAML
// config file, and environment variables. The config file is config.yaml in
// the working directory or in $XDG_CONFIG_HOME/marketsync, or the file named
// by --config:
//
//	root: .
//	settings:
//	  path: ~/.claude/settings.json
//	  key_path: permissions.allow
//	scan:
//	  case_insensitive: true
//	backup:
//	  retention: 10
//	remote:
//	  enabled: true
//	  base_url: https://api.airtable.com/v0
//	  base_id: appXXXXXXXXXXXXXX
//	  table: Components
//	  timeout: 5s
//
// Every key can be overridden as MARKETSYNC_<KEY> with dots replaced by
// underscores (MARKETSYNC_SETTINGS_PATH). The Airtable credentials also fall
// back to AIRTABLE_TOKEN and AIRTABLE_BASE_ID. The token is never written by
// "config init".
//
// [Load] validates the result; [Validate] can be called directly and returns
// every problem found rather than the first.
package config
