// Package config loads and validates the hub server configuration from YAML.
//
// The config file has a single `server:` section covering the HTTP listener,
// notify-API authentication, connection liveness/backpressure tuning, driver
// location retention, and optional webhook targets. Secrets (API keys,
// webhook URLs) are referenced by environment variable name, never stored in
// the file itself.
//
// Watch provides fsnotify-based hot reload; the caller decides which of the
// reloaded settings can be applied to a running server.
package config
