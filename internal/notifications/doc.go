// Package notifications delivers job and queue events via ntfy.
//
// The default implementation publishes to the ntfy topic configured in
// config.toml and degrades to a no-op when no topic is set. Individual events
// can be switched off in the [notifications] section; the workflow manager
// only depends on the Service interface.
package notifications
