// Package notifications announces finished and failed submission runs.
//
// The default implementation publishes to ntfy using the topic configured in
// config.toml and degrades to a no-op when notifications are disabled.
package notifications
