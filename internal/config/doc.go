// Package config loads, normalizes, and validates pxsubmit configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours OSDF_* and PRIDE_* environment
// fallbacks plus the legacy key=value credentials file. The Config type
// centralizes every knob the CLI needs so study database credentials, upload
// targets and project metadata are discovered in one pass.
package config
