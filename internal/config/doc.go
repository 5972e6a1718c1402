// Package config handles configuration loading for coven-relay.
//
// # Overview
//
// Configuration is read from a TOML file (or YAML when the file name ends in
// .yaml or .yml) with environment variable expansion. A missing file is
// allowed: the relay can run from environment variables alone.
//
// # Configuration File
//
// Default location (first match wins):
//
//  1. Path from COVEN_RELAY_CONFIG environment variable
//  2. $XDG_CONFIG_HOME/coven/relay.toml
//  3. ~/.config/coven/relay.toml
//
// # Environment Variable Expansion
//
// Values can reference environment variables:
//
//	[telegram]
//	bot_token = "${TELEGRAM_BOT_TOKEN}"
//
// Unset variables expand to the empty string.
//
// # Environment Fallbacks
//
// Fields left empty by the file are taken from:
//
//   - TELEGRAM_BOT_TOKEN: telegram.bot_token
//   - ALLOWED_USERS: telegram.allowed_users (comma separated)
//   - CLAUDE_WORKSPACE: agent.workspace
//   - CLAUDE_PATH: agent.binary
//
// # Duration Parsing
//
// Durations use Go's time.ParseDuration syntax:
//
//	[agent]
//	timeout = "10m"
//
// # Validation
//
// Load validates the result. At least one frontend must be configured: a
// Telegram bot token, or an enabled Matrix section with homeserver, username
// and password.
package config
