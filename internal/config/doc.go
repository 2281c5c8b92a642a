// Package config loads pipeview's TOML configuration.
//
// # Configuration Discovery
//
//  1. If a path is explicitly provided, use it
//  2. Otherwise, use ~/.config/pipeview/config.toml
//  3. If the file doesn't exist, fall back to Default()
//  4. If the file exists but fields are missing or empty, use defaults
//
// # Fields
//
//	api_address       = "127.0.0.1:9090"   # host:port or URL of the control plane
//	api_token         = ""                 # sent as a bearer token when set
//	poll_interval     = "2s"               # deployment snapshot refresh
//	log_poll_interval = "2s"               # active stage log refresh
//	approval_stage    = "WAIT_APPROVAL"    # stage name treated as an approval gate
//	require_policy    = "promote"          # promote | drop, for dangling requires
//	metrics_address   = ""                 # e.g. "127.0.0.1:9464", empty disables
//	log_level         = "info"             # debug | info | warn | error
//	state_dir         = "~/.local/state/pipeview"
//
// Values are trimmed and paths have ~ expanded. Intervals below 250ms are
// raised to 250ms. Parse errors are wrapped with "parse config".
package config
