// Package app is the composition root of pipeview.
//
// # Overview
//
// Run loads configuration and preferences, points slog at the log file
// (the TUI owns the terminal), builds the control plane client and starts
// the background loops next to the UI:
//
//	┌──────────────┐
//	│   Run()      │
//	└──────┬───────┘
//	       ├─────> config.Load()          Read config.toml
//	       ├─────> logging.ConfigureFile() slog to ~/.local/state/pipeview
//	       ├─────> pipecd.NewClient()     HTTP + websocket client
//	       ├─────> refresh()              First snapshot before the UI draws
//	       └─────> errgroup
//	                ├─ runPoller()        FetchDeployment on a ticker
//	                ├─ runWatcher()       WatchDeployment push stream
//	                ├─ metrics.Serve()    optional /metrics listener
//	                └─ ui.Run()           blocks; cancels the rest on exit
//
// # Polling Behavior
//
// The poller and the watcher both write into one state.Store. The store
// ignores snapshots older than the one it holds, so a slow poll never undoes
// a pushed update. Failed polls back off exponentially from the configured
// interval up to 30 seconds; a server without the watch endpoint leaves the
// poller on its own.
//
// # Error Handling
//
// Only configuration, logging and client construction errors are returned
// from Run. Poll and watch failures are logged, counted in the store and
// shown in the header.
package app
