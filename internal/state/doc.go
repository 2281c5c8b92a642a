// Package state provides thread-safe state management for pipeview.
//
// # Overview
//
// The Store is where the deployment snapshots from the background poller and
// the websocket watcher meet the UI. Both producers call Update; the UI reads
// Snapshot on its own tick.
//
//	Producers:                     Consumer (UI):
//	┌────────────────────┐        ┌──────────────────┐
//	│ FetchDeployment()  │        │                  │
//	│ WatchDeployment()  │        │                  │
//	│      ↓             │        │                  │
//	│ store.Update()     │───────→│ store.Snapshot() │
//	└────────────────────┘ (mutex)└──────────────────┘
//
// # Update Semantics
//
//	// Success: replace the deployment, clear the error
//	store.Update(&d, state.SourcePoll, nil)
//
//	// Error: keep the deployment, record the error, count the failure
//	store.Update(nil, state.SourcePoll, err)
//
// A deployment whose UpdatedAt is older than the stored one for the same id
// is dropped, so a slow poll response cannot roll back a newer pushed
// snapshot. Version increases on every accepted deployment and lets the UI
// skip re-deriving views when nothing changed.
//
// # Defensive Copying
//
// Update and Snapshot deep copy stages, their requires lists and metadata
// maps, so neither side can mutate what the other holds.
//
// The zero Store is ready to use.
package state
