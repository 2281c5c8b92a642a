// Package ui provides the terminal user interface for pipeview.
//
// # Architecture Overview
//
// The UI is a Bubble Tea program. Model owns a viewer.Session, which in turn
// owns the active stage, the approve and skip confirmation flows and the log
// scheduler. Every session call happens on the Bubble Tea event loop; the log
// scheduler polls on its own goroutine and wakes the loop with a
// logUpdatedMsg.
//
// # Package Structure
//
//   - app.go: Model, messages, key handling and Run
//   - pipeline.go: stage columns, one per graph layer, with a cursor
//   - logs.go: the log panel rendered from decoded ANSI cells
//   - header.go: deployment status bar and status line
//   - modal.go: the approve/skip confirmation dialog
//   - help.go: help overlay and footer hints
//   - keys.go: key bindings
//   - theme.go, bar.go: palettes and the background-preserving status bar
//
// # Data Flow
//
//	tickMsg ──> store.Snapshot() ──> snapshotMsg ──> session.Load()
//	                                                   │
//	enter ──> session.Select()                         ├─> tracker re-selects
//	x     ──> session.Close()                          └─> scheduler.SetRunning
//	a / s ──> flow.Request() ──> confirmModal ──y──> flow.Confirm() ──> Command.Send
//
// Stage commands never block the event loop; their outcome arrives as a
// commandResultMsg and triggers an immediate snapshot refresh.
//
// # Themes
//
// Three palettes are available (Nightfox, Kanagawa, Slate) and cycle with T.
// The choice and the follow toggle persist through the prefs package.
package ui
