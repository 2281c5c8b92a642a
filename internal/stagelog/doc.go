// Package stagelog fetches and accumulates the log of the active stage.
//
// A Scheduler owns one polling task at a time. Activating a new key cancels
// the previous task and any response that arrives for an abandoned key is
// dropped before it touches the new key's blocks. Each block's text is run
// through ansilog.Decode as it is merged.
package stagelog
