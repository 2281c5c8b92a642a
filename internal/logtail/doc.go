// Package logtail reads the tail of a line-oriented log.
//
// Tail makes a single pass over its input and holds at most twice the
// requested number of lines at any time, so large logs are cheap to cap.
// Every Line keeps its zero-based position in the input; the fixture server
// uses that position as the log block index.
//
// Lines are returned verbatim with escape sequences intact. Read treats a
// missing file as empty.
package logtail
