// Package pipeline models the stages of a single deployment and derives the
// views the viewer renders from them: the layered stage graph, the default
// active stage and the per-stage kind.
//
// Everything here is pure. Stage lists are immutable snapshots from the
// control plane; functions return fresh values and never mutate their input.
package pipeline
