// Package logx wraps zerolog behind a small Logger value used across
// ticketwatch.
//
// Console output is short and human readable; the optional file sink writes
// JSON lines. Level and sinks can be swapped while running, which is how a
// reloaded logging section takes effect without a restart.
package logx
