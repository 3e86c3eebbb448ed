// Package notifier fans each new entry out to every configured channel.
//
// Each delivery is isolated: it gets its own timeout and panic guard, and a
// failure on one channel never stops the others or the next entry. Chat
// channels that ask for pacing get a per-channel rate limiter so two sends on
// the same channel are at least Pace() apart.
//
// # History
//
// For operator visibility the service keeps a small in-memory history of
// recent delivery outcomes, and appends each one to the store's journal.
package notifier
