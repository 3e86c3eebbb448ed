// Package storage persists the snapshot of seen entry ids.
//
// Drivers:
//   - file: a single JSON document replaced atomically (tmp + fsync + rename),
//     plus an append-only deliveries journal
//   - sqlite: one table of ids replaced inside a transaction
//   - memory: process lifetime only (ephemeral deployments)
package storage
