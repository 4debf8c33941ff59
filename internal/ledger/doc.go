// Package ledger provides the key/value stores that hold record blobs and
// the KeyIndex.
//
// Three backends are available:
//   - Memory: process-local map, used by tests and the scenario harness
//   - SQLite: kv(key, value, version) table with WAL journaling
//   - Pebble: embedded LSM store, values prefixed with an 8-byte version
//
// All three implement Versioned. Wrap one with Plain to reproduce a ledger
// that only offers get and set, which is what the chain contract exposes.
//
// # Database Configuration (SQLite)
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Kept for parity with future tables
package ledger
