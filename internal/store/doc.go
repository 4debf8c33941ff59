// Package store is the Record Store: CRUD for learning records over a
// ledger that offers no transactions.
//
// Layout on the ledger:
//   - record_keys: the KeyIndex, a JSON array of record ids
//   - record_<id>: one JSON blob per record (see record.Blob)
//
// # Critical Patterns
//
// Blob before index:
//   - CreateRecord writes the record blob first and only then appends its id
//   - A crash in between leaves an unindexed blob, never a dangling id
//
// Index append:
//   - Versioned ledgers: read the index with its version, append, then
//     compare-and-set; a lost race re-reads and retries, paced by a rate
//     limiter, so concurrent creators converge on an index holding every id
//   - Plain ledgers: read-modify-write; two concurrent creators can lose
//     one id from the index even though both blobs exist
//   - An id already present is never appended twice
//
// Lenient reads:
//   - A malformed KeyIndex reads as empty and is logged
//   - Missing or malformed record blobs are skipped during listing and logged
//   - A later append over a malformed index replaces it, dropping whatever
//     ids it held
//
// Deterministic listing:
//   - ListRecords orders by timestamp DESC, then id DESC
package store
