// Package record defines the learning record model shared by every other
// fhetutor package.
//
// This package contains types, the blob schema used on the ledger, the
// subject catalogue and the error taxonomy. It imports nothing internal, so
// it stays the foundational layer with no circular dependencies.
//
// Key constraints:
//   - EncryptedScore always holds codec output, never a plaintext number
//   - Status only moves forward: pending -> analyzed -> archived, or
//     pending -> archived directly; archived is terminal
//   - ID, Timestamp and Owner are fixed at creation
//   - Blob JSON keys follow the ledger layout (score, studyHours, ...), not
//     the Go field names
package record
