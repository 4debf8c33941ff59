// Package authz gates decryption of record scores behind a signed
// challenge.
//
// Each decrypt attempt is a small state machine:
//
//	Idle ──RequestChallenge──► ChallengeIssued ──Authorize──► Authorized
//	                                  │
//	                                  ├── signer declines ──► Rejected
//	                                  └── caller cancels  ──► Cancelled
//
// The challenge binds the recipient public key material, the contract
// address, the chain id and a validity window into a fixed five-line
// message. Only an Authorized attempt yields a Token, and Reveal decodes a
// ciphertext only when handed a Token whose window covers the current time.
//
// # Verification modes
//
// Simulated mode (the default) accepts any non-empty signature as evidence
// of intent, matching the behaviour of the deployed front-end. It does not
// prove that the signer holds any key.
//
// Hardened mode is enabled by configuring a Verifier. Authorize then checks
// the signature against the challenge digest before issuing a Token.
// KeySigner and HMACVerifier form a matching shared-key pair.
//
// In both modes a Token is valid only inside [start, start+durationDays).
// Reveal rejects a Token outside that window with SIGNATURE_REJECTED, which
// is stricter than the deployed front-end, where the window is carried in
// the signed message but never checked.
//
// Revealed plaintext lives only in a Session, in memory, and is never
// written to the ledger.
package authz
