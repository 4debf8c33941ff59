package authz

import (
	"context"
	"crypto/hmac"
	"encoding/hex"
	"errors"
	"strings"

	"golang.org/x/crypto/sha3"
)

// ErrBadSignature is returned by a Verifier for a signature that does not
// match the challenge.
var ErrBadSignature = errors.New("signature does not match challenge")

// Signer is the external wallet that signs challenge messages. Sign blocks
// until the user answers or ctx ends.
type Signer interface {
	Sign(ctx context.Context, message string) (string, error)
}

// Verifier checks a signature against the challenge it claims to sign.
type Verifier interface {
	Verify(message, signature string) error
}

// KeySigner signs with a shared secret: the signature is the hex HMAC
// (Keccak-256) of the challenge digest.
type KeySigner struct {
	key []byte
}

// NewKeySigner creates a signer for key.
func NewKeySigner(key []byte) *KeySigner {
	return &KeySigner{key: key}
}

// Sign implements Signer.
func (s *KeySigner) Sign(ctx context.Context, message string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return "0x" + hex.EncodeToString(mac(s.key, message)), nil
}

// HMACVerifier accepts signatures produced by a KeySigner with the same key.
type HMACVerifier struct {
	key []byte
}

// NewHMACVerifier creates a verifier for key.
func NewHMACVerifier(key []byte) *HMACVerifier {
	return &HMACVerifier{key: key}
}

// Verify implements Verifier.
func (v *HMACVerifier) Verify(message, signature string) error {
	got, err := hex.DecodeString(strings.TrimPrefix(signature, "0x"))
	if err != nil {
		return ErrBadSignature
	}
	if !hmac.Equal(got, mac(v.key, message)) {
		return ErrBadSignature
	}
	return nil
}

func mac(key []byte, message string) []byte {
	m := hmac.New(sha3.NewLegacyKeccak256, key)
	m.Write(Digest(message))
	return m.Sum(nil)
}
