package authz

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/sha3"
)

// DefaultDurationDays is the validity window of a challenge.
const DefaultDurationDays = 30

// publicKeyHexDigits is the length of generated key material, without the
// 0x prefix.
const publicKeyHexDigits = 2000

// ChallengeParams are the values bound into a challenge message.
type ChallengeParams struct {
	PublicKey       string
	ContractAddress string
	ChainID         int64
	StartTimestamp  int64
	DurationDays    int
}

// Message renders the challenge. Field order is fixed, one field per line,
// no trailing newline.
func (p ChallengeParams) Message() string {
	var b strings.Builder
	b.WriteString("publickey:")
	b.WriteString(p.PublicKey)
	b.WriteString("\ncontractAddresses:")
	b.WriteString(p.ContractAddress)
	b.WriteString("\ncontractsChainId:")
	b.WriteString(strconv.FormatInt(p.ChainID, 10))
	b.WriteString("\nstartTimestamp:")
	b.WriteString(strconv.FormatInt(p.StartTimestamp, 10))
	b.WriteString("\ndurationDays:")
	b.WriteString(strconv.Itoa(p.DurationDays))
	return b.String()
}

// Window returns the validity interval [start, start+DurationDays).
func (p ChallengeParams) Window() (notBefore, notAfter time.Time) {
	notBefore = time.Unix(p.StartTimestamp, 0).UTC()
	notAfter = notBefore.AddDate(0, 0, p.DurationDays)
	return notBefore, notAfter
}

// GeneratePublicKey returns "0x" followed by 2000 random hex digits.
// A nil reader selects crypto/rand.
func GeneratePublicKey(r io.Reader) (string, error) {
	if r == nil {
		r = rand.Reader
	}
	buf := make([]byte, publicKeyHexDigits/2)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", fmt.Errorf("generate public key: %w", err)
	}
	return "0x" + hex.EncodeToString(buf), nil
}

// Digest is the EIP-191 personal-message hash of message:
// keccak256("\x19Ethereum Signed Message:\n" + len(message) + message).
func Digest(message string) []byte {
	h := sha3.NewLegacyKeccak256()
	fmt.Fprintf(h, "\x19Ethereum Signed Message:\n%d%s", len(message), message)
	return h.Sum(nil)
}
