// Package codec represents plaintext scores as opaque ciphertext strings and
// computes over them.
//
// The Simulated codec is a stand-in for a homomorphic backend: Transform
// decodes, computes in the plaintext domain and re-encodes. Callers only ever
// see ciphertext in and ciphertext out, so a genuine backend can replace it
// behind the Codec interface without touching them.
package codec

import (
	"encoding/base64"
	"math"
	"math/rand/v2"
	"regexp"
	"strconv"
	"strings"

	"github.com/roach88/fhetutor/internal/record"
)

// Tag prefixes every ciphertext produced by Encode.
const Tag = "FHE-"

// Operation names a computation applied by Transform.
type Operation string

const (
	// OpAnalyze scales the value by 0.8 and adds uniform noise in [0, 20).
	OpAnalyze Operation = "analyze"
	// OpImprove scales the value by 1.15.
	OpImprove Operation = "improve"
	// OpIdentity leaves the value unchanged. Unknown names behave the same.
	OpIdentity Operation = "identity"
)

const (
	analyzeScale = 0.8
	analyzeNoise = 20.0
	improveScale = 1.15
)

// Codec encodes scores into ciphertext and transforms ciphertext.
type Codec interface {
	Encode(value float64) string
	Decode(ciphertext string) (float64, error)
	Transform(ciphertext string, op Operation) (string, error)
}

// Simulated is the reversible, non-secret codec used by the ledger format:
// "FHE-" + base64(decimal string of the value).
//
// Thread-safety: Simulated is safe for concurrent use if its noise source is.
type Simulated struct {
	noise func() float64
}

// Option configures a Simulated codec.
type Option func(*Simulated)

// WithNoise replaces the noise source. fn must return values in [0, 1).
func WithNoise(fn func() float64) Option {
	return func(s *Simulated) {
		s.noise = fn
	}
}

// NewSimulated creates the simulated codec. Noise defaults to math/rand/v2.
func NewSimulated(opts ...Option) *Simulated {
	s := &Simulated{noise: rand.Float64}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Encode returns the tagged ciphertext for value. It is deterministic.
func (s *Simulated) Encode(value float64) string {
	return Tag + base64.StdEncoding.EncodeToString([]byte(formatNumber(value)))
}

// Decode inverts Encode. Untagged input is parsed as a bare number so that
// legacy ciphertexts stay readable.
func (s *Simulated) Decode(ciphertext string) (float64, error) {
	if payload, ok := strings.CutPrefix(ciphertext, Tag); ok {
		raw, err := base64.StdEncoding.DecodeString(payload)
		if err != nil {
			return 0, record.NewFormatError("ciphertext payload is not base64", err)
		}
		return parseLeadingNumber(string(raw))
	}
	return parseLeadingNumber(ciphertext)
}

// Transform applies op to the value behind ciphertext and returns a fresh
// ciphertext. OpAnalyze is non-deterministic.
func (s *Simulated) Transform(ciphertext string, op Operation) (string, error) {
	value, err := s.Decode(ciphertext)
	if err != nil {
		return "", err
	}

	result := value
	switch op {
	case OpAnalyze:
		result = value*analyzeScale + s.noise()*analyzeNoise
	case OpImprove:
		result = value * improveScale
	}

	return s.Encode(result), nil
}

// formatNumber renders v the way the ledger's original writer did:
// shortest round-trip decimal, no exponent, and JavaScript spellings for
// the non-finite values.
func formatNumber(v float64) string {
	switch {
	case math.IsNaN(v):
		return "NaN"
	case math.IsInf(v, 1):
		return "Infinity"
	case math.IsInf(v, -1):
		return "-Infinity"
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// leadingNumber matches the longest numeric prefix, ignoring leading
// whitespace, the same prefix a lenient float parser would consume.
var leadingNumber = regexp.MustCompile(`^[\t\n\v\f\r ]*([+-]?(?:Infinity|(?:\d+\.?\d*|\.\d+)(?:[eE][+-]?\d+)?))`)

func parseLeadingNumber(s string) (float64, error) {
	m := leadingNumber.FindStringSubmatch(s)
	if m == nil {
		return 0, record.NewFormatError("ciphertext has no numeric interpretation", nil)
	}
	num := m[1]
	switch strings.TrimLeft(num, "+") {
	case "Infinity":
		return math.Inf(1), nil
	case "-Infinity":
		return math.Inf(-1), nil
	}
	v, err := strconv.ParseFloat(num, 64)
	if err != nil {
		// Out-of-range exponents still carry a numeric meaning.
		if ne, ok := err.(*strconv.NumError); ok && ne.Err == strconv.ErrRange {
			return v, nil
		}
		return 0, record.NewFormatError("ciphertext has no numeric interpretation", err)
	}
	return v, nil
}
