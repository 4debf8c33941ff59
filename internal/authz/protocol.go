package authz

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/roach88/fhetutor/internal/codec"
	"github.com/roach88/fhetutor/internal/metrics"
	"github.com/roach88/fhetutor/internal/record"
)

// DefaultSettleDelay is how long Reveal waits before decoding, standing in
// for the latency of a real threshold decryption.
const DefaultSettleDelay = 1500 * time.Millisecond

// Clock supplies the current time for challenge windows.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// IDGenerator assigns attempt ids.
type IDGenerator interface {
	Generate() string
}

type uuidIDs struct{}

func (uuidIDs) Generate() string { return uuid.Must(uuid.NewV7()).String() }

// Config configures a Protocol. Zero values select defaults, except
// SettleDelay where a negative value disables the wait.
type Config struct {
	ContractAddress string
	ChainID         int64
	DurationDays    int
	SettleDelay     time.Duration

	// Start fixes the challenge window start. Zero uses the clock at
	// creation.
	Start time.Time

	// PublicKey is the recipient key material. Generated from Random when
	// empty.
	PublicKey string
	Random    io.Reader

	// Verifier enables hardened mode. Nil accepts any non-empty signature.
	Verifier Verifier

	Clock   Clock
	IDs     IDGenerator
	Logger  *slog.Logger
	Metrics *metrics.Metrics
}

// Protocol issues decrypt attempts bound to one set of challenge
// parameters and reveals ciphertexts for authorized tokens.
type Protocol struct {
	params   ChallengeParams
	settle   time.Duration
	verifier Verifier
	codec    codec.Codec
	clock    Clock
	ids      IDGenerator
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

// NewProtocol creates a Protocol. Unless cfg.Start is set, the challenge
// window starts at the moment of creation.
func NewProtocol(c codec.Codec, cfg Config) (*Protocol, error) {
	p := &Protocol{
		settle:   cfg.SettleDelay,
		verifier: cfg.Verifier,
		codec:    c,
		clock:    cfg.Clock,
		ids:      cfg.IDs,
		logger:   cfg.Logger,
		metrics:  cfg.Metrics,
	}
	if p.clock == nil {
		p.clock = systemClock{}
	}
	if p.ids == nil {
		p.ids = uuidIDs{}
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	if p.settle == 0 {
		p.settle = DefaultSettleDelay
	}

	days := cfg.DurationDays
	if days <= 0 {
		days = DefaultDurationDays
	}
	key := cfg.PublicKey
	if key == "" {
		k, err := GeneratePublicKey(cfg.Random)
		if err != nil {
			return nil, err
		}
		key = k
	}

	start := cfg.Start
	if start.IsZero() {
		start = p.clock.Now()
	}

	p.params = ChallengeParams{
		PublicKey:       key,
		ContractAddress: cfg.ContractAddress,
		ChainID:         cfg.ChainID,
		StartTimestamp:  start.Unix(),
		DurationDays:    days,
	}
	return p, nil
}

// Params returns the challenge parameters every attempt binds.
func (p *Protocol) Params() ChallengeParams {
	return p.params
}

// Hardened reports whether signatures are verified.
func (p *Protocol) Hardened() bool {
	return p.verifier != nil
}

// NewAttempt starts an Idle decrypt attempt.
func (p *Protocol) NewAttempt() *Attempt {
	return &Attempt{
		id:       p.ids.Generate(),
		params:   p.params,
		verifier: p.verifier,
		logger:   p.logger,
	}
}

// Token is proof that an attempt was authorized. It is valid from
// NotBefore up to, but excluding, NotAfter.
type Token struct {
	AttemptID string
	Message   string
	Digest    []byte
	Signature string
	NotBefore time.Time
	NotAfter  time.Time
}

// ValidAt reports whether t falls inside the token's window.
func (t *Token) ValidAt(now time.Time) bool {
	return !now.Before(t.NotBefore) && now.Before(t.NotAfter)
}

// Reveal waits the settle delay and decodes ciphertext. It fails with
// SIGNATURE_REJECTED if token is nil, outside its window, or (in hardened
// mode) does not verify. Cancelling ctx during the wait aborts the reveal.
func (p *Protocol) Reveal(ctx context.Context, ciphertext string, token *Token) (v float64, err error) {
	defer func() {
		result := metrics.ResultOK
		if err != nil {
			result = string(record.CodeOf(err))
			if result == "" {
				result = metrics.ResultError
			}
		}
		p.metrics.Reveal(result)
	}()

	if err := p.check(token); err != nil {
		return 0, err
	}

	if p.settle > 0 {
		timer := time.NewTimer(p.settle)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return 0, record.NewSignatureRejectedError("reveal cancelled", ctx.Err())
		}
	}

	v, err = p.codec.Decode(ciphertext)
	if err != nil {
		return 0, err
	}
	p.logger.Debug("ciphertext revealed", "attempt", token.AttemptID)
	return v, nil
}

func (p *Protocol) check(token *Token) error {
	if token == nil {
		return record.NewSignatureRejectedError("no authorization token", nil)
	}
	if token.Signature == "" {
		return record.NewSignatureRejectedError("token carries no signature", nil)
	}
	if now := p.clock.Now(); !token.ValidAt(now) {
		return record.NewSignatureRejectedError(
			fmt.Sprintf("token valid %s to %s, now %s",
				token.NotBefore.Format(time.RFC3339), token.NotAfter.Format(time.RFC3339), now.UTC().Format(time.RFC3339)),
			nil,
		)
	}
	if p.verifier != nil {
		if err := p.verifier.Verify(token.Message, token.Signature); err != nil {
			return record.NewSignatureRejectedError("token signature invalid", err)
		}
	}
	return nil
}

// Authorize runs a full attempt: challenge, signature, token.
func (p *Protocol) Authorize(ctx context.Context, signer Signer) (*Token, error) {
	a := p.NewAttempt()
	if _, err := a.RequestChallenge(); err != nil {
		return nil, err
	}
	sig, err := a.AwaitSignature(ctx, signer)
	if err != nil {
		return nil, err
	}
	return a.Authorize(sig)
}

// State is the phase of a decrypt attempt.
type State int

const (
	StateIdle State = iota
	StateChallengeIssued
	StateAuthorized
	StateRejected
	StateCancelled
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateChallengeIssued:
		return "challenge_issued"
	case StateAuthorized:
		return "authorized"
	case StateRejected:
		return "rejected"
	case StateCancelled:
		return "cancelled"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Attempt is one pass through the authorization state machine.
//
// Thread-safety: Attempt is safe for concurrent use; the signer call in
// AwaitSignature runs without holding the lock.
type Attempt struct {
	id       string
	params   ChallengeParams
	verifier Verifier
	logger   *slog.Logger

	mu      sync.Mutex
	state   State
	message string
}

// ID returns the attempt id.
func (a *Attempt) ID() string {
	return a.id
}

// State returns the current phase.
func (a *Attempt) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// RequestChallenge renders the challenge message and moves Idle to
// ChallengeIssued. No network call is made.
func (a *Attempt) RequestChallenge() (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.state != StateIdle {
		return "", fmt.Errorf("attempt %s: challenge already requested (state %s)", a.id, a.state)
	}
	a.message = a.params.Message()
	a.state = StateChallengeIssued
	return a.message, nil
}

// AwaitSignature asks signer to sign the issued challenge. A declined
// request moves the attempt to Rejected, a cancelled ctx to Cancelled;
// both fail with SIGNATURE_REJECTED.
func (a *Attempt) AwaitSignature(ctx context.Context, signer Signer) (string, error) {
	a.mu.Lock()
	if a.state != StateChallengeIssued {
		st := a.state
		a.mu.Unlock()
		return "", fmt.Errorf("attempt %s: no challenge outstanding (state %s)", a.id, st)
	}
	message := a.message
	a.mu.Unlock()

	sig, err := signer.Sign(ctx, message)
	if err == nil && ctx.Err() != nil {
		err = ctx.Err()
	}
	if err == nil {
		return sig, nil
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if ctx.Err() != nil {
		a.state = StateCancelled
		a.logger.Debug("decrypt attempt cancelled", "attempt", a.id)
		return "", record.NewSignatureRejectedError("signature request cancelled", err)
	}
	a.state = StateRejected
	a.logger.Debug("decrypt attempt rejected by signer", "attempt", a.id, "error", err)
	return "", record.NewSignatureRejectedError("signer declined", err)
}

// Authorize turns a signature into a Token. An empty signature, or one
// the Verifier refuses in hardened mode, moves the attempt to Rejected.
func (a *Attempt) Authorize(signature string) (*Token, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.state != StateChallengeIssued {
		return nil, fmt.Errorf("attempt %s: cannot authorize in state %s", a.id, a.state)
	}

	if signature == "" {
		a.state = StateRejected
		return nil, record.NewSignatureRejectedError("empty signature", nil)
	}
	if a.verifier != nil {
		if err := a.verifier.Verify(a.message, signature); err != nil {
			a.state = StateRejected
			return nil, record.NewSignatureRejectedError("signature verification failed", err)
		}
	}

	a.state = StateAuthorized
	notBefore, notAfter := a.params.Window()
	return &Token{
		AttemptID: a.id,
		Message:   a.message,
		Digest:    Digest(a.message),
		Signature: signature,
		NotBefore: notBefore,
		NotAfter:  notAfter,
	}, nil
}
