package testutil

import (
	"context"
	"errors"
	"sync"
)

// ErrDeclined is returned by a StaticSigner configured to reject.
var ErrDeclined = errors.New("user declined signature")

// StaticSigner answers every sign request with the same signature or error
// and remembers the messages it was asked to sign.
type StaticSigner struct {
	Signature string
	Err       error

	mu       sync.Mutex
	messages []string
}

// NewStaticSigner returns a signer that always signs with sig.
func NewStaticSigner(sig string) *StaticSigner {
	return &StaticSigner{Signature: sig}
}

// NewRejectingSigner returns a signer that always declines.
func NewRejectingSigner() *StaticSigner {
	return &StaticSigner{Err: ErrDeclined}
}

// Sign records message and returns the configured outcome.
func (s *StaticSigner) Sign(ctx context.Context, message string) (string, error) {
	s.mu.Lock()
	s.messages = append(s.messages, message)
	s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return "", err
	}
	if s.Err != nil {
		return "", s.Err
	}
	return s.Signature, nil
}

// Messages returns a copy of every message signed so far.
func (s *StaticSigner) Messages() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.messages))
	copy(out, s.messages)
	return out
}

// BlockingSigner holds each sign request until Release is called or the
// caller's context ends. It models a wallet prompt the user has not
// answered yet.
type BlockingSigner struct {
	started chan string
	release chan string
}

// NewBlockingSigner creates a signer with no pending requests.
func NewBlockingSigner() *BlockingSigner {
	return &BlockingSigner{
		started: make(chan string, 1),
		release: make(chan string),
	}
}

// Sign blocks until Release or ctx cancellation.
func (s *BlockingSigner) Sign(ctx context.Context, message string) (string, error) {
	select {
	case s.started <- message:
	default:
	}

	select {
	case sig := <-s.release:
		return sig, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Started is signalled with the message once a Sign call is waiting.
func (s *BlockingSigner) Started() <-chan string {
	return s.started
}

// Release answers the pending Sign call with sig.
func (s *BlockingSigner) Release(sig string) {
	s.release <- sig
}
