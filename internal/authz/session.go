package authz

import (
	"context"
	"sync"

	"github.com/roach88/fhetutor/internal/record"
)

// Session holds revealed plaintext per record id, in memory only.
//
// Thread-safety: Session is safe for concurrent use.
type Session struct {
	mu     sync.Mutex
	values map[string]float64
}

// NewSession creates an empty session.
func NewSession() *Session {
	return &Session{values: make(map[string]float64)}
}

// Store remembers a revealed value.
func (s *Session) Store(id string, v float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[id] = v
}

// Value returns the revealed value of id, if any.
func (s *Session) Value(id string) (float64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.values[id]
	return v, ok
}

// Lock forgets the revealed value of id.
func (s *Session) Lock(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.values, id)
}

// LockAll forgets every revealed value.
func (s *Session) LockAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	clear(s.values)
}

// Len returns the number of revealed values.
func (s *Session) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.values)
}

// Decryptor ties the protocol, a signer and a session together behind a
// single reveal/lock toggle per record.
type Decryptor struct {
	protocol *Protocol
	signer   Signer
	session  *Session
}

// NewDecryptor creates a Decryptor. A nil session gets a fresh one.
func NewDecryptor(p *Protocol, signer Signer, session *Session) *Decryptor {
	if session == nil {
		session = NewSession()
	}
	return &Decryptor{protocol: p, signer: signer, session: session}
}

// Session returns the backing session.
func (d *Decryptor) Session() *Session {
	return d.session
}

// Reveal authorizes a fresh attempt and decodes r's score into the session.
// On failure the session is left unchanged.
func (d *Decryptor) Reveal(ctx context.Context, r record.LearningRecord) (float64, error) {
	token, err := d.protocol.Authorize(ctx, d.signer)
	if err != nil {
		return 0, err
	}
	v, err := d.protocol.Reveal(ctx, r.EncryptedScore, token)
	if err != nil {
		return 0, err
	}
	d.session.Store(r.ID, v)
	return v, nil
}

// Toggle locks r if its value is revealed, otherwise reveals it.
// revealed reports the resulting state.
func (d *Decryptor) Toggle(ctx context.Context, r record.LearningRecord) (v float64, revealed bool, err error) {
	if _, ok := d.session.Value(r.ID); ok {
		d.session.Lock(r.ID)
		return 0, false, nil
	}
	v, err = d.Reveal(ctx, r)
	if err != nil {
		return 0, false, err
	}
	return v, true, nil
}
