package token

import (
	"crypto/rand"
	"encoding/hex"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Context keys used by the auth middleware to attach identity to a request.
type contextKey string

const (
	ContextKeyToken contextKey = "auth_token"
	ContextKeyOwner contextKey = "auth_owner"
)

// Token is a snapshot of one registered bearer token.
type Token struct {
	Value      string
	Owner      string
	CreatedAt  time.Time
	LastUsedAt time.Time
	Metadata   map[string]string
}

// record is the live entry. LastUsedAt is an atomic unix-nano so that a
// validation of one token never blocks validation of another.
type record struct {
	value     string
	owner     string
	createdAt time.Time
	lastUsed  atomic.Int64
	metadata  map[string]string
}

func (r *record) snapshot() Token {
	md := make(map[string]string, len(r.metadata))
	for k, v := range r.metadata {
		md[k] = v
	}
	return Token{
		Value:      r.value,
		Owner:      r.owner,
		CreatedAt:  r.createdAt,
		LastUsedAt: time.Unix(0, r.lastUsed.Load()),
		Metadata:   md,
	}
}

// Options configures a Store.
type Options struct {
	// Disabled makes every token validate, for deployments that turn
	// authentication off entirely.
	Disabled bool

	// DefaultToken always validates when non-empty. It is not registered
	// and does not appear in List.
	DefaultToken string

	// TrustFirstToken enables the trust-on-first-use bootstrap: with an
	// empty store and no default token, the first non-empty token seen by
	// Validate is registered as valid. One-time by construction; once any
	// token exists, validation is strict membership.
	TrustFirstToken bool
}

// Store is the authoritative in-memory set of valid bearer tokens. State
// is process-lifetime only. Stores are injected, never global, so tests
// can build isolated instances.
type Store struct {
	opts   Options
	logger *zap.Logger

	mu     sync.RWMutex
	tokens map[string]*record
}

func NewStore(opts Options, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		opts:   opts,
		logger: logger,
		tokens: make(map[string]*record),
	}
}

// Validate reports whether tok is currently accepted, refreshing its
// last-used time when it is registered.
func (s *Store) Validate(tok string) bool {
	if s.opts.Disabled {
		return true
	}
	if tok == "" {
		return false
	}

	s.mu.RLock()
	rec, ok := s.tokens[tok]
	s.mu.RUnlock()
	if ok {
		rec.lastUsed.Store(time.Now().UnixNano())
		return true
	}

	if s.opts.DefaultToken != "" && tok == s.opts.DefaultToken {
		return true
	}

	if s.opts.TrustFirstToken && s.opts.DefaultToken == "" {
		s.mu.Lock()
		defer s.mu.Unlock()
		// First contact only: re-check emptiness under the write lock.
		if len(s.tokens) == 0 {
			s.register(tok, "", map[string]string{"registered_by": "first_use"})
			s.logger.Warn("registered first-contact token; further tokens require explicit registration")
			return true
		}
		_, ok := s.tokens[tok]
		return ok
	}

	return false
}

// Issue generates and registers a fresh token. Values come from a CSPRNG
// so they are not guessable.
func (s *Store) Issue(owner string, metadata map[string]string) Token {
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand failing means the platform entropy source is broken
		panic("token: CSPRNG unavailable: " + err.Error())
	}
	value := "pk-" + hex.EncodeToString(buf)

	s.mu.Lock()
	rec := s.register(value, owner, metadata)
	s.mu.Unlock()

	s.logger.Info("issued token", zap.String("owner", owner))
	return rec.snapshot()
}

// Register adds a caller-supplied token value. Returns false if the value
// is empty or already registered.
func (s *Store) Register(value, owner string, metadata map[string]string) bool {
	if value == "" {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.tokens[value]; exists {
		return false
	}
	s.register(value, owner, metadata)
	return true
}

// register assumes s.mu is held for writing.
func (s *Store) register(value, owner string, metadata map[string]string) *record {
	if metadata == nil {
		metadata = map[string]string{}
	}
	now := time.Now()
	rec := &record{
		value:     value,
		owner:     owner,
		createdAt: now,
		metadata:  metadata,
	}
	rec.lastUsed.Store(now.UnixNano())
	s.tokens[value] = rec
	return rec
}

// Revoke removes a token, reporting whether it existed.
func (s *Store) Revoke(tok string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tokens[tok]; !ok {
		return false
	}
	delete(s.tokens, tok)
	return true
}

// Get returns a snapshot of one token.
func (s *Store) Get(tok string) (Token, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.tokens[tok]
	if !ok {
		return Token{}, false
	}
	return rec.snapshot(), true
}

// List returns snapshots of every registered token, for administrative and
// debug use.
func (s *Store) List() []Token {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Token, 0, len(s.tokens))
	for _, rec := range s.tokens {
		out = append(out, rec.snapshot())
	}
	return out
}

// Len reports the number of registered tokens.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tokens)
}
