/*
Package pow implements the Proof-of-Work gate in front of the WebSocket endpoint.

A client fetches a nonce, searches for a counter such that sha256(nonce+counter) has
the configured number of leading hex zeros, and trades the proof for a short-lived,
single-use token that it presents when opening the WebSocket.
*/
package pow

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	// TokenHeaderKey is the HTTP header carrying the proof token.
	TokenHeaderKey = "X-PoW-Token"

	// TokenQueryKey is the query parameter carrying the proof token (browsers cannot set WebSocket headers).
	TokenQueryKey = "pow_token"

	// ProofTokenDuration is the validity of a proof token.
	ProofTokenDuration = 30 * time.Second

	// NonceExpiryDuration is the validity of a challenge nonce.
	NonceExpiryDuration = 5 * time.Minute
)

var (
	ErrNonceInvalid     = errors.New("nonce expired or invalid")
	ErrProofInsufficent = errors.New("proof does not meet difficulty requirement")
)

// PoWManager tracks outstanding nonces and issued proof tokens. It is safe for concurrent use.
type PoWManager struct {
	difficulty int

	nonceStore map[string]time.Time
	tokenStore map[string]time.Time

	// mu protects nonceStore and tokenStore.
	mu sync.Mutex

	now func() time.Time
}

// NewPoWManager creates a manager for the given difficulty. Expired entries are swept
// every minute until ctx is done.
func NewPoWManager(ctx context.Context, difficulty int) *PoWManager {
	mgr := &PoWManager{
		difficulty: difficulty,
		nonceStore: make(map[string]time.Time),
		tokenStore: make(map[string]time.Time),
		now:        time.Now,
	}

	go mgr.cleanupExpiredEntries(ctx)

	return mgr
}

// Enabled reports whether a proof is required at all.
func (m *PoWManager) Enabled() bool {
	return m != nil && m.difficulty > 0
}

// Difficulty returns the number of leading hex zeros required.
func (m *PoWManager) Difficulty() int {
	return m.difficulty
}

// GenerateNonce issues and stores a new challenge nonce.
func (m *PoWManager) GenerateNonce() string {
	m.mu.Lock()
	defer m.mu.Unlock()

	nonce := uuid.New().String()
	m.nonceStore[nonce] = m.now().Add(NonceExpiryDuration)
	return nonce
}

// Verify reports whether counter solves nonce at difficulty.
func Verify(nonce, counter string, difficulty int) bool {
	hash := sha256.Sum256([]byte(nonce + counter))
	return strings.HasPrefix(hex.EncodeToString(hash[:]), strings.Repeat("0", difficulty))
}

// ValidateProof checks the proof, consumes the nonce and issues a proof token.
func (m *PoWManager) ValidateProof(nonce, counter string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	expiryTime, ok := m.nonceStore[nonce]
	if !ok || m.now().After(expiryTime) {
		return "", ErrNonceInvalid
	}

	if !Verify(nonce, counter, m.difficulty) {
		return "", ErrProofInsufficent
	}

	delete(m.nonceStore, nonce)

	token := uuid.New().String()
	m.tokenStore[token] = m.now().Add(ProofTokenDuration)
	return token, nil
}

// ConsumeProofToken validates and removes the proof token carried by r, in the
// X-PoW-Token header or the pow_token query parameter.
func (m *PoWManager) ConsumeProofToken(r *http.Request) bool {
	token := r.Header.Get(TokenHeaderKey)
	if token == "" {
		token = r.URL.Query().Get(TokenQueryKey)
	}

	if token == "" {
		return false
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	expiryTime, ok := m.tokenStore[token]
	if !ok {
		return false
	}
	delete(m.tokenStore, token)

	return !m.now().After(expiryTime)
}

func (m *PoWManager) cleanupExpiredEntries(ctx context.Context) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.sweep()
		}
	}
}

func (m *PoWManager) sweep() {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()

	for nonce, expiry := range m.nonceStore {
		if now.After(expiry) {
			delete(m.nonceStore, nonce)
		}
	}

	for token, expiry := range m.tokenStore {
		if now.After(expiry) {
			delete(m.tokenStore, token)
		}
	}
}
