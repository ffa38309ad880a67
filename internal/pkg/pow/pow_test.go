package pow

import (
	"context"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"
)

func solve(t *testing.T, nonce string, difficulty int) string {
	t.Helper()
	for i := 0; i < 1_000_000; i++ {
		counter := strconv.Itoa(i)
		if Verify(nonce, counter, difficulty) {
			return counter
		}
	}
	t.Fatal("no solution found")
	return ""
}

func TestProofTokenFlow(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := NewPoWManager(ctx, 2)
	if !m.Enabled() {
		t.Fatal("difficulty 2 should enable the gate")
	}

	nonce := m.GenerateNonce()
	token, err := m.ValidateProof(nonce, solve(t, nonce, 2))
	if err != nil {
		t.Fatalf("ValidateProof: %v", err)
	}

	if _, err := m.ValidateProof(nonce, "0"); err != ErrNonceInvalid {
		t.Errorf("reused nonce: err = %v, want ErrNonceInvalid", err)
	}

	r := httptest.NewRequest("GET", "/ws?pow_token="+token, nil)
	if !m.ConsumeProofToken(r) {
		t.Fatal("fresh token rejected")
	}
	if m.ConsumeProofToken(r) {
		t.Error("token accepted twice")
	}
}

func TestValidateProofRejectsWeakProof(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := NewPoWManager(ctx, 64)
	nonce := m.GenerateNonce()
	if _, err := m.ValidateProof(nonce, "1"); err != ErrProofInsufficent {
		t.Errorf("err = %v, want ErrProofInsufficent", err)
	}
}

func TestExpiredTokenIsRejectedAndSwept(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := NewPoWManager(ctx, 1)
	now := time.Now()
	m.now = func() time.Time { return now }

	nonce := m.GenerateNonce()
	token, err := m.ValidateProof(nonce, solve(t, nonce, 1))
	if err != nil {
		t.Fatalf("ValidateProof: %v", err)
	}

	m.now = func() time.Time { return now.Add(time.Hour) }
	m.sweep()
	if len(m.tokenStore) != 0 {
		t.Errorf("sweep left %d tokens", len(m.tokenStore))
	}

	r := httptest.NewRequest("GET", "/ws", nil)
	r.Header.Set(TokenHeaderKey, token)
	if m.ConsumeProofToken(r) {
		t.Error("expired token accepted")
	}
}

func TestDisabledWhenDifficultyZero(t *testing.T) {
	var nilMgr *PoWManager
	if nilMgr.Enabled() {
		t.Error("nil manager should be disabled")
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if NewPoWManager(ctx, 0).Enabled() {
		t.Error("difficulty 0 should be disabled")
	}
}
