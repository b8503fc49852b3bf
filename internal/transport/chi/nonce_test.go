package chi

import (
	"testing"
	"time"
)

func TestNonce_IssueVerify(t *testing.T) {
	svc := NewNonceService("secret", 15*time.Minute)

	nonce := svc.Issue("session-1")
	if len(nonce) != nonceLen {
		t.Errorf("nonce length = %d, expected %d", len(nonce), nonceLen)
	}
	if !svc.Verify("session-1", nonce) {
		t.Error("freshly issued nonce should verify")
	}
}

func TestNonce_WrongSession(t *testing.T) {
	svc := NewNonceService("secret", 15*time.Minute)

	nonce := svc.Issue("session-1")
	if svc.Verify("session-2", nonce) {
		t.Error("nonce must be bound to its session")
	}
}

func TestNonce_Tampered(t *testing.T) {
	svc := NewNonceService("secret", 15*time.Minute)

	if svc.Verify("session-1", "0000000000000000") {
		t.Error("forged nonce should not verify")
	}
	if svc.Verify("session-1", "") {
		t.Error("empty nonce should not verify")
	}
}

func TestNonce_PreviousWindowAccepted(t *testing.T) {
	svc := NewNonceService("secret", 15*time.Minute)

	base := time.Now()
	svc.now = func() time.Time { return base }
	nonce := svc.Issue("session-1")

	svc.now = func() time.Time { return base.Add(15 * time.Minute) }
	if !svc.Verify("session-1", nonce) {
		t.Error("nonce from the previous window should still verify")
	}
}

func TestNonce_ExpiredWindowRejected(t *testing.T) {
	svc := NewNonceService("secret", 15*time.Minute)

	base := time.Now()
	svc.now = func() time.Time { return base }
	nonce := svc.Issue("session-1")

	svc.now = func() time.Time { return base.Add(31 * time.Minute) }
	if svc.Verify("session-1", nonce) {
		t.Error("nonce two windows old should not verify")
	}
}

func TestNonce_DifferentSecrets(t *testing.T) {
	a := NewNonceService("secret-a", 15*time.Minute)
	b := NewNonceService("secret-b", 15*time.Minute)

	if b.Verify("session-1", a.Issue("session-1")) {
		t.Error("nonce issued under another secret should not verify")
	}
}
