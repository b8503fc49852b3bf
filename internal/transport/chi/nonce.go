package chi

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"strconv"
	"time"
)

// nonceLen is the length of the issued nonce in hex characters.
const nonceLen = 16

// NonceService issues and verifies short-lived session nonces. A nonce is a
// truncated HMAC over the caller's session id and the current time window;
// verification accepts the current and the previous window, so a nonce
// remains valid for at least one full TTL after issuance.
type NonceService struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewNonceService creates a nonce service. A non-positive ttl falls back to
// 15 minutes.
func NewNonceService(secret string, ttl time.Duration) *NonceService {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &NonceService{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}
}

// Issue returns a nonce bound to the session id and the current window.
func (n *NonceService) Issue(sessionID string) string {
	return n.compute(sessionID, n.window())
}

// Verify reports whether the nonce is valid for the session id in the
// current or previous time window.
func (n *NonceService) Verify(sessionID, nonce string) bool {
	if nonce == "" {
		return false
	}
	w := n.window()
	for _, candidate := range []string{n.compute(sessionID, w), n.compute(sessionID, w-1)} {
		if subtle.ConstantTimeCompare([]byte(candidate), []byte(nonce)) == 1 {
			return true
		}
	}
	return false
}

func (n *NonceService) window() int64 {
	return n.now().Unix() / int64(n.ttl.Seconds())
}

func (n *NonceService) compute(sessionID string, window int64) string {
	mac := hmac.New(sha256.New, n.secret)
	mac.Write([]byte(sessionID))
	mac.Write([]byte("|"))
	mac.Write([]byte(strconv.FormatInt(window, 10)))
	return hex.EncodeToString(mac.Sum(nil))[:nonceLen]
}
