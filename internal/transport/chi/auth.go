package chi

import (
	"net"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/treyworks/sitesearch/internal/domain"
)

// Header names of the access policy.
const (
	nonceHeader = "X-WP-Nonce"
	tokenHeader = "treyworks-search-token"
)

const sessionCookie = "sitesearch_session"

// sameOriginGuard protects the interactive search endpoint: the request must
// target the canonical site domain and carry a valid session nonce.
func (s *Server) sameOriginGuard(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.isSameOrigin(r) {
			s.denied(w, r, domain.ErrCrossOrigin, http.StatusForbidden, codeNoCrossOrigin)
			return
		}
		if !s.nonces.Verify(sessionID(r), r.Header.Get(nonceHeader)) {
			s.denied(w, r, domain.ErrInvalidNonce, http.StatusForbidden, codeForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// integrationGuard protects the answer endpoint. Same-origin requests pass
// unconditionally. Cross-origin callers must satisfy the trusted-origin
// allow-list (when enabled) and present the integration token (when one is
// configured); without a configured token the endpoint is open.
func (s *Server) integrationGuard(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.isSameOrigin(r) {
			next.ServeHTTP(w, r)
			return
		}

		if s.restrictOrigins && !s.isTrustedOrigin(r) {
			s.denied(w, r, domain.ErrCrossOrigin, http.StatusForbidden, codeNoCrossOrigin)
			return
		}

		if s.integrationToken == "" {
			next.ServeHTTP(w, r)
			return
		}

		token := r.Header.Get(tokenHeader)
		switch {
		case token == "":
			s.denied(w, r, domain.ErrMissingToken, http.StatusBadRequest, codeInvalidRequest)
		case token != s.integrationToken:
			s.denied(w, r, domain.ErrInvalidToken, http.StatusForbidden, codeForbidden)
		default:
			next.ServeHTTP(w, r)
		}
	})
}

// denied audits and answers an access policy rejection.
func (s *Server) denied(w http.ResponseWriter, r *http.Request, cause error, status int, code string) {
	s.logger.Warn("request denied",
		zap.String("path", r.URL.Path),
		zap.String("host", requestHost(r)),
		zap.String("origin", originHost(r)),
		zap.Error(cause),
	)
	s.audit.Event(r.Context(), domain.AuditEvent{
		Level:   "warning",
		Message: "access denied: " + cause.Error(),
		Referer: r.Referer(),
		Outcome: "denied",
	})
	writeError(w, status, code, cause.Error())
}

func (s *Server) isSameOrigin(r *http.Request) bool {
	return strings.EqualFold(requestHost(r), s.siteDomain)
}

func (s *Server) isTrustedOrigin(r *http.Request) bool {
	host := originHost(r)
	if host == "" {
		return false
	}
	_, ok := s.trustedOrigins[strings.ToLower(host)]
	return ok
}

// sessionID identifies the caller for nonce binding: the session cookie when
// present, the remote address otherwise.
func sessionID(r *http.Request) string {
	if c, err := r.Cookie(sessionCookie); err == nil && c.Value != "" {
		return c.Value
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

// requestHost returns the Host header without any port.
func requestHost(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.Host); err == nil {
		return host
	}
	return r.Host
}

// originHost extracts the host of the Origin header, falling back to the
// Referer.
func originHost(r *http.Request) string {
	for _, raw := range []string{r.Header.Get("Origin"), r.Referer()} {
		if raw == "" {
			continue
		}
		if u, err := url.Parse(raw); err == nil && u.Hostname() != "" {
			return u.Hostname()
		}
	}
	return ""
}
