package middleware

import (
	"context"
	"net/http"
	"strings"

	"freshkeep-api/internal/model"
	"freshkeep-api/internal/service"
	"freshkeep-api/pkg/apierror"
)

// SessionKey is the key for storing the resolved session in request context.
const SessionKey contextKey = "session"

// SessionConfig holds configuration for the session middleware.
type SessionConfig struct {
	Sessions *service.SessionService
	// AllowHeaderIdentity enables the X-User-ID/X-User-Name/X-User-Email
	// fallback for development setups without a session store.
	AllowHeaderIdentity bool
}

// NewSessionMiddleware creates a middleware that resolves the caller's
// session and stores it in the request context. Dependencies are passed
// via closure, no global state.
func NewSessionMiddleware(cfg SessionConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Skip auth for status and health check endpoints
			if r.URL.Path == "/api/status" || r.URL.Path == "/api/v1/health" || r.URL.Path == "/api/v1/ready" {
				next.ServeHTTP(w, r)
				return
			}

			// Skip auth for session creation
			if r.URL.Path == "/api/v1/auth/session" && r.Method == http.MethodPost {
				next.ServeHTTP(w, r)
				return
			}

			token := r.Header.Get("X-Token")
			if token != "" && cfg.Sessions != nil {
				sess, err := cfg.Sessions.Validate(r.Context(), token)
				if err != nil {
					writeError(w, apierror.Unauthorized("Invalid or expired token"))
					return
				}

				ctx := context.WithValue(r.Context(), SessionKey, *sess)
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}

			if cfg.AllowHeaderIdentity {
				uid := strings.TrimSpace(r.Header.Get("X-User-ID"))
				if uid != "" {
					sess := model.Session{
						UID:         uid,
						DisplayName: strings.TrimSpace(r.Header.Get("X-User-Name")),
						Email:       strings.TrimSpace(r.Header.Get("X-User-Email")),
					}
					ctx := context.WithValue(r.Context(), SessionKey, sess)
					next.ServeHTTP(w, r.WithContext(ctx))
					return
				}
			}

			writeError(w, apierror.Unauthorized("Authentication required. Use the X-Token header."))
		})
	}
}

// writeError writes an API error response.
func writeError(w http.ResponseWriter, err *apierror.Error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(err.StatusCode)
	w.Write(err.ToJSON())
}

// GetSession retrieves the resolved session from request context.
func GetSession(ctx context.Context) (model.Session, bool) {
	sess, ok := ctx.Value(SessionKey).(model.Session)
	return sess, ok
}
