package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/AdamBeresnev/racetime/internal/httputil"
	"github.com/alexedwards/scs/v2"
)

// OperatorSessionKey marks a session that presented the operator key.
const OperatorSessionKey = "operator"

// CheckOperatorKey compares a presented key with the configured one in constant time.
func CheckOperatorKey(presented, configured string) bool {
	if presented == "" || configured == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(presented), []byte(configured)) == 1
}

// LogInOperator renews the session token and marks the session as an operator's.
func LogInOperator(sessionManager *scs.SessionManager, r *http.Request) error {
	if err := sessionManager.RenewToken(r.Context()); err != nil {
		return err
	}
	sessionManager.Put(r.Context(), OperatorSessionKey, true)
	return nil
}

// RequireOperator guards administrative routes. It must run inside sessionManager.LoadAndSave.
func RequireOperator(sessionManager *scs.SessionManager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !sessionManager.GetBool(r.Context(), OperatorSessionKey) {
				httputil.Unauthorized(w, "operator session required")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
