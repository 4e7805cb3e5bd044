package middleware

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/vyrodovalexey/productstore/internal/auth"
	"github.com/vyrodovalexey/productstore/internal/model"
)

// publicPaths never require authentication.
var publicPaths = map[string]bool{
	"/health":  true,
	"/ready":   true,
	"/metrics": true,
}

// Auth rejects requests the authenticator does not accept. Probe and metrics
// endpoints pass through. A nil authenticator disables the check.
func Auth(authenticator auth.Authenticator, logger *zap.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		if authenticator == nil {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isPublicPath(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			id, err := authenticator.Authenticate(r)
			if err != nil {
				logger.Warn("authentication failed",
					zap.String("path", r.URL.Path),
					zap.String("method", r.Method),
					zap.String("remote_addr", r.RemoteAddr),
					zap.Error(err),
				)
				writeAuthError(w, authenticator.Method(), err)
				return
			}

			logger.Debug("authenticated",
				zap.String("subject", id.Subject),
				zap.String("method", string(id.Method)),
			)

			next.ServeHTTP(w, r.WithContext(auth.WithIdentity(r.Context(), id)))
		})
	}
}

// isPublicPath matches public paths and their sub-paths, but not paths that
// merely share a prefix (/healthz is not public).
func isPublicPath(path string) bool {
	if publicPaths[path] {
		return true
	}
	for p := range publicPaths {
		if strings.HasPrefix(path, p+"/") {
			return true
		}
	}
	return false
}

func writeAuthError(w http.ResponseWriter, method auth.Method, err error) {
	switch method {
	case auth.MethodBasic:
		w.Header().Set("WWW-Authenticate", `Basic realm="productstore"`)
	case auth.MethodAPIKey:
		w.Header().Set("WWW-Authenticate", "API-Key")
	}

	message := "invalid credentials"
	if errors.Is(err, auth.ErrUnauthenticated) {
		message = "authentication required"
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(model.ErrorResponse{
		Code:    http.StatusUnauthorized,
		Message: message,
	})
}
