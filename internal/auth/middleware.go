package auth

import (
	"net/http"
	"strings"

	"github.com/go-chi/render"
	"go.uber.org/zap"
)

const (
	msgNoToken      = "No token provided"
	msgInvalidToken = "Invalid token"
)

// BearerAuth rejects requests without a valid "Authorization: Bearer <token>"
// header. A missing token yields 401, a rejected one 403.
func BearerAuth(v Verifier, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r.Header.Get("Authorization"))
			if token == "" {
				render.Status(r, http.StatusUnauthorized)
				render.JSON(w, r, map[string]string{"error": msgNoToken})
				return
			}
			if err := v.Verify(token); err != nil {
				logger.Debug("rejected bearer token",
					zap.String("path", r.URL.Path),
					zap.Error(err))
				render.Status(r, http.StatusForbidden)
				render.JSON(w, r, map[string]string{"error": msgInvalidToken})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func bearerToken(header string) string {
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
