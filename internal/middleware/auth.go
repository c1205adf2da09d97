package middleware

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/edwds/mimy/internal/auth"
)

// RequireAuth is a middleware that validates the Bearer token on the request
// and stores the authenticated user ID in the context. Requests without a
// valid access token receive 401 with the standard error envelope.
func RequireAuth(jwtService *auth.JWTService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				writeUnauthorized(w, r, "missing authorization header")
				return
			}

			tokenString, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || tokenString == "" {
				writeUnauthorized(w, r, "authorization header must be a bearer token")
				return
			}

			claims, err := jwtService.ValidateToken(tokenString)
			if err != nil {
				writeUnauthorized(w, r, "invalid or expired token")
				return
			}

			// Refresh tokens are not valid for API access
			if claims.Type != auth.TokenTypeAccess {
				writeUnauthorized(w, r, "token is not an access token")
				return
			}

			userID, err := claims.UserID()
			if err != nil {
				writeUnauthorized(w, r, "invalid or expired token")
				return
			}

			ctx := SetUserID(r.Context(), userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// writeUnauthorized writes a 401 response with the standard error envelope.
// Duplicated from the api package to avoid an import cycle.
func writeUnauthorized(w http.ResponseWriter, r *http.Request, message string) {
	UpdateResponseContext(w, SetErrorCode(r.Context(), "auth_failed"))
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]string{
			"code":    "auth_failed",
			"message": message,
		},
	})
}
