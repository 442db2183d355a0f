package auth

import (
	"log/slog"
	"net/http"
	"strings"

	"bugtracker-service/internal/httputil"
	"bugtracker-service/internal/user"
)

// Middleware validates the bearer token and threads the caller identity into
// the request context. The role is read from the users table on every request
// so role changes take effect without waiting for token expiry.
func Middleware(tokens *TokenManager, users user.Repository, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" || !strings.HasPrefix(header, "Bearer ") {
				logger.Warn("missing bearer token", "path", r.URL.Path)
				httputil.RespondWithError(w, http.StatusUnauthorized, "unauthorized")
				return
			}

			claims, err := tokens.ValidateAccessToken(strings.TrimPrefix(header, "Bearer "))
			if err != nil {
				logger.Warn("invalid token", "error", err)
				httputil.RespondWithError(w, http.StatusUnauthorized, "unauthorized")
				return
			}

			u, err := users.GetByID(r.Context(), claims.UserID)
			if err != nil || !u.IsActive {
				logger.Warn("token for unknown or disabled account", "user_id", claims.UserID)
				httputil.RespondWithError(w, http.StatusUnauthorized, "unauthorized")
				return
			}

			ident := user.Identity{
				UserID: u.ID,
				Email:  u.Email,
				Role:   u.Role,
			}
			next.ServeHTTP(w, r.WithContext(user.WithIdentity(r.Context(), ident)))
		})
	}
}
