package middleware

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/deldesir/gateway/internal/api"
	"github.com/deldesir/gateway/internal/domain"
)

type contextKey string

const UserIDKey contextKey = "user_id"

// UserIDHeader names the caller on chat requests.
const UserIDHeader = "X-User-Id"

type AuthValidator interface {
	ValidateAPIKey(ctx context.Context, token string) error
}

// StaticAPIKey accepts exactly one bearer token.
type StaticAPIKey string

func (k StaticAPIKey) ValidateAPIKey(_ context.Context, token string) error {
	if k == "" || subtle.ConstantTimeCompare([]byte(k), []byte(token)) != 1 {
		return domain.ErrInvalidAPIKey
	}
	return nil
}

// APIKeyAuth requires "Authorization: Bearer <key>". Browsers cannot set
// headers on websocket upgrades, so the key is also read from the
// access_token query parameter there.
func APIKeyAuth(validator AuthValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := r.URL.Query().Get("access_token")
			if authHeader := r.Header.Get("Authorization"); authHeader != "" {
				if !strings.HasPrefix(authHeader, "Bearer ") {
					api.Error(w, http.StatusUnauthorized, "invalid authorization format")
					return
				}
				token = strings.TrimPrefix(authHeader, "Bearer ")
			}
			if token == "" {
				api.Error(w, http.StatusUnauthorized, "missing authorization header")
				return
			}

			if err := validator.ValidateAPIKey(r.Context(), token); err != nil {
				api.Error(w, http.StatusUnauthorized, "invalid api key")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func userIDFrom(r *http.Request) string {
	userID := strings.TrimSpace(r.Header.Get(UserIDHeader))
	if userID == "" {
		userID = strings.TrimSpace(r.URL.Query().Get("user_id"))
	}
	return userID
}

// RequireUserID rejects requests without an X-User-Id header (or user_id
// query parameter) and stores the id in the context.
func RequireUserID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := userIDFrom(r)
		if userID == "" {
			api.HandleError(w, domain.ErrMissingUserID)
			return
		}

		ctx := context.WithValue(r.Context(), UserIDKey, userID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// OptionalUserID stores the user id when one is sent. Websocket clients may
// name the user per message instead.
func OptionalUserID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if userID := userIDFrom(r); userID != "" {
			r = r.WithContext(context.WithValue(r.Context(), UserIDKey, userID))
		}
		next.ServeHTTP(w, r)
	})
}

func GetUserID(ctx context.Context) string {
	userID, _ := ctx.Value(UserIDKey).(string)
	return userID
}
