package httpmw

import (
	"context"
	"net/http"
	"strings"

	"github.com/chatgrid/chat-service/pkg/httputil"
)

type ctxKey string

const ctxKeyUserID ctxKey = "user_id"

// TokenParser валидирует access-токен и возвращает userID.
type TokenParser interface {
	UserIDFromAccessToken(token string) (int64, error)
}

// AuthMiddleware: требуем Authorization: Bearer <access_token>.
func AuthMiddleware(parser TokenParser) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			auth := r.Header.Get("Authorization")
			if !strings.HasPrefix(auth, "Bearer ") || len(auth) <= 7 {
				httputil.Error(w, http.StatusUnauthorized, "missing bearer token")
				return
			}

			userID, err := parser.UserIDFromAccessToken(strings.TrimSpace(auth[7:]))
			if err != nil {
				httputil.Error(w, http.StatusUnauthorized, "invalid token")
				return
			}

			ctx := context.WithValue(r.Context(), ctxKeyUserID, userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func UserIDFromCtx(ctx context.Context) int64 {
	if v := ctx.Value(ctxKeyUserID); v != nil {
		if id, ok := v.(int64); ok {
			return id
		}
	}
	return 0
}
