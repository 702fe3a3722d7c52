package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/RafliAndy/bank-sampah-app-sub000/internal/models"
)

type contextKey string

const userIDKey contextKey = "user_id"

// WithUserID returns a copy of ctx carrying the acting user's uid.
func WithUserID(ctx context.Context, uid string) context.Context {
	return context.WithValue(ctx, userIDKey, uid)
}

// UserIDFromContext returns the uid placed by AuthMiddleware.
func UserIDFromContext(ctx context.Context) (string, bool) {
	uid, ok := ctx.Value(userIDKey).(string)
	return uid, ok
}

// AuthMiddleware rejects requests without a valid HS256 bearer token and puts
// the token's subject into the request context. Browsers cannot set headers
// on websocket upgrades, so the token may also arrive as ?access_token=.
func AuthMiddleware(secret []byte) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := bearerToken(r)
			if raw == "" {
				writeUnauthorized(w, "Authorization header required")
				return
			}

			uid, err := ParseToken(secret, raw)
			if err != nil {
				writeUnauthorized(w, "Invalid or expired token")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), uid)))
		})
	}
}

func bearerToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		parts := strings.SplitN(h, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return strings.TrimSpace(parts[1])
		}
		return ""
	}
	return r.URL.Query().Get("access_token")
}

// ParseToken validates raw and returns its user id, read from "sub" or,
// for tokens minted by older clients, "user_id".
func ParseToken(secret []byte, raw string) (string, error) {
	token, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return "", err
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return "", errors.New("invalid token claims")
	}

	if sub, _ := claims.GetSubject(); sub != "" {
		return sub, nil
	}
	switch v := claims["user_id"].(type) {
	case string:
		if v != "" {
			return v, nil
		}
	case float64:
		return fmt.Sprintf("%.0f", v), nil
	}
	return "", errors.New("token has no subject")
}

func writeUnauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(models.ErrorResponse{Error: msg})
}
