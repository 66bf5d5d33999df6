package middleware

import (
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"

	genkeyerrors "genkey/internal/errors"
	"genkey/internal/logger"
)

const bearerPrefix = "Bearer "

// APIKey requires "Authorization: Bearer <key>" where key matches the
// bcrypt hash. An empty hash disables the check.
func APIKey(hash string) func(http.Handler) http.Handler {
	hashed := []byte(strings.TrimSpace(hash))
	return func(next http.Handler) http.Handler {
		if len(hashed) == 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key, ok := bearerToken(r)
			if !ok || bcrypt.CompareHashAndPassword(hashed, []byte(key)) != nil {
				logger.HTTPError(r.Method, r.URL.Path, http.StatusUnauthorized, genkeyerrors.ErrUnauthorized).
					Str("request_id", GetRequestID(r.Context())).
					Msg("rejected request without a valid api key")
				w.Header().Set("WWW-Authenticate", `Bearer realm="genkey"`)
				http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(header) <= len(bearerPrefix) || !strings.EqualFold(header[:len(bearerPrefix)], bearerPrefix) {
		return "", false
	}
	token := strings.TrimSpace(header[len(bearerPrefix):])
	return token, token != ""
}
