package auth

import (
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"
)

// JWTAuth rejects requests without a valid bearer token and stores the
// caller's Claims in the request context.
func JWTAuth(svc *Service, lg *zap.SugaredLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := r.Header.Get("Authorization")
			if len(h) < 7 || !strings.EqualFold(h[:7], "Bearer ") {
				unauthorized(w, "missing bearer token")
				return
			}
			claims, err := svc.Resolve(r.Context(), h[7:])
			switch {
			case err == nil:
			case errors.Is(err, ErrTokenExpired):
				unauthorized(w, "token expired")
				return
			case errors.Is(err, ErrInvalidSignature), errors.Is(err, ErrMalformedToken), errors.Is(err, ErrInvalidCredentials):
				unauthorized(w, "could not validate credentials")
				return
			default:
				lg.Errorw("token resolve failed", "error", err)
				http.Error(w, "internal error", http.StatusInternalServerError)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
		})
	}
}

func RequireAdmin() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !FromContext(r.Context()).Admin {
				http.Error(w, "admin role required", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func unauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("WWW-Authenticate", "Bearer")
	http.Error(w, msg, http.StatusUnauthorized)
}
