package jwt

import (
	"context"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"relaychat/internal/pkg/errs"
	"relaychat/internal/pkg/resp"
)

type contextKey string

// ContextAuthPayloadKey stores the parsed *Payload in the request context.
const ContextAuthPayloadKey contextKey = "auth_payload"

// tokenQueryParam lets browser WebSocket clients, which cannot set headers, pass a token.
const tokenQueryParam = "token"

// IdentityExtractorMiddleware parses a bearer token from the Authorization header
// or the token query parameter and stores its payload in the context.
// Missing or invalid tokens never fail the request; the caller is treated as anonymous.
func IdentityExtractorMiddleware(secretKey string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString := tokenFromRequest(r)
			if tokenString == "" {
				next.ServeHTTP(w, r)
				return
			}

			payload, err := ParseToken(tokenString, secretKey)
			if err != nil {
				zerolog.Ctx(r.Context()).Warn().Err(err).Msg("Invalid or expired JWT provided, treating as anonymous")
				next.ServeHTTP(w, r)
				return
			}

			ctx := context.WithValue(r.Context(), ContextAuthPayloadKey, payload)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAuth rejects requests without a payload in the context with ErrUnauthorized.
// It must run after IdentityExtractorMiddleware.
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if GetPayloadFromContext(r) == nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrUnauthorized))
			return
		}

		next.ServeHTTP(w, r)
	})
}

// GetPayloadFromContext returns the authenticated payload, or nil for anonymous callers.
func GetPayloadFromContext(r *http.Request) *Payload {
	payload, ok := r.Context().Value(ContextAuthPayloadKey).(*Payload)
	if !ok {
		return nil
	}

	return payload
}

func tokenFromRequest(r *http.Request) string {
	if authHeader := r.Header.Get("Authorization"); authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return strings.TrimSpace(parts[1])
		}
		return ""
	}

	return r.URL.Query().Get(tokenQueryParam)
}
