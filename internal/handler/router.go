/*
Package handler provides the HTTP handlers and routing setup for the relay server.

This file defines the main Router, applying the shared middleware (CORS, request
ids, logging, panic recovery) and per-route authentication and rate limiting
before delegating to the history API and the WebSocket endpoint.
*/
package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/rs/cors"
	"golang.org/x/time/rate"

	"relaychat/internal/pkg/auth/jwt"
	"relaychat/internal/pkg/limiter"
	"relaychat/internal/pkg/logx"
	"relaychat/internal/pkg/resp"
)

const (
	ConnectRate  = 0.5
	ConnectBurst = 10
	APIRate      = 5
	APIBurst     = 20
)

// Router builds the application's routing table. ctx outlives every request:
// it stops the rate limiter cleanup loops and bounds WebSocket sessions.
func Router(ctx context.Context, deps *AppDeps) http.Handler {
	connectLimiter := limiter.NewIPRateLimiter(ctx, rate.Limit(ConnectRate), ConnectBurst)
	apiLimiter := limiter.NewIPRateLimiter(ctx, rate.Limit(APIRate), APIBurst)

	r := chi.NewRouter()

	allowedOrigins := make(map[string]struct{})
	for _, origin := range deps.Config.AllowedOrigins {
		allowedOrigins[origin] = struct{}{}
	}

	wsUpgrader := websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			if deps.Config.IsDevelopment() {
				return true
			}

			origin := r.Header.Get("Origin")
			if _, ok := allowedOrigins[origin]; ok {
				return true
			}

			logx.Warn("WebSocket connection rejected: Origin not allowed.", "origin", origin)
			return false
		},
	}

	corsAllowedOrigins := []string{}
	if deps.Config.IsDevelopment() {
		corsAllowedOrigins = []string{"*"}
	} else if len(deps.Config.AllowedOrigins) > 0 {
		corsAllowedOrigins = deps.Config.AllowedOrigins
	}

	c := cors.New(cors.Options{
		AllowedOrigins:   corsAllowedOrigins,
		AllowedMethods:   []string{"GET", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	})
	r.Use(c.Handler)

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(logx.RequestLogger())
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		resp.RespondSuccess(w, r, map[string]any{
			"status":      "ok",
			"service":     "relaychat",
			"store":       deps.Config.StoreDriver,
			"connections": deps.Relay.Connections(),
			"online":      len(deps.Relay.Online()),
		})
	})

	if deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", deps.Metrics.Handler())
	}

	r.Route("/api", func(api chi.Router) {
		api.Use(apiLimiter.Middleware)
		api.Use(jwt.IdentityExtractorMiddleware(deps.Config.JWTSecret))
		api.Use(jwt.RequireAuth)

		api.Route("/conversation", func(conv chi.Router) {
			conv.Get("/general", HandleGeneralConversation(deps))
			conv.Get("/private/{other}", HandlePrivateConversation(deps))
		})

		api.Get("/presence/online", HandleOnlineUsers(deps))
	})

	r.With(
		connectLimiter.Middleware,
		jwt.IdentityExtractorMiddleware(deps.Config.JWTSecret),
	).Get("/ws", HandleWebSocket(ctx, deps, wsUpgrader))

	return r
}
