/*
Package handler provides the HTTP handler function for WebSocket connection upgrading.

This file contains HandleWebSocket, which binds an optional authenticated identity
to the connection, upgrades it, and hands it to the relay.
*/
package handler

import (
	"context"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"relaychat/internal/app/chat"
	"relaychat/internal/app/user"
	"relaychat/internal/pkg/auth/jwt"
	"relaychat/internal/pkg/errs"
	"relaychat/internal/pkg/resp"
)

// HandleWebSocket upgrades GET /ws. A valid token (see jwt.IdentityExtractorMiddleware)
// restricts the connection to registering as the token's username; without one
// the connection may register any identity.
func HandleWebSocket(ctx context.Context, deps *AppDeps, upgrader websocket.Upgrader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := zerolog.Ctx(r.Context())

		var authIdentity user.Identity
		if payload := jwt.GetPayloadFromContext(r); payload != nil {
			identity, err := user.Parse(payload.Username)
			if err != nil {
				logger.Warn().Err(err).Msg("WebSocket request rejected: token carries an invalid username")
				resp.RespondError(w, r, errs.NewError(errs.ErrUnauthorized))
				return
			}
			authIdentity = identity
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Warn().Err(err).Msg("Failed to upgrade connection to WebSocket")
			return
		}

		client := chat.NewClient(deps.Relay, conn, authIdentity)
		if err := client.Serve(ctx); err != nil {
			logger.Warn().Err(err).Msg("WebSocket connection refused by relay")
			return
		}

		logger.Info().
			Str("conn_id", string(client.ID())).
			Bool("authenticated", authIdentity != "").
			Msg("WebSocket connection established")
	}
}
