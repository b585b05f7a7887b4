/*
Package handler provides HTTP handler functions for the read-side history API.

Every route here runs behind jwt.RequireAuth, so the caller's identity is always
available from the request context.
*/
package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"relaychat/internal/app/conversation"
	"relaychat/internal/app/store"
	"relaychat/internal/app/user"
	"relaychat/internal/pkg/auth/jwt"
	"relaychat/internal/pkg/errs"
	"relaychat/internal/pkg/resp"
)

// ConversationResponse is the data of a conversation history response.
type ConversationResponse struct {
	ConversationID conversation.ID `json:"conversationId"`
	Messages       []store.Message `json:"messages"`
}

// OnlineUsersResponse is the data of the presence response.
type OnlineUsersResponse struct {
	Users []user.Identity `json:"users"`
}

// HandleGeneralConversation returns the public room history, oldest first.
func HandleGeneralConversation(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		respondConversation(w, r, deps, conversation.General)
	}
}

// HandlePrivateConversation returns the caller's history with {other}, oldest first.
func HandlePrivateConversation(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, ok := callerIdentity(r)
		if !ok {
			resp.RespondError(w, r, errs.NewError(errs.ErrUnauthorized))
			return
		}

		other, err := user.Parse(chi.URLParam(r, "other"))
		if err != nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrInvalidParams))
			return
		}

		respondConversation(w, r, deps, conversation.Resolve(caller, other))
	}
}

// HandleOnlineUsers returns the identities currently registered on the relay.
func HandleOnlineUsers(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp.RespondSuccess(w, r, OnlineUsersResponse{Users: deps.Relay.Online()})
	}
}

func respondConversation(w http.ResponseWriter, r *http.Request, deps *AppDeps, id conversation.ID) {
	messages, err := deps.Store.ListByConversation(r.Context(), id)
	if err != nil {
		zerolog.Ctx(r.Context()).Error().
			Err(err).
			Str("conversation_id", id.String()).
			Msg("Failed to load conversation history")

		resp.RespondError(w, r, errs.NewError(errs.ErrStorageFailed))
		return
	}

	resp.RespondSuccess(w, r, ConversationResponse{
		ConversationID: id,
		Messages:       messages,
	})
}

func callerIdentity(r *http.Request) (user.Identity, bool) {
	payload := jwt.GetPayloadFromContext(r)
	if payload == nil {
		return "", false
	}

	identity, err := user.Parse(payload.Username)
	if err != nil {
		return "", false
	}
	return identity, true
}
