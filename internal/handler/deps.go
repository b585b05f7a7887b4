package handler

import (
	"relaychat/internal/app/chat"
	"relaychat/internal/app/store"
	"relaychat/internal/configs"
	"relaychat/internal/pkg/metrics"
)

// AppDeps holds the collaborators shared by every handler.
type AppDeps struct {
	Relay   *chat.Relay
	Store   store.MessageStore
	Config  *configs.AppConfig
	Metrics *metrics.Metrics
}
