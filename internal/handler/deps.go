package handler

import (
	"chatrelay/internal/app/chat"
	"chatrelay/internal/app/storage"
	"chatrelay/internal/configs"
	"chatrelay/internal/pkg/pow"
)

// AppDeps bundles what the HTTP handlers need.
type AppDeps struct {
	Config  *configs.AppConfig
	Manager *chat.Manager
	Hub     *chat.Hub

	// Storage is nil when uploads are disabled.
	Storage storage.Service

	// PoW is nil or disabled when POW_DIFFICULTY is 0.
	PoW *pow.PoWManager
}
