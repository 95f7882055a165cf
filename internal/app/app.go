package app

import (
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"whisperflow/internal/api/server"
	"whisperflow/internal/app/orchestrator"
	"whisperflow/internal/app/repository"
	"whisperflow/internal/config"
)

// App bundles the assembled engine: configuration, persistence,
// orchestration, and the HTTP surface.
type App struct {
	Config       *config.Config
	Logger       *zap.Logger
	Store        repository.Store
	Orchestrator *orchestrator.Orchestrator
	Server       *server.Server
	Registry     *prometheus.Registry
}

// Close releases resources in reverse dependency order.
func (a *App) Close() {
	a.Orchestrator.Stop()
	if err := a.Store.Close(); err != nil {
		a.Logger.Warn("store close failed", zap.Error(err))
	}
	_ = a.Logger.Sync()
}
