//go:build wireinject
// +build wireinject

package app

import (
	"github.com/google/wire"

	"whisperflow/internal/config"
)

// InitializeApp assembles the engine from configuration.
func InitializeApp(cfg *config.Config) (*App, error) {
	wire.Build(
		provideLogger,
		provideDB,
		provideStore,
		provideArchiver,
		provideContentStore,
		provideSelector,
		provideConverter,
		provideEngine,
		provideRegistry,
		provideMetrics,
		provideOrchestrator,
		provideServer,
		wire.Struct(new(App), "*"),
	)
	return &App{}, nil
}
