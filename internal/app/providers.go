package app

import (
	"database/sql"
	"fmt"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"whisperflow/internal/api/server"
	"whisperflow/internal/app/audio"
	appconfig "whisperflow/internal/app/config"
	"whisperflow/internal/app/engine"
	"whisperflow/internal/app/metrics"
	"whisperflow/internal/app/orchestrator"
	"whisperflow/internal/app/repository"
	"whisperflow/internal/app/repository/sqlite"
	"whisperflow/internal/app/resource"
	"whisperflow/internal/app/storage"
	"whisperflow/internal/config"
)

func provideLogger(cfg *config.Config) (*zap.Logger, error) {
	if cfg.Development {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func provideDB(cfg *config.Config) (*sql.DB, error) {
	return sqlite.Open(cfg.DBPath)
}

func provideStore(db *sql.DB, logger *zap.Logger) repository.Store {
	return sqlite.NewStore(db, logger)
}

func provideArchiver(cfg *config.Config, logger *zap.Logger) (storage.Archiver, error) {
	if !cfg.ArchiveEnabled() {
		return nil, nil
	}
	return storage.NewMinioArchiver(
		cfg.MinioEndpoint, cfg.MinioAccessKey, cfg.MinioSecretKey,
		cfg.MinioBucket, cfg.MinioUseSSL, logger)
}

func provideContentStore(cfg *config.Config, store repository.Store, archiver storage.Archiver, logger *zap.Logger) (*storage.ContentStore, error) {
	return storage.NewContentStore(cfg.StorageDir, store, archiver, logger)
}

func provideSelector(cfg *config.Config, logger *zap.Logger) (*resource.Selector, error) {
	tuning, err := appconfig.LoadTuning(cfg.TuningPath)
	if err != nil {
		return nil, err
	}
	return resource.NewSelector(resource.NewNvidiaSMIProber(logger), tuning.Selector, logger), nil
}

func provideConverter(cfg *config.Config, logger *zap.Logger) audio.Converter {
	return audio.NewFFmpegConverter(filepath.Join(cfg.StorageDir, "converted"), logger)
}

func provideEngine(cfg *config.Config, logger *zap.Logger) (engine.Engine, error) {
	switch cfg.Engine {
	case "whispercpp":
		return engine.NewWhisperCppEngine(cfg.WhisperBinary, cfg.WhisperModelDir, logger), nil
	case "openai":
		return engine.NewOpenAIEngine(cfg.OpenAIAPIKey, logger), nil
	default:
		return nil, fmt.Errorf("unknown engine %q", cfg.Engine)
	}
}

func provideRegistry() *prometheus.Registry {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return registry
}

func provideMetrics(registry *prometheus.Registry) *metrics.Metrics {
	return metrics.New(registry)
}

func provideOrchestrator(
	cfg *config.Config,
	store repository.Store,
	content *storage.ContentStore,
	selector *resource.Selector,
	converter audio.Converter,
	eng engine.Engine,
	m *metrics.Metrics,
	logger *zap.Logger,
) *orchestrator.Orchestrator {
	return orchestrator.New(store, content, selector, converter, eng, m, logger,
		cfg.ArtifactDir, cfg.QueueSize)
}

func provideServer(cfg *config.Config, orch *orchestrator.Orchestrator, registry *prometheus.Registry, logger *zap.Logger) *server.Server {
	return server.New(server.Config{
		Addr:        cfg.ListenAddr,
		UploadDir:   filepath.Join(cfg.StorageDir, "incoming"),
		Development: cfg.Development,
	}, orch, registry, logger)
}
