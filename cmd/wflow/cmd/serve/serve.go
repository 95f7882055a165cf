package serve

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"whisperflow/internal/app"
	"whisperflow/internal/config"
)

// Cmd represents the serve command
var Cmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the transcription engine with its HTTP API",
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := config.Load()
		if err != nil {
			log.Fatalf("configuration error: %v", err)
		}

		application, err := app.InitializeApp(cfg)
		if err != nil {
			log.Fatalf("initialization failed: %v", err)
		}
		defer application.Close()

		ctx := context.Background()
		if err := application.Orchestrator.Start(ctx); err != nil {
			log.Fatalf("orchestrator start failed: %v", err)
		}

		errCh := make(chan error, 1)
		go func() {
			errCh <- application.Server.Start()
		}()

		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

		select {
		case err := <-errCh:
			if err != nil {
				application.Logger.Fatal("server failed", zap.Error(err))
			}
		case sig := <-quit:
			application.Logger.Info("shutting down", zap.String("signal", sig.String()))
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := application.Server.Shutdown(shutdownCtx); err != nil {
			application.Logger.Error("shutdown error", zap.Error(err))
		}
	},
}
