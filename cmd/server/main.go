// cmd/server/main.go
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"bc-assistant/internal/ai"
	"bc-assistant/internal/bc"
	"bc-assistant/internal/common/auth"
	"bc-assistant/internal/common/config"
	"bc-assistant/internal/common/logger"
	"bc-assistant/internal/common/observability"
	"bc-assistant/internal/graph"
	"bc-assistant/internal/intent"
	"bc-assistant/internal/orchestrator"
	"bc-assistant/internal/server"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.NewStructured("info", "json").Error("failed to load config", map[string]interface{}{
			"error": err.Error(),
		})
		os.Exit(1)
	}

	log := logger.NewStructured(cfg.Logging.Level, cfg.Logging.Format)
	log.Info("starting service", map[string]interface{}{
		"name":        cfg.App.Name,
		"version":     cfg.App.Version,
		"environment": cfg.App.Environment,
	})

	obs := observability.New(cfg.App.Name)
	defer obs.Shutdown()

	tokens := auth.NewAzureTokenProvider(
		auth.Credentials{
			TenantID:     cfg.Azure.TenantID,
			ClientID:     cfg.Azure.ClientID,
			ClientSecret: cfg.Azure.ClientSecret,
		},
		auth.Credentials{
			TenantID:     cfg.BCTenantID(),
			ClientID:     cfg.BCClientID(),
			ClientSecret: cfg.BCClientSecret(),
		},
	)

	completer := ai.NewOpenAIClient(cfg.OpenAI.APIKey, cfg.OpenAI.Model)
	classifier := intent.NewClassifier(completer, log)

	pipeline := orchestrator.New(
		tokens,
		func(token string) orchestrator.DirectoryAPI { return graph.NewClient(token) },
		func(token string) orchestrator.FinancialAPI {
			return bc.NewClient(cfg.BCTenantID(), cfg.BC.Environment, token)
		},
		classifier,
		completer,
		cfg.Limits,
		log,
	)

	srv := server.New(
		cfg,
		pipeline,
		tokens,
		func(token string) server.DirectoryAPI { return graph.NewClient(token) },
		func(token string) server.FinancialAPI {
			return bc.NewClient(cfg.BCTenantID(), cfg.BC.Environment, token)
		},
		obs,
		log,
	)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			log.Error("server exited with error", map[string]interface{}{
				"error": err.Error(),
			})
			os.Exit(1)
		}
	case sig := <-sigCh:
		log.Info("shutting down", map[string]interface{}{
			"signal": sig.String(),
		})

		shutdownTimeout := time.Duration(cfg.Server.ShutdownTimeout) * time.Second
		if shutdownTimeout <= 0 {
			shutdownTimeout = 10 * time.Second
		}
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			log.Error("graceful shutdown failed", map[string]interface{}{
				"error": err.Error(),
			})
			os.Exit(1)
		}
		log.Info("shutdown complete", nil)
	}
}
