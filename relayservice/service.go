// Package relayservice assembles the push relay: HTTP API, async ingestion
// pipeline and the dispatch engine behind both.
package relayservice

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/illmade-knight/go-dataflow/pkg/messagepipeline"
	"github.com/tinywideclouds/go-microservice-base/pkg/microservice"
	"github.com/tinywideclouds/go-microservice-base/pkg/middleware"

	"github.com/tinywideclouds/go-push-relay/internal/api"
	"github.com/tinywideclouds/go-push-relay/internal/dispatch"
	"github.com/tinywideclouds/go-push-relay/internal/pipeline"
	"github.com/tinywideclouds/go-push-relay/pkg/relay"
	"github.com/tinywideclouds/go-push-relay/relayservice/config"
)

type Wrapper struct {
	*microservice.BaseServer
	pipelineService *messagepipeline.StreamingService[relay.SendRequest]
	logger          *slog.Logger
}

// New assembles the service.
func New(
	cfg *config.Config,
	consumer messagepipeline.MessageConsumer,
	gateway relay.Gateway,
	tokenStore relay.TokenStore,
	authMiddleware func(http.Handler) http.Handler,
	logger *slog.Logger,
) (*Wrapper, error) {

	// 1. Base Server
	baseServer := microservice.NewBaseServer(logger, cfg.ListenAddr)

	// 2. Dispatch Engine (shared by the HTTP API and the pipeline)
	engine := dispatch.NewEngine(tokenStore, gateway, dispatch.Config{
		SendTimeout: cfg.Gateway.SendTimeout,
		Priority:    cfg.Gateway.Priority,
		Sound:       cfg.Gateway.Sound,
		TokenFormat: cfg.TokenFormat,
	}, logger)

	// 3. Pipeline
	processor := pipeline.NewProcessor(engine, logger)
	streamingService, err := messagepipeline.NewStreamingService(
		messagepipeline.StreamingServiceConfig{NumWorkers: cfg.NumPipelineWorkers},
		consumer,
		pipeline.SendRequestTransformer,
		processor,
		logger,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create streaming service: %w", err)
	}

	// 4. API
	tokenAPI := api.NewTokenAPI(tokenStore, cfg.TokenFormat, logger)
	sendAPI := api.NewSendAPI(engine, logger)

	// Register Routes
	mux := baseServer.Mux()
	corsMiddleware := middleware.NewCorsMiddleware(cfg.CorsConfig, logger)

	// Helper for clean route definition
	handle := func(pattern string, handlerFunc http.HandlerFunc) {
		mux.Handle(pattern, corsMiddleware(authMiddleware(handlerFunc)))
	}

	// 1. Token registration
	handle("POST /api/v1/tokens", tokenAPI.SaveToken)

	// 2. Dispatch paths (segregated: user/broadcast vs raw token)
	handle("POST /api/v1/send/user", sendAPI.SendToUser)
	handle("POST /api/v1/send/token", sendAPI.SendToToken)

	// 3. Global OPTIONS for the API namespace (CORS preflight)
	mux.Handle("OPTIONS /api/v1/", corsMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Just returns 200 OK with CORS headers handled by middleware
	})))

	return &Wrapper{
		BaseServer:      baseServer,
		pipelineService: streamingService,
		logger:          logger,
	}, nil
}

func (w *Wrapper) Start(ctx context.Context) error {
	w.logger.Info("Core processing pipeline starting...")
	if err := w.pipelineService.Start(ctx); err != nil {
		return fmt.Errorf("failed to start processing service: %w", err)
	}
	w.SetReady(true)
	w.logger.Info("Service is now ready.")
	return w.BaseServer.Start()
}

func (w *Wrapper) Shutdown(ctx context.Context) error {
	w.logger.Info("Shutting down service components...")
	var finalErr error
	if err := w.pipelineService.Stop(ctx); err != nil {
		w.logger.Error("Processing pipeline shutdown failed.", "err", err)
		finalErr = err
	}
	if err := w.BaseServer.Shutdown(ctx); err != nil {
		w.logger.Error("HTTP server shutdown failed.", "err", err)
		finalErr = err
	}
	w.logger.Info("Service shutdown complete.")
	return finalErr
}
