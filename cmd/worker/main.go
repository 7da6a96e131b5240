package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joao-fontenele/marketplace/internal/auth"
	"github.com/joao-fontenele/marketplace/internal/client"
	"github.com/joao-fontenele/marketplace/internal/config"
	"github.com/joao-fontenele/marketplace/internal/domain"
	"github.com/joao-fontenele/marketplace/internal/messaging"
	"github.com/joao-fontenele/marketplace/internal/telemetry"
	"github.com/joao-fontenele/marketplace/internal/worker"
)

// serviceAccountID identifies the worker in tokens it mints for itself.
const serviceAccountID = "00000000-0000-0000-0000-000000000001"

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg, err := config.Load("", config.RequireKafka, config.RequireSecret, config.RequireAPI, config.RequireEmail)
	if err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownTracer, err := telemetry.InitTracerProvider(ctx, cfg.OTLPEndpoint, "order-worker", "0.1.0")
	if err != nil {
		logger.Error("failed to initialize tracer", "error", err)
		os.Exit(1)
	}
	defer func() { _ = shutdownTracer(context.Background()) }()

	// the worker calls admin-only endpoints, so it signs its own token
	tokens := auth.NewTokens(cfg.JWTSecret, 365*24*time.Hour)
	token, _, err := tokens.Issue(domain.AuthenticatedUser{
		ID:         serviceAccountID,
		Email:      "order-worker@marketplace.internal",
		Role:       domain.UserRoleAdmin,
		IsVerified: true,
	})
	if err != nil {
		logger.Error("failed to issue service token", "error", err)
		os.Exit(1)
	}

	httpClient := client.NewHTTPClient(10 * time.Second)
	processor := worker.NewOrderProcessor(
		client.New(cfg.APIURL, token, httpClient),
		client.NewMailer(cfg.EmailServiceURL, httpClient),
		logger,
	)

	consumer := messaging.NewConsumer(cfg.KafkaBrokers, messaging.TopicOrderCreated, "order-worker",
		messaging.WithRetry(5, 500*time.Millisecond),
	)
	defer func() { _ = consumer.Close() }()

	go func() {
		stop := make(chan os.Signal, 1)
		signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
		<-stop
		logger.Info("shutting down")
		cancel()
	}()

	logger.Info("starting order worker", "brokers", cfg.KafkaBrokers, "topic", messaging.TopicOrderCreated)

	if err := consumer.Consume(ctx, processor.Handle); err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Info("consumer stopped")
			return
		}
		logger.Error("consumer error", "error", err)
		os.Exit(1)
	}
}
