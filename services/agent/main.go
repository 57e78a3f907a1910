// Copyright (C) 2025 StyleSeek AI (dev@styleseek.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc/credentials/insecure"

	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"google.golang.org/grpc"

	"github.com/styleseek-ai/styleseek/pkg/logging"
	"github.com/styleseek-ai/styleseek/services/agent/handlers"
	"github.com/styleseek-ai/styleseek/services/agent/jobs"
	"github.com/styleseek-ai/styleseek/services/agent/observability"
	"github.com/styleseek-ai/styleseek/services/agent/pipeline"
	"github.com/styleseek-ai/styleseek/services/agent/routes"
	"github.com/styleseek-ai/styleseek/services/agent/session"
	"github.com/styleseek-ai/styleseek/services/agent/telemetry"
	"github.com/styleseek-ai/styleseek/services/llm"
	"github.com/styleseek-ai/styleseek/services/models"
	"github.com/styleseek-ai/styleseek/services/search"
)

func initTracer() (func(context.Context), error) {
	ctx := context.Background()

	otelEndpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	if otelEndpoint == "" {
		otelEndpoint = "styleseek-otel-collector:4317"
	}
	conn, err := grpc.NewClient(otelEndpoint,
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, err
	}
	traceExporter, err := otlptracegrpc.New(ctx, otlptracegrpc.WithGRPCConn(conn))
	if err != nil {
		return nil, err
	}
	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceNameKey.String("agent-service")))
	if err != nil {
		return nil, err
	}
	bsp := sdktrace.NewBatchSpanProcessor(traceExporter)
	traceProvider := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithResource(res),
		sdktrace.WithSpanProcessor(bsp))
	otel.SetTracerProvider(traceProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.
		TraceContext{}, propagation.Baggage{}))

	return func(ctx context.Context) {
		ctx, cancel := context.WithTimeout(ctx, time.Second*5)
		defer cancel()
		if err := traceExporter.Shutdown(ctx); err != nil {
			slog.Error("failed to shutdown OTLP exporter", "error", err)
		}
	}, nil
}

// newWeaviateClient parses WEAVIATE_SERVICE_URL and builds the client.
// Review retrieval is a core pipeline stage, so a missing or invalid URL
// is fatal.
func newWeaviateClient() (*weaviate.Client, error) {
	weaviateURL := strings.Trim(os.Getenv("WEAVIATE_SERVICE_URL"), "\"' ")
	if weaviateURL == "" {
		weaviateURL = "http://weaviate:8080"
		slog.Warn("WEAVIATE_SERVICE_URL not set, using default", "url", weaviateURL)
	}
	parsedURL, err := url.Parse(weaviateURL)
	if err != nil {
		return nil, err
	}
	return weaviate.NewClient(weaviate.Config{
		Host:   parsedURL.Host,
		Scheme: parsedURL.Scheme,
	})
}

func main() {
	port := os.Getenv("AGENT_PORT")
	if port == "" {
		port = "8000"
	}
	dataDir := os.Getenv("AGENT_DATA_DIR")
	if dataDir == "" {
		dataDir = "data"
	}

	logging.Setup()
	observability.InitMetrics()

	cleanup, err := initTracer()
	if err != nil {
		log.Fatalf("failed to setup the OTLP tracer: %v", err)
	}
	defer cleanup(context.Background())

	weaviateClient, err := newWeaviateClient()
	if err != nil {
		log.Fatalf("failed to create Weaviate client: %v", err)
	}
	reviewSearcher := search.NewReviewSearcher(weaviateClient)
	if err := reviewSearcher.EnsureSchema(context.Background()); err != nil {
		slog.Warn("failed to ensure review schema", "error", err)
	}

	llmClient, err := llm.NewOpenAIClient()
	if err != nil {
		log.Fatalf("failed to initialize LLM client: %v", err)
	}

	sessions, err := session.Open(session.DefaultConfig(dataDir + "/sessions"))
	if err != nil {
		log.Fatalf("failed to open session store: %v", err)
	}
	defer sessions.Close()

	appender, err := telemetry.NewAppender(dataDir)
	if err != nil {
		log.Fatalf("failed to open telemetry appender: %v", err)
	}

	modelClient := models.NewClient()
	registry := models.NewRegistry(os.Getenv("ARTIFACTS_DIR"))
	if err := registry.Watch(); err != nil {
		slog.Warn("artifact watcher unavailable", "error", err)
	}
	defer registry.Close()

	pipe := pipeline.New(search.NewAnalystClient(), reviewSearcher,
		modelClient, pipeline.ConfigFromEnv())

	chatHandler := handlers.NewChatHandler(pipe, llmClient, sessions, appender)
	feedbackHandler := handlers.NewFeedbackHandler(appender)
	adminHandler := handlers.NewAdminHandler(registry, jobs.NewStore(), modelClient, dataDir)

	router := gin.Default()
	router.Use(otelgin.Middleware("agent-service"))
	routes.SetupRoutes(router, chatHandler, feedbackHandler, adminHandler)

	srv := &http.Server{
		Addr:    ":" + port,
		Handler: router,
	}

	ctx, stop := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("starting agent server", "port", port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Fatalf("server exited with error: %v", err)
	}
	slog.Info("agent server stopped")
}
