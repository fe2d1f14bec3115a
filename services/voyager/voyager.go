// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package voyager assembles the travel agent service: session store,
// model client, tool registry, resilience layer, turn engine and the
// HTTP surface on top of them.
package voyager

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/AleutianAI/AleutianVoyage/services/llm"
	"github.com/AleutianAI/AleutianVoyage/services/voyager/classifier"
	"github.com/AleutianAI/AleutianVoyage/services/voyager/config"
	"github.com/AleutianAI/AleutianVoyage/services/voyager/engine"
	"github.com/AleutianAI/AleutianVoyage/services/voyager/observability"
	"github.com/AleutianAI/AleutianVoyage/services/voyager/resilience"
	"github.com/AleutianAI/AleutianVoyage/services/voyager/routes"
	"github.com/AleutianAI/AleutianVoyage/services/voyager/routing"
	"github.com/AleutianAI/AleutianVoyage/services/voyager/session"
	"github.com/AleutianAI/AleutianVoyage/services/voyager/tools"
	"github.com/AleutianAI/AleutianVoyage/services/voyager/transition"
)

// Service is the voyager service lifecycle.
//
// Thread Safety: safe for concurrent use after construction. Run
// blocks and must be called at most once.
type Service interface {
	// Run starts the HTTP server and blocks until it stops.
	Run() error

	// Router exposes the configured gin engine for tests.
	Router() *gin.Engine

	// Engine exposes the turn engine for embedded use (CLI chat).
	Engine() *engine.Engine

	// Shutdown releases the store, resilience state and tracer.
	Shutdown(ctx context.Context)
}

type service struct {
	cfg           config.Config
	router        *gin.Engine
	engine        *engine.Engine
	store         session.Store
	guard         *resilience.Service
	tracerCleanup func(context.Context)
}

// New builds a ready-to-run service from configuration. The session
// store is the one dependency whose failure is fatal at startup;
// everything downstream degrades at runtime instead.
func New(cfg config.Config) (Service, error) {
	s := &service{cfg: cfg}

	cleanup, err := initTracer(cfg.OTelEndpoint)
	if err != nil {
		slog.Warn("tracing disabled", "error", err)
	} else {
		s.tracerCleanup = cleanup
	}

	s.store, err = openStore(cfg)
	if err != nil {
		s.Shutdown(context.Background())
		return nil, fmt.Errorf("open session store: %w", err)
	}

	model, err := llm.NewFromBackend(cfg.LLMBackend)
	if err != nil {
		s.Shutdown(context.Background())
		return nil, fmt.Errorf("init llm backend %q: %w", cfg.LLMBackend, err)
	}

	s.guard = resilience.NewService(resilience.Config{
		Breaker: resilience.BreakerConfig{
			OnStateChange: func(target string, from, to resilience.BreakerState) {
				slog.Warn("breaker state change",
					"target", target, "from", from.String(), "to", to.String())
				observability.RecordBreakerTransition(target, to.String())
			},
		},
	})
	s.guard.Init()

	registry, err := buildRegistry(s.guard, cfg)
	if err != nil {
		s.Shutdown(context.Background())
		return nil, err
	}

	keyword := classifier.NewKeywordClassifier()
	llmClassifier, err := classifier.NewLLMClassifier(model, keyword, classifier.Config{})
	if err != nil {
		s.Shutdown(context.Background())
		return nil, fmt.Errorf("init classifier: %w", err)
	}
	router := routing.New(keyword, llmClassifier)

	s.engine = engine.New(engine.Config{TurnTimeout: cfg.TurnTimeout},
		model, router, transition.New(), registry, s.store)

	s.initRouter()
	return s, nil
}

func (s *service) Run() error {
	addr := fmt.Sprintf(":%d", s.cfg.Port)
	slog.Info("voyager listening", "addr", addr,
		"llm_backend", s.cfg.LLMBackend, "store_backend", s.cfg.StoreBackend)
	return s.router.Run(addr)
}

func (s *service) Router() *gin.Engine { return s.router }

func (s *service) Engine() *engine.Engine { return s.engine }

func (s *service) Shutdown(ctx context.Context) {
	if s.guard != nil {
		s.guard.Shutdown()
	}
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			slog.Warn("store close error", "error", err)
		}
	}
	if s.tracerCleanup != nil {
		s.tracerCleanup(ctx)
	}
}

func (s *service) initRouter() {
	if s.cfg.GinMode != "" {
		gin.SetMode(s.cfg.GinMode)
	}
	s.router = gin.Default()
	s.router.Use(otelgin.Middleware("voyager-service"))
	routes.SetupRoutes(s.router, s.engine, s.store, s.guard)
}

// openStore selects the session backend.
func openStore(cfg config.Config) (session.Store, error) {
	storeCfg := session.Config{TTL: cfg.SessionTTL}
	switch cfg.StoreBackend {
	case "", "memory":
		return session.NewMemoryStore(storeCfg), nil
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
		if err := client.Ping(context.Background()).Err(); err != nil {
			return nil, fmt.Errorf("redis ping %s: %w", cfg.RedisAddr, err)
		}
		return session.NewRedisStore(client, storeCfg), nil
	case "badger":
		return session.OpenBadgerStore(cfg.BadgerPath, storeCfg)
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
}

// buildRegistry registers every provider adapter.
func buildRegistry(guard *resilience.Service, cfg config.Config) (*tools.Registry, error) {
	policy, err := tools.NewPolicyTool(cfg.PolicyCorpusPath)
	if err != nil {
		return nil, fmt.Errorf("init policy tool: %w", err)
	}

	registry := tools.NewRegistry(guard)
	registry.Register(tools.NewWeatherTool())
	registry.Register(tools.NewCountryTool())
	registry.Register(tools.NewAttractionsTool())
	registry.Register(tools.NewFlightsTool())
	registry.Register(tools.NewWebSearchTool())
	registry.Register(policy)
	return registry, nil
}

// initTracer sets up the OTLP span exporter. An unreachable collector
// is a warning, not a startup failure.
func initTracer(endpoint string) (func(context.Context), error) {
	ctx := context.Background()

	conn, err := grpc.NewClient(endpoint,
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("otel collector connection: %w", err)
	}

	traceExporter, err := otlptracegrpc.New(ctx, otlptracegrpc.WithGRPCConn(conn))
	if err != nil {
		return nil, fmt.Errorf("otel trace exporter: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceNameKey.String("voyager-service")))
	if err != nil {
		return nil, fmt.Errorf("otel resource: %w", err)
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithResource(res),
		sdktrace.WithSpanProcessor(sdktrace.NewBatchSpanProcessor(traceExporter)))

	otel.SetTracerProvider(provider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{}, propagation.Baggage{}))

	return func(ctx context.Context) {
		ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := traceExporter.Shutdown(ctx); err != nil {
			slog.Error("otel exporter shutdown failed", "error", err)
		}
	}, nil
}
