package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/aixgo-dev/reasongraph/internal/index"
	"github.com/aixgo-dev/reasongraph/internal/llm/cost"
	"github.com/aixgo-dev/reasongraph/internal/llm/inference"
	"github.com/aixgo-dev/reasongraph/internal/logger"
	"github.com/aixgo-dev/reasongraph/internal/reasoning"
	"github.com/aixgo-dev/reasongraph/internal/store"
	_ "github.com/aixgo-dev/reasongraph/internal/store/memory"
	_ "github.com/aixgo-dev/reasongraph/internal/store/sqlite"
	"github.com/aixgo-dev/reasongraph/pkg/config"
	"github.com/aixgo-dev/reasongraph/pkg/embeddings"
	"github.com/aixgo-dev/reasongraph/pkg/observability"
)

const modelTimeout = 5 * time.Minute

// app holds the wired components shared by every command.
type app struct {
	cfg    *config.Config
	logger *zap.Logger
	model  inference.Service
	cache  *embeddings.CachedEmbedder
	store  store.Store
	index  *index.Index
	query  *reasoning.QueryService
	health *observability.HealthChecker
}

func loadApp(opts *rootOptions) (*app, error) {
	cfg, err := config.LoadConfig(opts.configFile)
	if err != nil {
		return nil, err
	}
	if opts.logLevel != "" {
		cfg.Observability.LogLevel = opts.logLevel
	}
	if opts.logFormat != "" {
		cfg.Observability.LogFormat = opts.logFormat
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	log, err := logger.New(cfg.Observability.LogLevel, cfg.Observability.LogFormat)
	if err != nil {
		return nil, err
	}
	return newApp(cfg, log)
}

func newApp(cfg *config.Config, log *zap.Logger) (*app, error) {
	a := &app{cfg: cfg, logger: log, health: observability.NewHealthChecker()}

	model, err := newModel(cfg, log)
	if err != nil {
		return nil, err
	}
	a.model = model

	var embedder inference.Embedder = model
	if cfg.Cache.Addr != "" {
		a.cache, err = embeddings.NewCachedEmbedder(model, embedModel(cfg), embeddings.CacheConfig{
			Addr:     cfg.Cache.Addr,
			Password: cfg.Cache.Password,
			DB:       cfg.Cache.DB,
			Prefix:   cfg.Cache.Prefix,
			TTL:      cfg.Cache.TTL,
		}, log)
		if err != nil {
			return nil, err
		}
		embedder = a.cache
		a.health.RegisterCheck(observability.ExternalServiceCheck("embedding_cache", a.cache.Ping))
	}

	a.store, err = store.Open(store.Config{Driver: cfg.Store.Driver, Path: cfg.Store.Path})
	if err != nil {
		a.Close()
		return nil, err
	}
	a.health.RegisterCheck(observability.StoreCheck(a.store.Ping))
	a.health.RegisterCheck(observability.ExternalServiceCheck("model", func(context.Context) error {
		if !model.Available() {
			return errors.New("model backend unavailable")
		}
		return nil
	}))

	opts := []reasoning.Option{
		reasoning.WithLogger(log),
		reasoning.WithCostCalculator(cost.NewCalculator()),
	}
	if cfg.Reasoning.Consistency == "model" {
		opts = append(opts, reasoning.WithConsistencyChecker(
			reasoning.NewModelConsistencyChecker(model, cfg.Model.ChatModel, log),
		))
	}
	orch := reasoning.New(model, embedder, a.store, reasoning.Config{
		Model:           cfg.Model.ChatModel,
		MaxSteps:        cfg.Reasoning.MaxSteps,
		MinSteps:        cfg.Reasoning.MinSteps,
		MaxContentRunes: cfg.Reasoning.MaxContentChars,
		TopK:            cfg.Reasoning.TopK,
		StepMaxTokens:   cfg.Model.MaxTokens,
		FinalMaxTokens:  cfg.Model.FinalTokens,
		Temperature:     cfg.Model.Temperature,
	}, opts...)

	a.index = index.New(cfg.Index.Dimensions, log)
	a.query = reasoning.NewQueryService(orch, embedder, a.store, a.index, reasoning.QueryConfig{
		SimilarTopK:   cfg.Index.SimilarTopK,
		ResetPerQuery: cfg.Store.ResetPerQuery,
	}, log)

	log.Info("reasongraph initialized",
		zap.String("provider", cfg.Model.Provider),
		zap.String("chat_model", cfg.Model.ChatModel),
		zap.String("store", cfg.Store.Driver),
		zap.Bool("embedding_cache", a.cache != nil),
		zap.String("consistency", cfg.Reasoning.Consistency),
	)
	return a, nil
}

func newModel(cfg *config.Config, log *zap.Logger) (inference.Service, error) {
	switch cfg.Model.Provider {
	case "ollama":
		return inference.NewOllamaService(inference.OllamaConfig{
			BaseURL:      cfg.Model.BaseURL,
			EmbedModel:   embedModel(cfg),
			AllowedHosts: cfg.Model.AllowedHosts,
			Timeout:      modelTimeout,
		})
	case "openai":
		return inference.NewOpenAIService(inference.OpenAIConfig{
			APIKey:     cfg.Model.APIKey,
			BaseURL:    cfg.Model.BaseURL,
			EmbedModel: embedModel(cfg),
		}), nil
	case "mock":
		log.Warn("using mock model provider")
		return inference.NewMockService(cfg.Index.Dimensions), nil
	default:
		return nil, fmt.Errorf("unknown model provider: %s", cfg.Model.Provider)
	}
}

func embedModel(cfg *config.Config) string {
	if cfg.Model.EmbedModel != "" {
		return cfg.Model.EmbedModel
	}
	return cfg.Model.ChatModel
}

// Close releases the store and cache connections.
func (a *app) Close() error {
	var errs []error
	if a.store != nil {
		errs = append(errs, a.store.Close())
	}
	if a.cache != nil {
		errs = append(errs, a.cache.Close())
	}
	_ = a.logger.Sync()
	return errors.Join(errs...)
}
