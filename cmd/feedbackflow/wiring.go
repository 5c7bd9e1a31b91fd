package main

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"

	"github.com/spacesedan/feedbackflow/config"
	"github.com/spacesedan/feedbackflow/internal/analysis"
	"github.com/spacesedan/feedbackflow/internal/cache"
	"github.com/spacesedan/feedbackflow/internal/clients"
	"github.com/spacesedan/feedbackflow/internal/clients/kafka_client"
	"github.com/spacesedan/feedbackflow/internal/db"
	"github.com/spacesedan/feedbackflow/internal/models"
	"github.com/spacesedan/feedbackflow/internal/monitoring"
	"github.com/spacesedan/feedbackflow/internal/pipeline"
)

func newAnalyzer(ctx context.Context, cfg config.Config, facets []analysis.Facet) (analysis.Analyzer, error) {
	switch strings.ToLower(cfg.Analyzer) {
	case analysis.OPENAI_ANALYZER:
		client, err := clients.NewOpenAIClient(clients.OpenAIConfig{
			APIKey:  cfg.OpenAIAPIKey,
			BaseURL: cfg.OpenAIBaseURL,
			Timeout: cfg.OpenAITimeout,
		})
		if err != nil {
			return nil, err
		}
		return analysis.NewOpenAIAnalyzer(client, cfg.OpenAIModel, cfg.OpenAITemperature, facets), nil

	case analysis.HOSTED_ANALYZER:
		client, err := clients.NewHuggingFaceClient(cfg.HostedAnalyzerURL, cfg.HostedAnalyzerTimeout)
		if err != nil {
			return nil, err
		}
		healthy := &atomic.Bool{}
		healthy.Store(true)
		go monitoring.MonitorAnalyzerHealth(ctx, analysis.HOSTED_ANALYZER, client.HealthCheck, healthy, 0)
		return analysis.WithHealthCheck(analysis.NewHostedAnalyzer(client), healthy), nil

	case analysis.LEXICON_ANALYZER:
		return analysis.NewLexiconAnalyzer(), nil
	}
	return nil, fmt.Errorf("%w: unknown analyzer %q (use openai, hosted or lexicon)", models.ErrProcessing, cfg.Analyzer)
}

type cacheHandle struct {
	cache cache.Cache
	close func()
}

// newCache returns nil when no Valkey server is configured or reachable.
func newCache(cfg config.Config) *cacheHandle {
	if cfg.ValkeyAddress == "" {
		return nil
	}
	client, err := clients.NewValkeyClient(clients.ValkeyConfig{
		Address:  cfg.ValkeyAddress,
		Password: cfg.ValkeyPassword,
		TLS:      cfg.ValkeyTLS,
	})
	if err != nil {
		slog.Warn("[CLI] Result cache disabled", slog.String("error", err.Error()))
		return nil
	}
	return &cacheHandle{cache: cache.NewValkey(client, cfg.CacheTTL), close: client.Close}
}

// newSinks connects the configured result stores. A store that cannot be
// reached is skipped with a warning.
func newSinks(ctx context.Context, cfg config.Config) ([]pipeline.Sink, func()) {
	var sinks []pipeline.Sink
	var closers []func()

	if cfg.DynamoDBTable != "" {
		client, err := clients.NewDynamoDBClient(ctx, clients.AWSConfig{
			Endpoint: cfg.AWSEndpoint,
			Region:   cfg.AWSRegion,
		})
		if err != nil {
			slog.Warn("[CLI] DynamoDB sink disabled", slog.String("error", err.Error()))
		} else {
			sinks = append(sinks, pipeline.DynamoDBSink(db.NewResultStore(client, cfg.DynamoDBTable)))
		}
	}

	if cfg.KafkaBroker != "" {
		publisher, err := kafka_client.NewResultPublisher(ctx, kafka_client.KafkaConfig{
			Broker: cfg.KafkaBroker,
			Topic:  cfg.KafkaResultsTopic,
		})
		if err != nil {
			slog.Warn("[CLI] Kafka sink disabled", slog.String("error", err.Error()))
		} else {
			sinks = append(sinks, pipeline.KafkaSink(publisher))
			closers = append(closers, publisher.Close)
		}
	}

	return sinks, func() {
		for _, c := range closers {
			c()
		}
	}
}
