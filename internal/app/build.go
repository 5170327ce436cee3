package app

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/akarpova/embra/internal/brain"
	"github.com/akarpova/embra/internal/config"
	"github.com/akarpova/embra/internal/conversation"
	"github.com/akarpova/embra/internal/embedding"
	"github.com/akarpova/embra/internal/httpapi"
	"github.com/akarpova/embra/internal/knowledge"
	"github.com/akarpova/embra/internal/memory"
	"github.com/akarpova/embra/internal/observability"
	"github.com/akarpova/embra/internal/prompt"
	"github.com/akarpova/embra/internal/storage"
	"github.com/akarpova/embra/internal/turn"
)

type BuildResult struct {
	Config   config.Config
	API      *httpapi.Server
	Pipeline *turn.Pipeline
	Runtime  *conversation.Manager
	Metrics  *observability.Metrics

	// Cleanup should be called on shutdown to release external resources (DB pool, embedder model).
	Cleanup func() error
}

// storeSet groups the three persistence backends resolved from config.
// All three always share one backend kind.
type storeSet struct {
	conversations conversation.Store
	memories      memory.Store
	documents     knowledge.Store
	detail        string
	close         func() error
}

func Build(ctx context.Context, cfg config.Config) (*BuildResult, error) {
	metrics := observability.NewMetrics(cfg.MetricsNamespace)

	stores, err := resolveStores(ctx, cfg)
	if err != nil {
		return nil, err
	}
	log.Printf("storage backend: %s", stores.detail)

	// A crash mid-turn leaves an empty assistant placeholder in storage
	// while its PendingError dies with the process. Reconcile before the
	// history becomes observable.
	if n, err := stores.conversations.DeleteEmptyAssistantMessages(ctx); err != nil {
		_ = stores.close()
		return nil, fmt.Errorf("placeholder reconciliation failed: %w", err)
	} else if n > 0 {
		log.Printf("removed %d orphaned assistant placeholder(s) left by a previous run", n)
	}

	adapter, err := brain.NewAdapter(brain.Config{
		Mode:         cfg.BrainMode,
		HTTPURL:      cfg.BrainHTTPURL,
		APIKey:       cfg.BrainAPIKey,
		GatewayURL:   cfg.BrainGatewayURL,
		GatewayToken: cfg.BrainGatewayToken,
	})
	if err != nil {
		_ = stores.close()
		return nil, fmt.Errorf("brain adapter init failed: %w", err)
	}

	embedder := resolveEmbedder(ctx, cfg)

	templates := prompt.DefaultTemplates()
	if strings.TrimSpace(cfg.ExtractionSentinel) != "" {
		templates.ExtractionSentinel = cfg.ExtractionSentinel
	}

	runtime := conversation.NewManager()
	memoryRetriever := memory.NewRetriever(stores.memories, embedder, cfg.MemoryMinAgeDays, cfg.MemoryRetrievalLimit)
	documentRetriever := knowledge.NewRetriever(stores.documents, embedder, cfg.RAGTopK)
	extractor := memory.NewExtractor(adapter, embedder, stores.memories, templates.ExtractionPrompt, templates.ExtractionSentinel)

	pipeline := turn.NewPipeline(
		stores.conversations,
		runtime,
		adapter,
		templates,
		memoryRetriever,
		documentRetriever,
		extractor,
		metrics,
		turn.Options{
			EmpathyEnabled:    cfg.EmpathyEnabled,
			MemoryEnabled:     cfg.MemoryEnabled,
			RAGEnabled:        cfg.RAGEnabled,
			HistoryLimitPairs: cfg.HistoryLimitPairs,
			Sampling: brain.Sampling{
				Temperature: cfg.Temperature,
				TopP:        cfg.TopP,
				MaxTokens:   cfg.MaxTokens,
			},
			BaseContext:    cfg.BaseContext,
			StreamMinChars: cfg.StreamMinChars,
		},
	)

	api := httpapi.New(cfg, pipeline, runtime, stores.conversations, stores.memories, stores.documents, embedder, metrics)

	cleanup := func() error {
		var errs []string
		if err := embedder.UnloadModel(); err != nil {
			errs = append(errs, err.Error())
		}
		if err := stores.close(); err != nil {
			errs = append(errs, err.Error())
		}
		if len(errs) > 0 {
			return fmt.Errorf("%s", strings.Join(errs, "; "))
		}
		return nil
	}

	return &BuildResult{
		Config:   cfg,
		API:      api,
		Pipeline: pipeline,
		Runtime:  runtime,
		Metrics:  metrics,
		Cleanup:  cleanup,
	}, nil
}

func resolveStores(ctx context.Context, cfg config.Config) (*storeSet, error) {
	if strings.TrimSpace(cfg.DatabaseURL) != "" {
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("postgres pool init failed: %w", err)
		}
		conversations, err := conversation.NewPostgresStore(ctx, pool)
		if err != nil {
			pool.Close()
			return nil, fmt.Errorf("conversation store init failed: %w", err)
		}
		memories, err := memory.NewPostgresStore(ctx, pool, cfg.EmbeddingDim)
		if err != nil {
			pool.Close()
			return nil, fmt.Errorf("memory store init failed: %w", err)
		}
		documents, err := knowledge.NewPostgresStore(ctx, pool, cfg.EmbeddingDim)
		if err != nil {
			pool.Close()
			return nil, fmt.Errorf("knowledge store init failed: %w", err)
		}
		return &storeSet{
			conversations: conversations,
			memories:      memories,
			documents:     documents,
			detail:        "postgres",
			close: func() error {
				pool.Close()
				return nil
			},
		}, nil
	}

	if strings.TrimSpace(cfg.SQLitePath) != "" {
		db, err := storage.OpenSQLite(cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("sqlite open failed: %w", err)
		}
		conversations, err := conversation.NewSQLiteStore(db)
		if err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("conversation store init failed: %w", err)
		}
		memories, err := memory.NewSQLiteStore(db)
		if err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("memory store init failed: %w", err)
		}
		documents, err := knowledge.NewSQLiteStore(db)
		if err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("knowledge store init failed: %w", err)
		}
		return &storeSet{
			conversations: conversations,
			memories:      memories,
			documents:     documents,
			detail:        fmt.Sprintf("sqlite (%s)", cfg.SQLitePath),
			close:         db.Close,
		}, nil
	}

	return &storeSet{
		conversations: conversation.NewInMemoryStore(),
		memories:      memory.NewInMemoryStore(),
		documents:     knowledge.NewInMemoryStore(),
		detail:        "in-memory",
		close:         func() error { return nil },
	}, nil
}

// resolveEmbedder never fails the build. A dead embedding endpoint degrades
// retrieval and extraction to vectorless behavior instead of blocking chat.
func resolveEmbedder(ctx context.Context, cfg config.Config) embedding.Embedder {
	if strings.EqualFold(strings.TrimSpace(cfg.EmbeddingURL), "mock") {
		log.Printf("embedder: mock (dim %d)", cfg.EmbeddingDim)
		return embedding.NewMockEmbedder(cfg.EmbeddingDim)
	}
	embedder := embedding.NewOllamaEmbedder(cfg.EmbeddingURL)
	if err := embedder.LoadModel(ctx, cfg.EmbeddingModel); err != nil {
		log.Printf("embedding model %q unavailable, retrieval will degrade: %v", cfg.EmbeddingModel, err)
	} else {
		log.Printf("embedder: ollama %s (%s)", cfg.EmbeddingURL, cfg.EmbeddingModel)
	}
	return embedder
}
