package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/najimovi/starting-ragchatbot-codebase/internal/config"
	"github.com/najimovi/starting-ragchatbot-codebase/internal/core"
	"github.com/najimovi/starting-ragchatbot-codebase/internal/embedding"
	"github.com/najimovi/starting-ragchatbot-codebase/internal/ingest"
	"github.com/najimovi/starting-ragchatbot-codebase/internal/store"
)

// geminiEmbedInterval keeps bulk ingestion under the free-tier embedding quota.
const geminiEmbedInterval = 50 * time.Millisecond

// app holds the components shared by every command.
type app struct {
	db       *store.SQLiteStore
	llm      *core.LLMService // nil unless a Gemini component is configured
	catalog  *store.CatalogStore
	chunks   *store.ChunkStore
	embedder embedding.Embedder
	ingestor *ingest.Ingestor
}

// newApp opens the database, loads both stores and picks the embedder. needModel forces a
// Gemini client even when embeddings are local.
func newApp(ctx context.Context, needModel bool) (*app, error) {
	cfg := config.AppConfig

	db, err := store.NewSQLiteStore(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	a := &app{db: db, catalog: store.NewCatalogStore(db), chunks: store.NewChunkStore(db)}

	useGemini := cfg.EmbeddingProvider != "local"
	if needModel || useGemini {
		config.RequireGemini()
		a.llm, err = core.NewLLMService(ctx, cfg.GeminiAPIKey, cfg.ChatModel, cfg.EmbeddingModel)
		if err != nil {
			a.Close()
			return nil, err
		}
	}

	var interval time.Duration
	var hash *embedding.HashEmbedder
	if useGemini {
		a.embedder = a.llm
		interval = geminiEmbedInterval
	} else {
		hash = embedding.NewHashEmbedder(embedding.DefaultHashDims)
		log.Printf("Using local hash embeddings (%d dimensions)", hash.Dims())
		a.embedder = hash
	}
	a.embedder = embedding.WithTimeout(a.embedder, cfg.ExternalCallTimeout)

	if err := a.catalog.Load(ctx); err != nil {
		a.Close()
		return nil, err
	}
	if err := a.chunks.Load(ctx); err != nil {
		a.Close()
		return nil, err
	}
	if err := a.checkDimensions(ctx, hash); err != nil {
		a.Close()
		return nil, err
	}

	a.ingestor = ingest.NewIngestor(a.catalog, a.chunks, a.embedder, ingest.Options{
		Chunk: ingest.ChunkOptions{
			Size:     cfg.ChunkSize,
			Overlap:  cfg.ChunkOverlap,
			Lookback: ingest.DefaultLookback,
		},
		EmbedInterval: interval,
	})
	return a, nil
}

// checkDimensions refuses to mix vectors from different embedders in one database. The
// Gemini dimension is only known by embedding something, so that costs one request.
func (a *app) checkDimensions(ctx context.Context, hash *embedding.HashEmbedder) error {
	stored := a.catalog.Dimension()
	if stored == 0 {
		stored = a.chunks.Dimension()
	}
	if stored == 0 {
		return nil
	}
	if c, ch := a.catalog.Dimension(), a.chunks.Dimension(); c != 0 && ch != 0 && c != ch {
		return fmt.Errorf("%w: catalog has %d dimensions, chunks have %d; re-ingest into a fresh database", store.ErrDimensionMismatch, c, ch)
	}

	var produced int
	if hash != nil {
		produced = hash.Dims()
	} else {
		vec, err := a.embedder.Embed(ctx, "dimension check")
		if err != nil {
			return fmt.Errorf("failed to measure embedding dimension: %w", err)
		}
		produced = len(vec)
	}
	return embeddingDimensionError(stored, produced, config.AppConfig.EmbeddingProvider, config.AppConfig.DatabaseURL)
}

func embeddingDimensionError(stored, produced int, provider, database string) error {
	if stored == 0 || stored == produced {
		return nil
	}
	return fmt.Errorf("%w: %s holds %d-dimensional vectors but EMBEDDING_PROVIDER=%s produces %d; switch the provider back or use a fresh DATABASE_URL",
		store.ErrDimensionMismatch, database, stored, provider, produced)
}

func (a *app) chatService() (*core.ChatService, error) {
	cfg := config.AppConfig
	engine := core.NewRetrievalEngine(a.catalog, a.chunks, a.embedder, core.RetrievalOptions{
		DefaultLimit:      cfg.MaxResults,
		MaxCourseDistance: cfg.CourseMatchMaxDistance,
	})
	tools, err := core.NewToolRegistry(core.NewSearchTool(engine), core.NewOutlineTool(engine))
	if err != nil {
		return nil, err
	}
	orchestrator := core.NewOrchestrator(a.llm, tools, core.OrchestratorOptions{
		MaxToolRounds: cfg.MaxToolRounds,
		Timeout:       cfg.ExternalCallTimeout,
		Debug:         cfg.Debug(),
	})
	return core.NewChatService(core.NewConversationMemory(cfg.MaxHistory), orchestrator, a.catalog, a.chunks), nil
}

func (a *app) Close() {
	if a.llm != nil {
		a.llm.Close()
	}
	if err := a.db.Close(); err != nil {
		log.Printf("Error closing database: %v", err)
	}
}
