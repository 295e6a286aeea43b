// Package app wires the application together: configuration, logging,
// database, model backends and the domain stores. Components are
// constructed once here and passed by reference; nothing reaches for
// global state.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ilzarachman/chatbot-helpdesk/db"
	"github.com/ilzarachman/chatbot-helpdesk/internal/chat"
	"github.com/ilzarachman/chatbot-helpdesk/internal/config"
	"github.com/ilzarachman/chatbot-helpdesk/internal/conversation"
	"github.com/ilzarachman/chatbot-helpdesk/internal/database"
	"github.com/ilzarachman/chatbot-helpdesk/internal/document"
	"github.com/ilzarachman/chatbot-helpdesk/internal/ingest"
	"github.com/ilzarachman/chatbot-helpdesk/internal/intent"
	"github.com/ilzarachman/chatbot-helpdesk/internal/knowledge"
	"github.com/ilzarachman/chatbot-helpdesk/internal/log"
	"github.com/ilzarachman/chatbot-helpdesk/internal/model"
	"github.com/ilzarachman/chatbot-helpdesk/internal/model/gemini"
	"github.com/ilzarachman/chatbot-helpdesk/internal/model/openai"
	"github.com/ilzarachman/chatbot-helpdesk/internal/prompt"
	"github.com/ilzarachman/chatbot-helpdesk/internal/question"
)

// App is the application container.
type App struct {
	Config *config.Config
	Logger log.Logger
	Pool   *pgxpool.Pool

	Models  *model.Registry
	Prompts *prompt.Registry

	Knowledge     *knowledge.Store
	Conversations *conversation.Store
	Documents     *document.Store
	Questions     *question.Store
	Worker        *ingest.Worker

	Orchestrator *chat.Orchestrator
	Titler       *chat.TitleGenerator
}

// Setup builds the full application from configuration. It runs pending
// migrations before handing the pool to the stores.
func Setup(ctx context.Context, cfg *config.Config) (*App, error) {
	logger := log.New(log.Config{Level: logLevel(cfg.LogLevel), JSON: cfg.LogJSON})

	if err := db.Migrate(cfg.PostgresURL(), logger); err != nil {
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	pool, err := database.Open(ctx, cfg.PostgresURL())
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	prompts, err := loadPrompts(cfg)
	if err != nil {
		pool.Close()
		return nil, err
	}

	models := NewModelRegistry(ctx, cfg, logger)
	generator, err := models.Generator(cfg.GenerationModel)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("constructing generator: %w", err)
	}
	embedder, err := models.Embedder(cfg.EmbeddingModel)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("constructing embedder: %w", err)
	}

	chunker := knowledge.Chunker{Size: cfg.ChunkSize, Overlap: cfg.ChunkOverlap}
	knowledgeStore := knowledge.New(knowledge.NewPostgresQuerier(pool), embedder, chunker, logger)
	conversations := conversation.New(conversation.NewPostgresQuerier(pool), logger)

	documents, err := document.NewStore(document.NewPostgresQuerier(pool), cfg.UploadDir, logger)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("creating document store: %w", err)
	}
	worker := ingest.NewWorker(documents, knowledgeStore, logger)
	questions := question.New(question.NewPostgresQuerier(pool), knowledgeStore, logger)

	classifier := intent.NewClassifier(generator, prompts, logger)
	router := chat.NewRouter(knowledgeStore, prompts, generator, cfg.TopK, logger)
	orchestrator := chat.NewOrchestrator(classifier, router, conversations, cfg.HistoryWindow, logger)
	titler := chat.NewTitleGenerator(generator, prompts)

	return &App{
		Config:        cfg,
		Logger:        logger,
		Pool:          pool,
		Models:        models,
		Prompts:       prompts,
		Knowledge:     knowledgeStore,
		Conversations: conversations,
		Documents:     documents,
		Questions:     questions,
		Worker:        worker,
		Orchestrator:  orchestrator,
		Titler:        titler,
	}, nil
}

// Close releases the application's resources.
func (a *App) Close() {
	if a.Pool != nil {
		a.Pool.Close()
		a.Logger.Info("database pool closed")
	}
}

// NewModelRegistry registers the supported backends. New backends are
// added here; selection stays in configuration.
func NewModelRegistry(ctx context.Context, cfg *config.Config, logger log.Logger) *model.Registry {
	registry := model.NewRegistry()
	registry.RegisterGenerator(cfg.GenerationModel, func() (model.Generator, error) {
		return gemini.New(ctx, cfg.GeminiAPIKey, cfg.GenerationModel, logger)
	})
	registry.RegisterEmbedder(cfg.EmbeddingModel, func() (model.Embedder, error) {
		return openai.New(cfg.OpenAIAPIKey, cfg.EmbeddingModel), nil
	})
	return registry
}

func logLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func loadPrompts(cfg *config.Config) (*prompt.Registry, error) {
	if cfg.PromptDir != "" {
		prompts, err := prompt.NewFromDir(cfg.PromptDir)
		if err != nil {
			return nil, fmt.Errorf("loading prompts from %s: %w", cfg.PromptDir, err)
		}
		return prompts, nil
	}
	prompts, err := prompt.NewEmbedded()
	if err != nil {
		return nil, fmt.Errorf("loading embedded prompts: %w", err)
	}
	return prompts, nil
}
