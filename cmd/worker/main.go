package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/hibiken/asynq"

	"github.com/vectorleaf/ragserve/internal/config"
	"github.com/vectorleaf/ragserve/internal/database"
	"github.com/vectorleaf/ragserve/internal/embedding"
	"github.com/vectorleaf/ragserve/internal/ingest"
	"github.com/vectorleaf/ragserve/internal/llm"
	"github.com/vectorleaf/ragserve/internal/queue"
	"github.com/vectorleaf/ragserve/internal/queue/workers"
	"github.com/vectorleaf/ragserve/internal/registry"
	"github.com/vectorleaf/ragserve/internal/vectorstore"
	"github.com/vectorleaf/ragserve/pkg/chunker"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()

	db, err := database.NewPool(ctx, cfg.Database)
	if err != nil {
		slog.Error("database unavailable", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	llms := llm.NewRegistry(cfg.LLM)
	embedProvider, err := llms.Provider(cfg.LLM.EmbedProvider)
	if err != nil {
		slog.Error("embed provider not configured", "error", err)
		os.Exit(1)
	}

	vectors := vectorstore.NewPgVectorStore(db)
	reg := registry.NewService(registry.NewPgStore(db), vectors)
	embedSvc := embedding.NewService(embedProvider, cfg.LLM.EmbedModel, cfg.LLM.EmbedDimension)
	pipeline := ingest.NewPipeline(ingest.FileExtractor{}, embedSvc, vectors, reg, chunker.Options{
		Size:    cfg.Ingest.ChunkSize,
		Overlap: cfg.Ingest.ChunkOverlap,
	})

	queueClient := queue.NewClient(cfg.Redis)
	defer queueClient.Close()

	srv := asynq.NewServer(
		asynq.RedisClientOpt{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		},
		asynq.Config{
			Concurrency: 10,
		},
	)

	ingestWorker := workers.NewIngestWorker(pipeline, queueClient)

	mux := asynq.NewServeMux()
	mux.HandleFunc(queue.TypeIngestDirectory, ingestWorker.ProcessDirectoryTask)
	mux.HandleFunc(queue.TypeIngestFile, ingestWorker.ProcessFileTask)

	slog.Info("starting ingest worker", "concurrency", 10)
	if err := srv.Run(mux); err != nil {
		slog.Error("worker error", "error", err)
		os.Exit(1)
	}
}
