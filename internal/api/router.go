package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/vectorleaf/ragserve/internal/api/handlers"
	"github.com/vectorleaf/ragserve/internal/api/middleware"
	"github.com/vectorleaf/ragserve/internal/cache"
	"github.com/vectorleaf/ragserve/internal/chat"
	"github.com/vectorleaf/ragserve/internal/config"
	"github.com/vectorleaf/ragserve/internal/embedding"
	"github.com/vectorleaf/ragserve/internal/ingest"
	"github.com/vectorleaf/ragserve/internal/llm"
	"github.com/vectorleaf/ragserve/internal/queue"
	"github.com/vectorleaf/ragserve/internal/registry"
	"github.com/vectorleaf/ragserve/internal/session"
	"github.com/vectorleaf/ragserve/internal/vectorstore"
	"github.com/vectorleaf/ragserve/pkg/chunker"
)

type Router struct {
	mux   *chi.Mux
	db    *pgxpool.Pool
	redis *redis.Client
	cfg   *config.Config
	llms  *llm.Registry
}

func NewRouter(db *pgxpool.Pool, rdb *redis.Client, cfg *config.Config) *Router {
	return &Router{
		mux:   chi.NewRouter(),
		db:    db,
		redis: rdb,
		cfg:   cfg,
		llms:  llm.NewRegistry(cfg.LLM),
	}
}

func (rt *Router) Setup() (http.Handler, error) {
	r := rt.mux

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS([]string{"*"}))

	rl := middleware.NewRateLimiter(100, 200)
	r.Use(rl.Limit)

	health := handlers.NewHealthHandler(rt.db, rt.redis)
	r.Get("/healthz", health.Healthz)
	r.Get("/readyz", health.Readyz)

	embedProvider, err := rt.llms.Provider(rt.cfg.LLM.EmbedProvider)
	if err != nil {
		return nil, fmt.Errorf("embed provider: %w", err)
	}
	chatProvider, err := rt.llms.Provider(rt.cfg.LLM.ChatProvider)
	if err != nil {
		return nil, fmt.Errorf("chat provider: %w", err)
	}

	var vectors vectorstore.Store
	var sessions session.Store
	if rt.cfg.Vector.Backend == "memory" {
		vectors = vectorstore.NewMemoryStore()
		sessions = session.NewMemoryStore()
	} else {
		vectors = vectorstore.NewPgVectorStore(rt.db)
		sessions = session.NewPgStore(rt.db)
	}

	embedSvc := embedding.NewService(embedProvider, rt.cfg.LLM.EmbedModel, rt.cfg.LLM.EmbedDimension)
	if rt.redis != nil {
		embedSvc = embedSvc.WithCache(cache.NewEmbeddingCache(rt.redis, 24*time.Hour))
	}

	reg := registry.NewService(registry.NewPgStore(rt.db), vectors)
	queueClient := queue.NewClient(rt.cfg.Redis)

	pipeline := ingest.NewPipeline(ingest.FileExtractor{}, embedSvc, vectors, reg, chunker.Options{
		Size:    rt.cfg.Ingest.ChunkSize,
		Overlap: rt.cfg.Ingest.ChunkOverlap,
	})

	orchestrator := chat.NewOrchestrator(embedSvc, vectors, sessions, chatProvider, chat.Options{
		Model:           rt.cfg.LLM.ChatModel,
		MaxSearchK:      rt.cfg.Chat.MaxSearchK,
		HistoryMaxTurns: rt.cfg.Chat.HistoryMaxTurns,
		ContextMaxChars: rt.cfg.Chat.ContextMaxChars,
	})

	tenantH := handlers.NewTenantHandler(reg)
	docH := handlers.NewDocumentHandler(reg, pipeline, queueClient)
	searchH := handlers.NewSearchHandler(reg, embedSvc, vectors, rt.cfg.Chat.MaxSearchK)
	chatH := handlers.NewChatHandler(reg, orchestrator)

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/tenants", func(r chi.Router) {
			r.Post("/", tenantH.Create)
			r.Get("/", tenantH.List)

			r.Route("/{tenantID}", func(r chi.Router) {
				r.Route("/sources", func(r chi.Router) {
					r.Post("/", tenantH.CreateSource)
					r.Get("/", tenantH.ListSources)

					r.Route("/{sourceID}", func(r chi.Router) {
						r.Delete("/", tenantH.DeleteSource)
						r.Post("/documents", docH.Upload)
						r.Get("/documents", docH.List)
						r.Post("/ingest", docH.IngestDirectory)
					})
				})

				r.Post("/search", searchH.Search)
				r.Post("/chat", chatH.Chat)
				r.Get("/chat/{sessionID}/history", chatH.History)
			})
		})
	})

	return r, nil
}
