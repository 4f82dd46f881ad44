package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/Iyabivuz-e/SomaAI/internal/config"
	"github.com/Iyabivuz-e/SomaAI/internal/database"
	"github.com/Iyabivuz-e/SomaAI/internal/middleware"
	"github.com/Iyabivuz-e/SomaAI/internal/modules/chat"
	"github.com/Iyabivuz-e/SomaAI/internal/modules/docs"
	"github.com/Iyabivuz-e/SomaAI/internal/modules/fingerprint"
	"github.com/Iyabivuz-e/SomaAI/internal/modules/ingest"
	"github.com/Iyabivuz-e/SomaAI/internal/modules/jobs"
	"github.com/Iyabivuz-e/SomaAI/internal/modules/quiz"
	"github.com/Iyabivuz-e/SomaAI/internal/modules/rag/cache"
	"github.com/Iyabivuz-e/SomaAI/internal/modules/rag/generator"
	"github.com/Iyabivuz-e/SomaAI/internal/modules/rag/index"
	"github.com/Iyabivuz-e/SomaAI/internal/modules/rag/pipeline"
	"github.com/Iyabivuz-e/SomaAI/internal/modules/rag/reranker"
	"github.com/Iyabivuz-e/SomaAI/internal/modules/rag/retriever"
	"github.com/Iyabivuz-e/SomaAI/internal/modules/rag/safety"
	"github.com/Iyabivuz-e/SomaAI/internal/modules/teacher"
	"github.com/Iyabivuz-e/SomaAI/internal/pkg/blobstore"
	pkgcron "github.com/Iyabivuz-e/SomaAI/internal/pkg/cron"
	"github.com/Iyabivuz-e/SomaAI/internal/pkg/embedding"
	"github.com/Iyabivuz-e/SomaAI/internal/pkg/jwt"
	"github.com/Iyabivuz-e/SomaAI/internal/pkg/llm"
	"github.com/Iyabivuz-e/SomaAI/internal/pkg/qdrant"
	pkgredis "github.com/Iyabivuz-e/SomaAI/internal/pkg/redis"
	"github.com/Iyabivuz-e/SomaAI/internal/pkg/taskqueue"
)

// App holds all application dependencies.
type App struct {
	cfg    *config.AppConfig
	logger *zap.Logger
	db     *gorm.DB
	rc     *pkgredis.Client
	router *gin.Engine
	sched  *pkgcron.Scheduler
	queue  *taskqueue.Queue
	index  *index.Index

	cache    *cache.Layer
	jobs     *jobs.Service
	ingest   *ingest.Service
	chat     *chat.Service
	quiz     *quiz.Service
	docs     *docs.Service
	teachers *teacher.Service

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New wires config → DB → Redis → external clients → services → routes.
// Nothing runs in the background until Start.
func New(logger *zap.Logger, cfg *config.AppConfig) (*App, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}
	if err := applyRuntimeSettings(cfg); err != nil {
		return nil, err
	}

	db, err := database.Connect(cfg, cfg.IsDev())
	if err != nil {
		return nil, fmt.Errorf("database: %w", err)
	}

	rc, err := pkgredis.Connect(cfg.Redis.URLValue())
	if err != nil {
		return nil, fmt.Errorf("redis: %w", err)
	}

	blobs, err := blobstore.New(context.Background(), cfg.Storage, cfg.UploadsDir())
	if err != nil {
		return nil, fmt.Errorf("blob store: %w", err)
	}

	embedder, err := embedding.New(cfg.Embedding, embedding.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("embedding: %w", err)
	}

	model, err := llm.New(cfg.LLM)
	if err != nil {
		return nil, fmt.Errorf("llm: %w", err)
	}

	scorer, err := reranker.NewFromConfig(cfg.Reranker, reranker.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("reranker: %w", err)
	}

	a := &App{
		cfg:    cfg,
		logger: logger,
		db:     db,
		rc:     rc,
		sched:  pkgcron.New(logger),
		queue:  taskqueue.New(rc),
		index: index.New(qdrant.New(qdrant.Config{
			URL:        cfg.Qdrant.URL,
			APIKey:     cfg.Qdrant.APIKey,
			Collection: cfg.Qdrant.Collection,
			Timeout:    cfg.Qdrant.Timeout,
		})),
	}

	a.cache = cache.New(rc,
		cache.WithLogger(logger),
		cache.WithTTLs(cfg.RAG.EmbeddingTTL, cfg.RAG.ResponseTTL),
		cache.WithPublishThreshold(cfg.RAG.PublishThreshold),
	)

	fps := fingerprint.NewStore(db)
	a.jobs = jobs.NewService(db, a.queue, fps, cfg.Jobs, jobs.WithLogger(logger))

	catalog := &catalogInvalidator{layer: a.cache, rc: rc}
	ingestPipeline := ingest.NewPipeline(blobs, embedder, a.index, db, cfg.Ingest, ingest.WithLogger(logger))
	a.ingest = ingest.NewService(db, blobs, a.jobs, fps, ingestPipeline,
		ingest.WithServiceLogger(logger),
		ingest.WithCacheInvalidator(catalog),
	)

	a.teachers = teacher.NewService(db)
	rag := pipeline.New(
		a.cache,
		safety.New(safety.WithLogger(logger)),
		retriever.New(a.index, embedder,
			retriever.WithLogger(logger),
			retriever.WithTopK(cfg.RAG.TopK),
			retriever.WithEmbeddingCache(a.cache),
		),
		scorer,
		generator.New(model,
			generator.WithLogger(logger),
			generator.WithSufficiencyThreshold(cfg.RAG.SufficiencyThreshold),
		),
		chat.NewStore(db),
		pipeline.WithLogger(logger),
		pipeline.WithStageTimeout(cfg.RAG.StageTimeout),
	)
	a.chat = chat.NewService(rag, chat.NewStore(db), chat.WithLogger(logger), chat.WithProfiles(a.teachers))
	a.quiz = quiz.NewService(db, a.jobs, model, quiz.WithLogger(logger))
	a.docs = docs.NewService(db, a.index, blobs, docs.WithLogger(logger), docs.WithCacheInvalidator(catalog))

	registerCronJobs(a.sched, a.jobs, a.queue, cfg, logger)
	a.router = a.buildRouter(jwt.NewSigner(cfg.Auth.JWTSecret))
	return a, nil
}

// Addr returns the listen address.
func (a *App) Addr() string { return fmt.Sprintf(":%d", a.cfg.Port) }

// Router returns the HTTP handler.
func (a *App) Router() http.Handler { return a.router }

// Start prepares the vector collection and launches the cron loops and,
// when workers is set, the job worker pool.
func (a *App) Start(workers bool) error {
	ctx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel

	if err := a.index.Ensure(ctx, a.cfg.Embedding.Dimension); err != nil {
		a.logger.Warn("vector collection not ready, retrieval will fail until it is", zap.Error(err))
	}

	a.sched.Start(ctx)
	if workers {
		a.wg.Add(1)
		go func() {
			defer a.wg.Done()
			a.jobs.RunWorkers(ctx, "worker", a.cfg.Jobs.Workers)
		}()
	}
	return nil
}

// Shutdown stops background loops and waits for in-flight jobs to settle.
func (a *App) Shutdown() {
	if a.cancel != nil {
		a.cancel()
	}
	a.sched.Wait()
	a.wg.Wait()
	if err := a.rc.Close(); err != nil {
		a.logger.Warn("close redis", zap.Error(err))
	}
	if sqlDB, err := a.db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}

// catalogInvalidator drops cached answers together with the cached
// document catalog responses.
type catalogInvalidator struct {
	layer *cache.Layer
	rc    *pkgredis.Client
}

func (c *catalogInvalidator) InvalidateClass(ctx context.Context, class cache.Class) (int, error) {
	n, err := c.layer.InvalidateClass(ctx, class)
	if err != nil {
		return n, err
	}
	purged, err := middleware.PurgeHTTPCache(ctx, c.rc.Raw())
	return n + int(purged), err
}
