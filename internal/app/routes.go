package app

import (
	"context"
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Iyabivuz-e/SomaAI/internal/middleware"
	"github.com/Iyabivuz-e/SomaAI/internal/modules/chat"
	"github.com/Iyabivuz-e/SomaAI/internal/modules/docs"
	"github.com/Iyabivuz-e/SomaAI/internal/modules/health"
	"github.com/Iyabivuz-e/SomaAI/internal/modules/ingest"
	"github.com/Iyabivuz-e/SomaAI/internal/modules/jobs"
	"github.com/Iyabivuz-e/SomaAI/internal/modules/quiz"
	"github.com/Iyabivuz-e/SomaAI/internal/modules/teacher"
	"github.com/Iyabivuz-e/SomaAI/internal/pkg/jwt"
	"github.com/Iyabivuz-e/SomaAI/internal/pkg/response"
)

const apiPrefix = "/api/v1"

func (a *App) buildRouter(signer *jwt.Signer) *gin.Engine {
	if !a.cfg.IsDev() {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.HandleMethodNotAllowed = true
	r.Use(middleware.Recovery(a.logger))
	r.Use(middleware.Logger(a.logger))
	r.Use(cors.New(a.corsConfig()))

	r.NoRoute(func(c *gin.Context) { response.NotFound(c) })
	r.NoMethod(func(c *gin.Context) { response.MethodNotAllowed(c) })

	appInfo := gin.H{
		"name":    "somaai",
		"version": "1.0.0",
		"env":     a.cfg.Env,
	}

	rdb := a.rc.Raw()
	admin := middleware.APIKey(a.cfg.Auth.APIKeys)
	if len(a.cfg.Auth.APIKeys) == 0 {
		a.logger.Warn("auth.api_keys is empty, ingestion and admin routes are open")
	}

	api := r.Group(apiPrefix)
	api.Use(middleware.Actor(signer))
	api.GET("", func(c *gin.Context) { c.PureJSON(http.StatusOK, appInfo) })
	api.GET("/ping", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"data": "pong"}) })

	chat.NewHandler(a.chat).RegisterRoutes(api, middleware.RateLimit(rdb, a.cfg.HTTP.RateLimit, a.logger))
	ingest.NewHandler(a.ingest, a.cfg.MaxFileBytes()).RegisterRoutes(api, admin)
	jobs.NewHandler(a.jobs).RegisterRoutes(api)
	quiz.NewHandler(a.quiz).RegisterRoutes(api, middleware.Idempotence(rdb))
	docs.NewHandler(a.docs).RegisterRoutes(api,
		middleware.HTTPCache(rdb, middleware.HTTPCacheOptions{
			TTL:     a.cfg.HTTP.CacheTTL,
			Disable: a.cfg.IsDev(),
		}),
		admin,
	)
	teacher.NewHandler(a.teachers).RegisterRoutes(api)
	health.NewHandler(map[string]health.Probe{
		"database":     health.DatabaseProbe(a.db),
		"redis":        a.rc.Ping,
		"vector_index": a.index.Healthy,
		"task_queue": func(ctx context.Context) error {
			_, _, err := a.queue.Len(ctx)
			return err
		},
	}, a.queue, a.sched).RegisterRoutes(api, admin)

	return r
}

func (a *App) corsConfig() cors.Config {
	cfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "X-Actor-ID", "X-API-Key", "Idempotency-Key"},
		ExposeHeaders:    []string{"Content-Length", "Retry-After", "X-Soma-Cache"},
		AllowCredentials: true,
	}
	allow := originAllowed(a.cfg.AllowedOrigins)
	if allow == nil {
		a.logger.Debug("no allowed_origins configured, accepting any origin")
		cfg.AllowOriginFunc = func(string) bool { return true }
		return cfg
	}
	a.logger.Info("cors restricted", zap.Strings("origins", a.cfg.AllowedOrigins))
	cfg.AllowOriginFunc = allow
	return cfg
}
