// Package health reports whether the service and its backing stores are usable.
package health

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/Iyabivuz-e/SomaAI/internal/pkg/cron"
	"github.com/Iyabivuz-e/SomaAI/internal/pkg/response"
)

const probeTimeout = 2 * time.Second

// Probe reports one dependency's health.
type Probe func(ctx context.Context) error

// DatabaseProbe pings the database behind db.
func DatabaseProbe(db *gorm.DB) Probe {
	return func(ctx context.Context) error {
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		return sqlDB.PingContext(ctx)
	}
}

// QueueStats reports the job queue depth.
type QueueStats interface {
	Len(ctx context.Context) (ready, delayed int64, err error)
}

type Handler struct {
	probes  map[string]Probe
	queue   QueueStats
	sched   *cron.Scheduler
	started time.Time
}

func NewHandler(probes map[string]Probe, queue QueueStats, sched *cron.Scheduler) *Handler {
	return &Handler{probes: probes, queue: queue, sched: sched, started: time.Now()}
}

// RegisterRoutes mounts /health publicly and the cron controls behind guard.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, guard gin.HandlerFunc) {
	rg.GET("/health", h.health)
	admin := rg.Group("/health/cron", guard)
	admin.GET("", h.cronList)
	admin.POST("/run/:name", h.cronRun)
}

type componentStatus struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

func (h *Handler) health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), probeTimeout)
	defer cancel()

	var (
		mu      sync.Mutex
		wg      sync.WaitGroup
		results = make(map[string]componentStatus, len(h.probes))
	)
	for name, probe := range h.probes {
		wg.Add(1)
		go func(name string, probe Probe) {
			defer wg.Done()
			st := componentStatus{OK: true}
			if err := probe(ctx); err != nil {
				st = componentStatus{Error: err.Error()}
			}
			mu.Lock()
			results[name] = st
			mu.Unlock()
		}(name, probe)
	}
	wg.Wait()

	status, code := "ok", http.StatusOK
	for _, st := range results {
		if !st.OK {
			status, code = "degraded", http.StatusServiceUnavailable
			break
		}
	}

	body := gin.H{
		"status":     status,
		"components": results,
		"uptime":     time.Since(h.started).Round(time.Second).String(),
	}
	if h.queue != nil {
		if ready, delayed, err := h.queue.Len(ctx); err == nil {
			body["queue"] = gin.H{"ready": ready, "delayed": delayed}
		}
	}
	c.JSON(code, body)
}

func (h *Handler) cronList(c *gin.Context) {
	response.OK(c, h.sched.List())
}

func (h *Handler) cronRun(c *gin.Context) {
	err := h.sched.RunNow(c.Request.Context(), c.Param("name"))
	switch {
	case errors.Is(err, cron.ErrUnknownJob):
		response.NotFoundMsg(c, err.Error())
	case errors.Is(err, cron.ErrBusy):
		response.Conflict(c, err.Error())
	case err != nil:
		c.AbortWithStatusJSON(http.StatusBadGateway, gin.H{"ok": 0, "code": http.StatusBadGateway, "message": err.Error()})
	default:
		response.OK(c, gin.H{"message": "job finished"})
	}
}
