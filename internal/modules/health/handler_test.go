package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Iyabivuz-e/SomaAI/internal/database"
	"github.com/Iyabivuz-e/SomaAI/internal/pkg/cron"
)

func init() { gin.SetMode(gin.TestMode) }

type fakeQueue struct{}

func (fakeQueue) Len(context.Context) (int64, int64, error) { return 3, 1, nil }

func router(probes map[string]Probe, sched *cron.Scheduler) *gin.Engine {
	r := gin.New()
	NewHandler(probes, fakeQueue{}, sched).RegisterRoutes(r.Group("/api/v1"), func(c *gin.Context) { c.Next() })
	return r
}

func get(r http.Handler, method, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(method, path, nil))
	return w
}

func TestHealthOK(t *testing.T) {
	db, err := database.OpenMemory()
	require.NoError(t, err)
	r := router(map[string]Probe{
		"database": DatabaseProbe(db),
		"redis":    func(context.Context) error { return nil },
	}, cron.New(nil))

	w := get(r, http.MethodGet, "/api/v1/health")
	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Status     string                     `json:"status"`
		Components map[string]componentStatus `json:"components"`
		Queue      map[string]int64           `json:"queue"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "ok", body.Status)
	assert.True(t, body.Components["database"].OK)
	assert.Equal(t, int64(3), body.Queue["ready"])
}

func TestHealthDegraded(t *testing.T) {
	r := router(map[string]Probe{
		"redis":        func(context.Context) error { return nil },
		"vector_index": func(context.Context) error { return errors.New("connection refused") },
	}, cron.New(nil))

	w := get(r, http.MethodGet, "/api/v1/health")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "connection refused")
}

func TestCronRoutes(t *testing.T) {
	sched := cron.New(nil)
	runs := 0
	sched.Register(cron.Job{Name: "reclaim_jobs", Interval: time.Hour, Fn: func(context.Context) error {
		runs++
		return nil
	}})
	r := router(nil, sched)

	w := get(r, http.MethodGet, "/api/v1/health/cron")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "reclaim_jobs")

	assert.Equal(t, http.StatusOK, get(r, http.MethodPost, "/api/v1/health/cron/run/reclaim_jobs").Code)
	assert.Equal(t, 1, runs)
	assert.Equal(t, http.StatusNotFound, get(r, http.MethodPost, "/api/v1/health/cron/run/nope").Code)

	sched.Register(cron.Job{Name: "broken", Interval: time.Hour, Fn: func(context.Context) error {
		return errors.New("redis down")
	}})
	w = get(r, http.MethodPost, "/api/v1/health/cron/run/broken")
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Contains(t, w.Body.String(), "redis down")
}
