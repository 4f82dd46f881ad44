package jobs

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Iyabivuz-e/SomaAI/internal/models"
	"github.com/Iyabivuz-e/SomaAI/internal/pkg/pagination"
	"github.com/Iyabivuz-e/SomaAI/internal/pkg/response"
)

type HTTPHandler struct {
	svc *Service
}

func NewHandler(svc *Service) *HTTPHandler {
	return &HTTPHandler{svc: svc}
}

func (h *HTTPHandler) RegisterRoutes(rg *gin.RouterGroup) {
	g := rg.Group("/jobs")
	g.GET("", h.list)
	g.GET("/:id", h.get)
}

type jobResponse struct {
	JobID       string     `json:"job_id"`
	Kind        string     `json:"kind"`
	State       string     `json:"state"`
	ProgressPct int        `json:"progress_pct"`
	Attempts    int        `json:"attempts"`
	MaxAttempts int        `json:"max_attempts"`
	ResultRef   string     `json:"result_ref,omitempty"`
	Error       string     `json:"error,omitempty"`
	NextRunAt   *time.Time `json:"next_run_at,omitempty"`
	Created     time.Time  `json:"created"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

func toResponse(j *models.JobModel) jobResponse {
	out := jobResponse{
		JobID:       j.ID,
		Kind:        j.Kind,
		State:       j.State,
		ProgressPct: j.ProgressPct,
		Attempts:    j.Attempts,
		MaxAttempts: j.MaxAttempts,
		ResultRef:   j.ResultRef,
		Error:       j.Error,
		Created:     j.CreatedAt,
		StartedAt:   j.StartedAt,
		CompletedAt: j.CompletedAt,
	}
	if j.State == models.JobPending && !j.NextRunAt.IsZero() {
		next := j.NextRunAt
		out.NextRunAt = &next
	}
	return out
}

func (h *HTTPHandler) get(c *gin.Context) {
	job, err := h.svc.Status(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, toResponse(job))
}

func (h *HTTPHandler) list(c *gin.Context) {
	f := Filter{
		Kind:    c.Query("kind"),
		State:   c.Query("state"),
		ActorID: c.Query("actor_id"),
	}
	jobs, pag, err := h.svc.List(c.Request.Context(), f, pagination.FromContext(c))
	if err != nil {
		response.InternalError(c, err)
		return
	}
	items := make([]jobResponse, len(jobs))
	for i := range jobs {
		items[i] = toResponse(&jobs[i])
	}
	response.Paged(c, items, pag)
}
