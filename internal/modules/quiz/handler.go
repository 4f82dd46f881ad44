package quiz

import (
	"github.com/gin-gonic/gin"

	"github.com/Iyabivuz-e/SomaAI/internal/middleware"
	"github.com/Iyabivuz-e/SomaAI/internal/pkg/response"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes mounts the quiz routes. guard runs before generation only.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, guard gin.HandlerFunc) {
	g := rg.Group("/quiz")
	g.POST("/generate", guard, h.generate)
	g.GET("/:id", h.get)
}

type generateResponse struct {
	JobID  string `json:"job_id"`
	QuizID string `json:"quiz_id"`
	State  string `json:"state"`
}

func (h *Handler) generate(c *gin.Context) {
	var in GenerateInput
	if err := c.ShouldBindJSON(&in); err != nil {
		response.BadRequest(c, "invalid request body")
		return
	}
	job, quizID, err := h.svc.Generate(c.Request.Context(), middleware.ActorID(c), in)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Accepted(c, generateResponse{JobID: job.ID, QuizID: quizID, State: job.State})
}

func (h *Handler) get(c *gin.Context) {
	q, err := h.svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, q)
}
