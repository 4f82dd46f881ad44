package chat

import (
	"github.com/gin-gonic/gin"

	"github.com/Iyabivuz-e/SomaAI/internal/domain"
	"github.com/Iyabivuz-e/SomaAI/internal/middleware"
	"github.com/Iyabivuz-e/SomaAI/internal/models"
	"github.com/Iyabivuz-e/SomaAI/internal/pkg/response"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes mounts the chat routes. throttle guards /ask only.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, throttle gin.HandlerFunc) {
	g := rg.Group("/chat")
	g.POST("/ask", throttle, h.ask)
	g.GET("/messages/:id", h.message)
	g.GET("/messages/:id/citations", h.citations)
}

type askResponse struct {
	domain.Answer
	Cached  bool `json:"cached"`
	Refused bool `json:"refused,omitempty"`
}

func (h *Handler) ask(c *gin.Context) {
	var in AskInput
	if err := c.ShouldBindJSON(&in); err != nil {
		response.BadRequest(c, "invalid request body")
		return
	}
	res, err := h.svc.Ask(c.Request.Context(), middleware.ActorID(c), in)
	if err != nil {
		response.Error(c, err)
		return
	}
	if res.Answer.Citations == nil {
		res.Answer.Citations = []domain.Citation{}
	}
	response.Created(c, askResponse{Answer: res.Answer, Cached: res.Cached, Refused: res.Refused})
}

func (h *Handler) message(c *gin.Context) {
	msg, err := h.svc.Message(c.Request.Context(), middleware.ActorID(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	if msg.Citations == nil {
		msg.Citations = []models.MessageCitationModel{}
	}
	response.OK(c, msg)
}

func (h *Handler) citations(c *gin.Context) {
	msg, err := h.svc.Message(c.Request.Context(), middleware.ActorID(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	if msg.Citations == nil {
		msg.Citations = []models.MessageCitationModel{}
	}
	response.OK(c, msg.Citations)
}
