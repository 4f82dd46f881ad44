package docs

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Iyabivuz-e/SomaAI/internal/models"
	"github.com/Iyabivuz-e/SomaAI/internal/pkg/pagination"
	"github.com/Iyabivuz-e/SomaAI/internal/pkg/response"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes mounts the catalog. cached wraps the read routes, guard
// protects deletion.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, cached, guard gin.HandlerFunc) {
	g := rg.Group("/docs")
	g.GET("", cached, h.list)
	g.GET("/:id", cached, h.get)
	g.GET("/:id/view", cached, h.view)
	g.DELETE("/:id", guard, h.delete)
}

func (h *Handler) list(c *gin.Context) {
	f := Filter{
		Grade:   c.Query("grade"),
		Subject: c.Query("subject"),
		Status:  c.Query("status"),
	}
	docs, pag, err := h.svc.List(c.Request.Context(), f, pagination.FromContext(c))
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.Paged(c, docs, pag)
}

type documentResponse struct {
	*models.DocumentModel
	IndexedChunks *int `json:"indexed_chunks,omitempty"`
}

func (h *Handler) get(c *gin.Context) {
	ctx := c.Request.Context()
	doc, err := h.svc.Get(ctx, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	out := documentResponse{DocumentModel: doc}
	if doc.Status == models.DocumentReady {
		if n, err := h.svc.IndexedChunks(ctx, doc.ID); err == nil {
			out.IndexedChunks = &n
		} else {
			h.svc.logger.Warn("count indexed chunks failed", zap.String("document_id", doc.ID), zap.Error(err))
		}
	}
	response.OK(c, out)
}

func (h *Handler) view(c *gin.Context) {
	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil {
		response.BadRequest(c, "page must be a number")
		return
	}
	v, err := h.svc.View(c.Request.Context(), c.Param("id"), page)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, v)
}

func (h *Handler) delete(c *gin.Context) {
	if err := h.svc.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
