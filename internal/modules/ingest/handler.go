package ingest

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Iyabivuz-e/SomaAI/internal/middleware"
	"github.com/Iyabivuz-e/SomaAI/internal/pkg/response"
)

type Handler struct {
	svc      *Service
	maxBytes int64
}

func NewHandler(svc *Service, maxBytes int64) *Handler {
	return &Handler{svc: svc, maxBytes: maxBytes}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, guard gin.HandlerFunc) {
	rg.POST("/ingest", guard, h.submit)
}

type submitResponse struct {
	JobID     string `json:"job_id"`
	State     string `json:"state"`
	Duplicate bool   `json:"duplicate"`
}

func (h *Handler) submit(c *gin.Context) {
	if h.maxBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxBytes+1<<20)
	}
	fh, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			response.TooLarge(c, "file exceeds the upload limit")
			return
		}
		response.BadRequest(c, "file is required")
		return
	}
	if h.maxBytes > 0 && fh.Size > h.maxBytes {
		response.TooLarge(c, "file exceeds the upload limit")
		return
	}
	f, err := fh.Open()
	if err != nil {
		response.InternalError(c, err)
		return
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		response.InternalError(c, err)
		return
	}

	job, created, err := h.svc.Submit(c.Request.Context(), Upload{
		Filename:    fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Data:        data,
		Title:       c.PostForm("title"),
		Grade:       c.PostForm("grade"),
		Subject:     c.PostForm("subject"),
		ActorID:     middleware.ActorID(c),
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Accepted(c, submitResponse{JobID: job.ID, State: job.State, Duplicate: !created})
}
