package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/psds-microservice/rma-service/internal/model"
	"github.com/psds-microservice/rma-service/internal/service"
)

const (
	defaultListLimit = 50
	maxListLimit     = 100
)

type RMAProcessor interface {
	Process(ctx context.Context, rmaNumber, userToken string) (*model.RMATicket, error)
	List(ctx context.Context, limit, offset int) ([]model.RMATicket, int64, error)
	GetByNumber(ctx context.Context, rmaNumber string) (*model.RMATicket, error)
	DeleteByNumber(ctx context.Context, rmaNumber string) (bool, error)
}

// Indexer: поисковый индекс; nil отключает индексацию.
type Indexer interface {
	IndexAsync(rmaNumber string, doc map[string]any)
}

type RMAHandler struct {
	proc          RMAProcessor
	index         Indexer
	exposeDetails bool
}

// NewRMAHandler: exposeDetails включает текст внутренних ошибок в ответах (development).
func NewRMAHandler(proc RMAProcessor, index Indexer, exposeDetails bool) *RMAHandler {
	return &RMAHandler{proc: proc, index: index, exposeDetails: exposeDetails}
}

type processRequest struct {
	RMANumber      string `json:"rmaNumber" binding:"required,digits"`
	UserCredential string `json:"userCredential"`
}

type listQuery struct {
	Limit  *int   `form:"limit" json:"limit" binding:"omitempty,min=1,max=100"`
	Offset *int   `form:"offset" json:"offset" binding:"omitempty,min=0"`
	RMA    string `form:"rma" json:"rma" binding:"omitempty,digits"`
}

type rmaURI struct {
	RMANumber string `uri:"rmaNumber" json:"rmaNumber" binding:"required,digits"`
}

type pagination struct {
	Limit   int   `json:"limit"`
	Offset  int   `json:"offset"`
	Count   int   `json:"count"`
	Total   int64 `json:"total"`
	HasMore bool  `json:"hasMore"`
}

// Process POST /api/v1/rma/process
func (h *RMAHandler) Process(c *gin.Context) {
	var req processRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, bindError(err), h.exposeDetails)
		return
	}
	t, err := h.proc.Process(c.Request.Context(), req.RMANumber, req.UserCredential)
	if err != nil {
		writeError(c, err, h.exposeDetails)
		return
	}
	if h.index != nil {
		h.index.IndexAsync(t.RMANumber, service.EventPayload(t))
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"ticket":  t,
		"message": "RMA ticket processed successfully",
	})
}

// List GET /api/v1/rma?limit=&offset= или GET /api/v1/rma?rma=<номер>
func (h *RMAHandler) List(c *gin.Context) {
	var q listQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		writeError(c, bindError(err), h.exposeDetails)
		return
	}
	if q.RMA != "" {
		h.respondTicket(c, q.RMA)
		return
	}

	limit, offset := defaultListLimit, 0
	if q.Limit != nil {
		limit = *q.Limit
	}
	if q.Offset != nil {
		offset = *q.Offset
	}
	tickets, total, err := h.proc.List(c.Request.Context(), limit, offset)
	if err != nil {
		writeError(c, err, h.exposeDetails)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"tickets": tickets,
		"pagination": pagination{
			Limit:   limit,
			Offset:  offset,
			Count:   len(tickets),
			Total:   total,
			HasMore: int64(offset+len(tickets)) < total,
		},
	})
}

// Get GET /api/v1/rma/:rmaNumber
func (h *RMAHandler) Get(c *gin.Context) {
	var uri rmaURI
	if err := c.ShouldBindUri(&uri); err != nil {
		writeError(c, bindError(err), h.exposeDetails)
		return
	}
	h.respondTicket(c, uri.RMANumber)
}

// Delete DELETE /api/v1/rma/:rmaNumber
func (h *RMAHandler) Delete(c *gin.Context) {
	var uri rmaURI
	if err := c.ShouldBindUri(&uri); err != nil {
		writeError(c, bindError(err), h.exposeDetails)
		return
	}
	deleted, err := h.proc.DeleteByNumber(c.Request.Context(), uri.RMANumber)
	if err != nil {
		writeError(c, err, h.exposeDetails)
		return
	}
	if !deleted {
		c.JSON(http.StatusNotFound, errorResponse{Error: "RMA ticket not found", Code: "NOT_FOUND"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "RMA ticket " + uri.RMANumber + " deleted successfully",
	})
}

func (h *RMAHandler) respondTicket(c *gin.Context, rmaNumber string) {
	t, err := h.proc.GetByNumber(c.Request.Context(), rmaNumber)
	if err != nil {
		writeError(c, err, h.exposeDetails)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ticket": t})
}
