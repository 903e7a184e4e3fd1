// Package handlers – order lifecycle endpoints.
//
// Read and cancel operations over persisted orders. Corrections travel
// through the ingest endpoint (a reply-tagged message event), not through
// this file, so the order surface stays read-mostly.
package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-order-backend/internal/domain"
	"github.com/tbourn/go-order-backend/internal/services"
)

const (
	defaultPerPage = 20
	maxPerPage     = 100
)

// PageResponse is the pagination envelope for list endpoints.
type PageResponse struct {
	Page    int            `json:"page"`
	PerPage int            `json:"per_page"`
	Total   int64          `json:"total"`
	Items   []domain.Order `json:"items"`
}

// ListOrders returns one page of orders, newest first. Optional query
// parameters: chat_id (filter), page, per_page.
//
// Route: GET /api/v1/orders
func (h *Handler) ListOrders(c *gin.Context) {
	chatID, err := queryInt64(c, "chat_id", 0)
	if err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "chat_id must be an integer")
		return
	}
	page, err := queryInt(c, "page", 1)
	if err != nil || page < 1 {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "page must be a positive integer")
		return
	}
	perPage, err := queryInt(c, "per_page", defaultPerPage)
	if err != nil || perPage < 1 {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "per_page must be a positive integer")
		return
	}
	if perPage > maxPerPage {
		perPage = maxPerPage
	}

	orders, total, err := h.Orders.List(c.Request.Context(), chatID, page, perPage)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, "failed to list orders")
		return
	}
	if orders == nil {
		orders = []domain.Order{}
	}

	ok(c, http.StatusOK, PageResponse{
		Page:    page,
		PerPage: perPage,
		Total:   total,
		Items:   orders,
	})
}

// GetOrder returns one order by id.
//
// Route: GET /api/v1/orders/:id
func (h *Handler) GetOrder(c *gin.Context) {
	o, err := h.Orders.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, services.ErrOrderNotFound) {
			fail(c, http.StatusNotFound, ErrCodeNotFound, "order not found")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "failed to fetch order")
		return
	}
	ok(c, http.StatusOK, o)
}

// CancelOrder marks an active order cancelled.
//
// Route: POST /api/v1/orders/:id/cancel
func (h *Handler) CancelOrder(c *gin.Context) {
	err := h.Orders.Cancel(c.Request.Context(), c.Param("id"))
	switch {
	case err == nil:
		noContent(c)
	case errors.Is(err, services.ErrOrderNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, "order not found")
	case errors.Is(err, services.ErrOrderNotActive):
		fail(c, http.StatusConflict, ErrCodeConflict, "order is not active")
	default:
		fail(c, http.StatusInternalServerError, ErrCodeCancelFailed, "failed to cancel order")
	}
}

func queryInt(c *gin.Context, key string, def int) (int, error) {
	v := c.Query(key)
	if v == "" {
		return def, nil
	}
	return strconv.Atoi(v)
}

func queryInt64(c *gin.Context, key string, def int64) (int64, error) {
	v := c.Query(key)
	if v == "" {
		return def, nil
	}
	return strconv.ParseInt(v, 10, 64)
}
