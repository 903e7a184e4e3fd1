// Package handlers – message ingest.
//
// This file implements the webhook ingest endpoint. A thin chat-platform
// adapter forwards every group message here as JSON; the handler maps the
// payload onto a domain event and hands it to the aggregation pipeline. The
// response reports the pipeline outcome ("aggregated", "scheduled",
// "finalized", "updated", "duplicate") so the adapter can log what happened
// to each delivery.
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-order-backend/internal/domain"
	"github.com/tbourn/go-order-backend/internal/services"
)

// Handler bundles the services behind the public API.
type Handler struct {
	Aggregator *services.AggregatorService
	Orders     *services.OrderService
}

// New constructs a Handler.
func New(agg *services.AggregatorService, orders *services.OrderService) *Handler {
	return &Handler{Aggregator: agg, Orders: orders}
}

// geoPayload is a native location attachment.
type geoPayload struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// messageRequest is the ingest payload. chat_id, user_id, and message_id
// identify the delivery; everything else is optional content.
type messageRequest struct {
	ChatID         int64       `json:"chat_id" binding:"required"`
	ChatTitle      string      `json:"chat_title"`
	UserID         int64       `json:"user_id" binding:"required"`
	UserName       string      `json:"user_name"`
	MessageID      int64       `json:"message_id" binding:"required"`
	Text           string      `json:"text"`
	Caption        string      `json:"caption"`
	Geo            *geoPayload `json:"geo"`
	ReplyToOrderID string      `json:"reply_to_order_id"`
}

// PostMessage ingests one chat message event.
//
// Route: POST /api/v1/messages
func (h *Handler) PostMessage(c *gin.Context) {
	var req messageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid message payload")
		return
	}

	ev := domain.MessageEvent{
		ChatID:         req.ChatID,
		ChatTitle:      req.ChatTitle,
		UserID:         req.UserID,
		UserName:       req.UserName,
		MessageID:      req.MessageID,
		Text:           req.Text,
		Caption:        req.Caption,
		ReplyToOrderID: req.ReplyToOrderID,
	}
	if req.Geo != nil {
		ev.Geo = &domain.Geo{Lat: req.Geo.Lat, Lon: req.Geo.Lon}
	}

	res, err := h.Aggregator.HandleMessage(c.Request.Context(), ev)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrEmptyEvent):
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "event carries no content")
		case errors.Is(err, services.ErrOrderNotFound):
			fail(c, http.StatusNotFound, ErrCodeNotFound, "order not found")
		case errors.Is(err, services.ErrOrderNotActive):
			fail(c, http.StatusConflict, ErrCodeConflict, "order is not active")
		default:
			fail(c, http.StatusInternalServerError, ErrCodeIngestFailed, "failed to process message")
		}
		return
	}

	ok(c, http.StatusOK, res)
}
