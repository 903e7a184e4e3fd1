// Package services – OrderService
//
// This file implements OrderService, which owns the lifecycle of persisted
// orders: lookup, paginated listing, cancellation, and the reply-driven
// update flow. An update never mutates the original row; it cancels the old
// order and creates a replacement linked through ReplacesID, then announces
// the replacement through the outbound sender.
//
// Observability: public methods are OpenTelemetry-instrumented; spans carry
// order and chat identifiers.
package services

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/tbourn/go-order-backend/internal/classify"
	"github.com/tbourn/go-order-backend/internal/dataset"
	"github.com/tbourn/go-order-backend/internal/domain"
	"github.com/tbourn/go-order-backend/internal/extract"
	"github.com/tbourn/go-order-backend/internal/finalize"
	"github.com/tbourn/go-order-backend/internal/repo"
	"github.com/tbourn/go-order-backend/internal/transport"
)

// OrderService coordinates order persistence and the update flow.
type OrderService struct {
	DB        *gorm.DB
	Extractor *extract.Extractor
	Rules     *classify.Rules
	Engine    *finalize.Engine
	Dataset   *dataset.Writer
	Sender    *transport.Sender

	// TargetChatID is where replacement announcements go; 0 falls back to
	// the order's source chat.
	TargetChatID int64
}

// Get fetches one order by id.
func (s *OrderService) Get(ctx context.Context, id string) (*domain.Order, error) {
	tr := otel.Tracer("services/OrderService")
	ctx, span := tr.Start(ctx, "Get", trace.WithAttributes(attribute.String("order.id", id)))
	defer span.End()

	o, err := repo.GetOrder(ctx, s.DB, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}
	return o, nil
}

// List returns one page of orders (newest first) plus the total count.
// chatID 0 means all chats.
func (s *OrderService) List(ctx context.Context, chatID int64, page, perPage int) ([]domain.Order, int64, error) {
	tr := otel.Tracer("services/OrderService")
	ctx, span := tr.Start(ctx, "List",
		trace.WithAttributes(
			attribute.Int64("chat.id", chatID),
			attribute.Int("page", page),
			attribute.Int("per_page", perPage),
		),
	)
	defer span.End()

	if page < 1 || perPage < 1 {
		return nil, 0, ErrInvalidPage
	}

	total, err := repo.CountOrders(ctx, s.DB, chatID)
	if err != nil {
		return nil, 0, err
	}
	orders, err := repo.ListOrdersPage(ctx, s.DB, chatID, (page-1)*perPage, perPage)
	if err != nil {
		return nil, 0, err
	}
	return orders, total, nil
}

// Cancel marks an active order cancelled.
func (s *OrderService) Cancel(ctx context.Context, id string) error {
	tr := otel.Tracer("services/OrderService")
	ctx, span := tr.Start(ctx, "Cancel", trace.WithAttributes(attribute.String("order.id", id)))
	defer span.End()

	ok, err := repo.CancelOrder(ctx, s.DB, id)
	if err != nil {
		return err
	}
	if ok {
		return nil
	}
	// Distinguish "gone" from "already cancelled" for the caller.
	if _, err := repo.GetOrder(ctx, s.DB, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrOrderNotFound
		}
		return err
	}
	return ErrOrderNotActive
}

// UpdateFromReply applies a correction message to an existing order. The
// original order is cancelled and a replacement is created with the
// corrected fields:
//
//   - phones found in the correction replace the elected phones
//   - a native geo attachment replaces the location; plain text does only
//     when it carries address vocabulary
//   - an extractable amount replaces the amount
//   - product-shaped lines replace the product text; comment-intent lines
//     extend the comment text
//
// Fields the correction does not touch carry over unchanged.
func (s *OrderService) UpdateFromReply(ctx context.Context, orderID string, ev domain.MessageEvent) (*domain.Order, error) {
	tr := otel.Tracer("services/OrderService")
	ctx, span := tr.Start(ctx, "UpdateFromReply",
		trace.WithAttributes(
			attribute.String("order.id", orderID),
			attribute.Int64("chat.id", ev.ChatID),
		),
	)
	defer span.End()

	old, err := repo.GetOrder(ctx, s.DB, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}
	if old.Status != domain.OrderStatusActive {
		return nil, ErrOrderNotActive
	}

	text := ev.Content()
	if strings.TrimSpace(text) == "" && ev.Geo == nil {
		return nil, ErrEmptyEvent
	}

	next := *old
	next.ID = ""
	next.MessageID = ev.MessageID
	next.Status = domain.OrderStatusActive
	next.ReplacesID = &old.ID
	next.CreatedAt = old.CreatedAt
	next.UpdatedAt = old.UpdatedAt

	phones := append(s.Extractor.Phones(text), s.Extractor.SpokenPhones(text)...)
	if len(phones) > 0 {
		next.Phones = s.Engine.ElectClientPhones([]string{text}, dedupe(phones))
	}

	if ev.Geo != nil {
		next.Location = s.Extractor.Location(ev)
	} else if trimmed := strings.TrimSpace(text); trimmed != "" && s.Rules.Classify(trimmed).AddressKeywords {
		next.Location = &domain.Location{Kind: domain.LocationText, Raw: trimmed}
	}

	if v, ok := s.Extractor.Amount(text); ok {
		next.Amount = &v
	}

	if strings.TrimSpace(text) != "" {
		product, comment := s.Engine.Partition([]string{text}, next.Phones)
		if len(product) > 0 {
			next.ProductText = strings.Join(product, "\n")
		}
		if len(comment) > 0 {
			if next.CommentText != "" {
				next.CommentText += "\n"
			}
			next.CommentText += strings.Join(comment, "\n")
		}
	}

	var created *domain.Order
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if ok, err := repo.CancelOrder(ctx, tx, old.ID); err != nil {
			return err
		} else if !ok {
			return ErrOrderNotActive
		}
		c, err := repo.CreateOrder(ctx, tx, &next)
		if err != nil {
			return err
		}
		created = c
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.announce(ctx, created)
	s.capture(created, old.ID)
	return created, nil
}

// announce delivers the replacement message, preferring the target chat and
// falling back to the order's source chat. Delivery failures are logged,
// never propagated; the order is already durable.
func (s *OrderService) announce(ctx context.Context, o *domain.Order) {
	if s.Sender == nil || !s.Sender.Enabled() {
		return
	}
	text := renderOrder(s.Extractor, o)
	chatID := s.TargetChatID
	if chatID == 0 {
		chatID = o.ChatID
	}
	if err := s.Sender.Send(ctx, chatID, text); err != nil {
		log.Warn().Err(err).Int64("chat_id", chatID).Str("order_id", o.ID).Msg("replacement delivery failed")
		if chatID != o.ChatID {
			if err := s.Sender.Send(ctx, o.ChatID, text); err != nil {
				log.Error().Err(err).Int64("chat_id", o.ChatID).Str("order_id", o.ID).Msg("replacement fallback delivery failed")
			}
		}
	}
}

func (s *OrderService) capture(o *domain.Order, replacedID string) {
	if s.Dataset == nil {
		return
	}
	err := s.Dataset.Append(dataset.EventOrderUpdate, map[string]any{
		"order_id":    o.ID,
		"replaces_id": replacedID,
		"chat_id":     o.ChatID,
		"user_id":     o.UserID,
		"phones":      []string(o.Phones),
		"amount":      o.Amount,
	})
	if err != nil {
		log.Warn().Err(err).Msg("dataset append failed")
	}
}

func dedupe(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
