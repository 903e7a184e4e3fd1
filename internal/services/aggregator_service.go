// Package services – AggregatorService
//
// This file implements AggregatorService, the application-level component
// that owns the inbound message pipeline: replay deduplication, session
// accumulation (text, phones, location), classification, finalize-trigger
// evaluation, and the delayed drain that turns a settled session into a
// durable order plus an outbound announcement.
//
// Concurrency: all per-key work runs serialized behind the session store's
// key lock. The delayed drain runs on a timer outside that lock and is made
// safe by session versioning: a drain whose version no longer matches is a
// no-op, so a session that kept receiving messages (and was therefore
// rescheduled) is never emitted twice and never emitted early.
//
// Observability: HandleMessage is OpenTelemetry-instrumented and the
// pipeline exports Prometheus counters for message outcomes, classifier
// verdicts, and finalized orders.
package services

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
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
	"github.com/tbourn/go-order-backend/internal/session"
	"github.com/tbourn/go-order-backend/internal/transport"
)

// Pipeline outcomes reported to the transport layer.
const (
	StatusDuplicate  = "duplicate"  // replayed delivery, dropped
	StatusUpdated    = "updated"    // reply-driven order replacement
	StatusAggregated = "aggregated" // absorbed into a live session
	StatusScheduled  = "scheduled"  // finalize timer armed
	StatusFinalized  = "finalized"  // order emitted inline (zero delay)
	StatusSuperseded = "superseded" // drain lost the version race, no-op
)

var (
	// aggMessages counts pipeline outcomes per inbound event.
	aggMessages = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aggregator_messages_total",
			Help: "Total inbound message events by pipeline outcome.",
		},
		[]string{"status"},
	)

	// classifierVerdicts counts verdicts by source and role.
	classifierVerdicts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "classifier_verdicts_total",
			Help: "Total classification verdicts by source and role.",
		},
		[]string{"source", "role"},
	)

	// ordersFinalized counts emitted orders.
	ordersFinalized = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "orders_finalized_total",
			Help: "Total finalized orders emitted.",
		},
	)
)

func init() {
	prometheus.MustRegister(aggMessages, classifierVerdicts, ordersFinalized)
}

// Result is the outcome of one inbound event.
type Result struct {
	Status  string `json:"status"`
	OrderID string `json:"order_id,omitempty"`
}

// AggregatorService drives the message-to-order pipeline.
type AggregatorService struct {
	DB         *gorm.DB
	Store      *session.Store
	Extractor  *extract.Extractor
	Classifier *classify.Classifier
	Engine     *finalize.Engine
	Dataset    *dataset.Writer
	Sender     *transport.Sender
	Orders     *OrderService

	// TargetChatID is where finalized orders are announced; 0 falls back
	// to the source chat. AICheckChatID and ErrorChatID mirror model
	// verdicts and non-order messages for review; 0 disables either.
	TargetChatID  int64
	AICheckChatID int64
	ErrorChatID   int64

	// FinalizeDelay is the settle window between trigger and drain. Zero
	// drains inline.
	FinalizeDelay time.Duration

	mu     sync.Mutex
	timers map[session.Key]*time.Timer
}

// HandleMessage runs one inbound event through the pipeline.
func (s *AggregatorService) HandleMessage(ctx context.Context, ev domain.MessageEvent) (Result, error) {
	tr := otel.Tracer("services/AggregatorService")
	ctx, span := tr.Start(ctx, "HandleMessage",
		trace.WithAttributes(
			attribute.Int64("chat.id", ev.ChatID),
			attribute.Int64("user.id", ev.UserID),
			attribute.Int64("message.id", ev.MessageID),
		),
	)
	defer span.End()

	text := ev.Content()
	if strings.TrimSpace(text) == "" && ev.Geo == nil {
		return Result{}, ErrEmptyEvent
	}

	// The dedupe row is written up front to close the concurrent-replay
	// window; error returns below release it so the delivery can be retried.
	fresh, err := repo.MarkEventProcessed(ctx, s.DB, ev.ChatID, ev.MessageID)
	if err != nil {
		return Result{}, err
	}
	if !fresh {
		aggMessages.WithLabelValues(StatusDuplicate).Inc()
		return Result{Status: StatusDuplicate}, nil
	}

	if ev.ReplyToOrderID != "" {
		o, err := s.Orders.UpdateFromReply(ctx, ev.ReplyToOrderID, ev)
		if err != nil {
			s.unmark(ctx, ev)
			return Result{}, err
		}
		aggMessages.WithLabelValues(StatusUpdated).Inc()
		return Result{Status: StatusUpdated, OrderID: o.ID}, nil
	}

	key := session.Key{ChatID: ev.ChatID, UserID: ev.UserID}
	sess, release := s.Store.Acquire(key)
	released := false
	unlock := func() {
		if !released {
			released = true
			release()
		}
	}
	defer unlock()

	recent := append([]string(nil), sess.RawMessages...)
	sess.Append(text)

	phones := append(s.Extractor.Phones(text), s.Extractor.SpokenPhones(text)...)
	firstPhone := sess.AddPhones(phones)

	// Only a native geo attachment sets the session location; free text may
	// still be an address guess while a pin is on the way.
	var firstLocation bool
	if ev.Geo != nil {
		firstLocation = sess.SetLocation(s.Extractor.Location(ev))
	}

	verdict := s.Classifier.Classify(ctx, text, recent)
	classifierVerdicts.WithLabelValues(verdict.Source, string(verdict.Role)).Inc()
	s.mirrorVerdict(ctx, ev, text, verdict, len(phones) > 0 || ev.Geo != nil)

	sess.Touch(time.Now())

	trigger := s.Engine.Evaluate(verdict, text, firstPhone, firstLocation)
	meta := finalize.Meta{UserName: ev.UserName, GroupTitle: ev.ChatTitle, MessageID: ev.MessageID}

	if !sess.Ready() || !trigger.Fires() {
		aggMessages.WithLabelValues(StatusAggregated).Inc()
		return Result{Status: StatusAggregated}, nil
	}

	version := sess.Version
	unlock()

	if s.FinalizeDelay <= 0 {
		res, err := s.drain(ctx, key, version, meta)
		if err != nil {
			s.unmark(ctx, ev)
			return Result{}, err
		}
		if res.Status == StatusFinalized {
			aggMessages.WithLabelValues(StatusFinalized).Inc()
		}
		return res, nil
	}

	s.schedule(key, version, meta)
	aggMessages.WithLabelValues(StatusScheduled).Inc()
	return Result{Status: StatusScheduled}, nil
}

// schedule arms (or re-arms) the finalize timer for key. Only one timer per
// key is live; a newer trigger replaces the pending one so the settle window
// restarts from the latest triggering message.
func (s *AggregatorService) schedule(key session.Key, version uint64, meta finalize.Meta) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.timers == nil {
		s.timers = make(map[session.Key]*time.Timer)
	}
	if t, ok := s.timers[key]; ok {
		t.Stop()
	}
	s.timers[key] = time.AfterFunc(s.FinalizeDelay, func() {
		s.mu.Lock()
		delete(s.timers, key)
		s.mu.Unlock()

		if _, err := s.drain(context.Background(), key, version, meta); err != nil {
			log.Error().Err(err).
				Int64("chat_id", key.ChatID).
				Int64("user_id", key.UserID).
				Msg("delayed finalize failed")
		}
	})
}

// drain removes the session (when its version still matches) and emits the
// order. A version mismatch means the session was cleared or superseded by
// newer activity; the drain then does nothing.
func (s *AggregatorService) drain(ctx context.Context, key session.Key, version uint64, meta finalize.Meta) (Result, error) {
	sess, ok := s.Store.Drain(key, version)
	if !ok {
		return Result{Status: StatusSuperseded}, nil
	}

	snap := s.Engine.Drain(sess, meta)
	order, err := s.emit(ctx, snap)
	if err != nil {
		return Result{}, err
	}
	return Result{Status: StatusFinalized, OrderID: order.ID}, nil
}

// emit persists the snapshot as an order, announces it, and captures the
// dataset record. Persistence failure is the only fatal path; delivery and
// dataset capture degrade to logs.
func (s *AggregatorService) emit(ctx context.Context, snap finalize.Snapshot) (*domain.Order, error) {
	order := &domain.Order{
		ChatID:      snap.ChatID,
		UserID:      snap.UserID,
		UserName:    snap.UserName,
		GroupTitle:  snap.GroupTitle,
		MessageID:   snap.MessageID,
		Phones:      domain.PhoneList(snap.ClientPhones),
		Location:    snap.Location,
		ProductText: strings.Join(snap.ProductLines, "\n"),
		CommentText: strings.Join(snap.CommentLines, "\n"),
		Amount:      snap.Amount,
	}

	created, err := repo.CreateOrder(ctx, s.DB, order)
	if err != nil {
		return nil, err
	}
	ordersFinalized.Inc()

	s.announce(ctx, created, snap)
	s.captureOrder(created, snap)

	log.Info().
		Str("order_id", created.ID).
		Int64("chat_id", created.ChatID).
		Int64("user_id", created.UserID).
		Int("phones", len(created.Phones)).
		Msg("order finalized")
	return created, nil
}

func (s *AggregatorService) announce(ctx context.Context, o *domain.Order, snap finalize.Snapshot) {
	if s.Sender == nil || !s.Sender.Enabled() {
		return
	}
	text := renderSnapshot(s.Extractor, snap)
	chatID := s.TargetChatID
	if chatID == 0 {
		chatID = o.ChatID
	}
	if err := s.Sender.Send(ctx, chatID, text); err != nil {
		log.Warn().Err(err).Int64("chat_id", chatID).Str("order_id", o.ID).Msg("order delivery failed")
		if chatID != o.ChatID {
			if err := s.Sender.Send(ctx, o.ChatID, text); err != nil {
				log.Error().Err(err).Int64("chat_id", o.ChatID).Str("order_id", o.ID).Msg("order fallback delivery failed")
			}
		}
	}
}

// mirrorVerdict forwards classification outcomes for offline review: every
// model verdict goes to the audit capture, and messages judged unrelated go
// to the non-order capture. A message carrying a phone or a geo pin is an
// in-flight order fragment regardless of the verdict, so hasContact keeps it
// out of the non-order side. Both sides are best-effort.
func (s *AggregatorService) mirrorVerdict(ctx context.Context, ev domain.MessageEvent, text string, v classify.Verdict, hasContact bool) {
	if s.Dataset != nil {
		if v.Source == classify.SourceModel {
			s.append(dataset.EventAICheck, map[string]any{
				"chat_id":              ev.ChatID,
				"user_id":              ev.UserID,
				"message_id":           ev.MessageID,
				"text":                 text,
				"is_order_related":     v.OrderRelated,
				"role":                 string(v.Role),
				"has_address_keywords": v.AddressKeywords,
			})
		}
		if !v.OrderRelated && !hasContact {
			s.append(dataset.EventNonOrder, map[string]any{
				"chat_id":    ev.ChatID,
				"user_id":    ev.UserID,
				"message_id": ev.MessageID,
				"text":       text,
				"source":     v.Source,
			})
		}
	}

	if s.Sender == nil || !s.Sender.Enabled() {
		return
	}
	if v.Source == classify.SourceModel && s.AICheckChatID != 0 {
		audit := "🤖 " + string(v.Role) + "\n" + text
		if err := s.Sender.Send(ctx, s.AICheckChatID, audit); err != nil {
			log.Debug().Err(err).Msg("audit mirror delivery failed")
		}
	}
	if !v.OrderRelated && !hasContact && s.ErrorChatID != 0 {
		if err := s.Sender.Send(ctx, s.ErrorChatID, text); err != nil {
			log.Debug().Err(err).Msg("non-order mirror delivery failed")
		}
	}
}

func (s *AggregatorService) captureOrder(o *domain.Order, snap finalize.Snapshot) {
	if s.Dataset == nil {
		return
	}
	s.append(dataset.EventOrder, map[string]any{
		"order_id":      o.ID,
		"chat_id":       o.ChatID,
		"user_id":       o.UserID,
		"client_phones": snap.ClientPhones,
		"all_phones":    snap.AllPhones,
		"product_lines": snap.ProductLines,
		"comment_lines": snap.CommentLines,
		"raw_messages":  snap.RawMessages,
		"amount":        snap.Amount,
		"location":      snap.Location,
	})
}

// unmark releases the dedupe row after a pipeline failure so the adapter's
// retry of the same delivery is not dropped as a replay.
func (s *AggregatorService) unmark(ctx context.Context, ev domain.MessageEvent) {
	if err := repo.UnmarkEventProcessed(ctx, s.DB, ev.ChatID, ev.MessageID); err != nil {
		log.Warn().Err(err).
			Int64("chat_id", ev.ChatID).
			Int64("message_id", ev.MessageID).
			Msg("dedupe release failed")
	}
}

func (s *AggregatorService) append(event string, payload map[string]any) {
	if err := s.Dataset.Append(event, payload); err != nil {
		log.Warn().Err(err).Str("event", event).Msg("dataset append failed")
	}
}

// Stop cancels every pending finalize timer. Sessions already triggered but
// not yet drained stay in the store; a restart rebuilds them from scratch.
func (s *AggregatorService) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, t := range s.timers {
		t.Stop()
		delete(s.timers, key)
	}
}
