// Package finalize decides when an aggregation session becomes a finished
// order and turns it into an immutable snapshot. It owns the three hard
// heuristics of the drain step: the finalize trigger conditions, the
// product/comment partition of the raw message history, and the election of
// the customer's phone number(s) among every number seen in the session.
package finalize

import (
	"strings"
	"time"

	"github.com/tbourn/go-order-backend/internal/classify"
	"github.com/tbourn/go-order-backend/internal/domain"
	"github.com/tbourn/go-order-backend/internal/extract"
	"github.com/tbourn/go-order-backend/internal/session"
)

// Trigger captures the per-message facts that can finalize a READY session.
// Any single true field fires the trigger.
type Trigger struct {
	// FirstLocation: this message supplied the session's first location.
	FirstLocation bool
	// ProductRole: the classifier assigned PRODUCT to this message.
	ProductRole bool
	// AddressKeywords: the classifier flagged address vocabulary.
	AddressKeywords bool
	// FirstPhone: this message supplied the session's first phone number.
	FirstPhone bool
	// ProductCandidate: the rule fallback sees a product-shaped message
	// (digits or monetary keywords).
	ProductCandidate bool
}

// Fires reports whether any trigger condition holds.
func (t Trigger) Fires() bool {
	return t.FirstLocation || t.ProductRole || t.AddressKeywords || t.FirstPhone || t.ProductCandidate
}

// Snapshot is the immutable projection of a session at finalize time. It is
// created once by Drain, handed to collaborators by value, and never
// aliased back into live session state.
type Snapshot struct {
	ChatID     int64
	UserID     int64
	UserName   string
	GroupTitle string
	MessageID  int64

	ClientPhones []string
	AllPhones    []string
	Location     *domain.Location
	ProductLines []string
	CommentLines []string
	RawMessages  []string
	Amount       *int64

	SessionCreatedAt time.Time
	FinalizedAt      time.Time
}

// Engine evaluates finalize triggers and drains sessions. It reuses the
// extractor for digit scanning and the classifier vocabulary for comment
// intent and shop/client phone labeling, so one configuration drives the
// whole pipeline.
type Engine struct {
	ex    *extract.Extractor
	rules *classify.Rules
	now   func() time.Time
}

// NewEngine builds an Engine. The now function defaults to time.Now.
func NewEngine(ex *extract.Extractor, rules *classify.Rules, now func() time.Time) *Engine {
	if now == nil {
		now = time.Now
	}
	return &Engine{ex: ex, rules: rules, now: now}
}

// Evaluate builds the trigger facts for the current message. The session
// must already reflect this message's phone/location updates; firstPhone and
// firstLocation report what this specific message contributed.
func (e *Engine) Evaluate(verdict classify.Verdict, text string, firstPhone, firstLocation bool) Trigger {
	return Trigger{
		FirstLocation:    firstLocation,
		ProductRole:      verdict.Role == classify.RoleProduct,
		AddressKeywords:  verdict.AddressKeywords,
		FirstPhone:       firstPhone,
		ProductCandidate: e.rules.HasProductCandidate(text),
	}
}

// Meta carries the sender identity attached to a drained snapshot.
type Meta struct {
	UserName   string
	GroupTitle string
	MessageID  int64
}

// Drain projects a completed session into a Snapshot: elects the client
// phones, partitions the raw history into product and comment lines, and
// extracts a best-effort amount from the full history.
func (e *Engine) Drain(sess *session.Session, meta Meta) Snapshot {
	raw := append([]string(nil), sess.RawMessages...)
	phones := sess.PhoneList()

	clientPhones := e.electClientPhones(raw, phones)
	productLines, commentLines := e.partition(raw, clientPhones)

	var amount *int64
	if v, ok := e.ex.Amount(strings.Join(raw, "\n")); ok {
		amount = &v
	}

	var loc *domain.Location
	if sess.Location != nil {
		l := *sess.Location
		loc = &l
	}

	return Snapshot{
		ChatID:           sess.Key.ChatID,
		UserID:           sess.Key.UserID,
		UserName:         meta.UserName,
		GroupTitle:       meta.GroupTitle,
		MessageID:        meta.MessageID,
		ClientPhones:     clientPhones,
		AllPhones:        phones,
		Location:         loc,
		ProductLines:     productLines,
		CommentLines:     commentLines,
		RawMessages:      raw,
		Amount:           amount,
		SessionCreatedAt: sess.CreatedAt,
		FinalizedAt:      e.now(),
	}
}

// Partition exposes the product/comment split for the order-update flow,
// which re-partitions a single corrected message outside any session.
func (e *Engine) Partition(rawMessages, clientPhones []string) (productLines, commentLines []string) {
	return e.partition(rawMessages, clientPhones)
}

// partition splits the raw history into product and comment lines. Each raw
// message is one line of the finished order.
//
// Rules, in order, per non-blank message:
//   - a phone-bearing line labeled as a phone annotation is dropped
//   - a line with comment-intent vocabulary is a comment
//   - a line whose only numeric content echoes the tail of an elected
//     client phone is noise and is dropped from product lines
//   - everything else is product content
func (e *Engine) partition(rawMessages, clientPhones []string) (productLines, commentLines []string) {
	kw := e.rules.Keywords()

	clientTails := make(map[string]struct{}, len(clientPhones))
	for _, p := range clientPhones {
		if d := digitsOf(p); len(d) >= 7 {
			clientTails[d[len(d)-7:]] = struct{}{}
		}
	}

	for _, msg := range rawMessages {
		text := strings.TrimSpace(msg)
		if text == "" {
			continue
		}
		low := strings.ToLower(text)
		digits := digitsOf(text)

		if len(e.ex.Phones(text)) > 0 && containsAny(low, kw.PhoneLabel) {
			continue
		}
		if e.rules.HasCommentIntent(text) {
			commentLines = append(commentLines, text)
			continue
		}
		if digits != "" && len(digits) <= 13 && echoesTail(digits, clientTails) {
			continue
		}
		productLines = append(productLines, text)
	}
	return productLines, commentLines
}

func echoesTail(digits string, tails map[string]struct{}) bool {
	for tail := range tails {
		if strings.HasSuffix(digits, tail) {
			return true
		}
	}
	return false
}
