package services

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-order-backend/internal/classify"
	"github.com/tbourn/go-order-backend/internal/dataset"
	"github.com/tbourn/go-order-backend/internal/domain"
	"github.com/tbourn/go-order-backend/internal/extract"
	"github.com/tbourn/go-order-backend/internal/finalize"
	"github.com/tbourn/go-order-backend/internal/repo"
	"github.com/tbourn/go-order-backend/internal/session"
)

func newServiceDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), fmt.Sprintf("services_test_%d.db", time.Now().UnixNano()))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

// newTestPipeline wires a full aggregator with an inline (zero-delay)
// finalize, no outbound sender, and a real dataset directory.
func newTestPipeline(t *testing.T) (*AggregatorService, *gorm.DB) {
	t.Helper()

	db := newServiceDB(t)
	ex := extract.New()
	rules := classify.NewRules(classify.DefaultKeywords())
	engine := finalize.NewEngine(ex, rules, nil)

	ds, err := dataset.NewWriter(t.TempDir(), nil)
	if err != nil {
		t.Fatalf("dataset writer: %v", err)
	}

	orders := &OrderService{
		DB:        db,
		Extractor: ex,
		Rules:     rules,
		Engine:    engine,
		Dataset:   ds,
	}
	agg := &AggregatorService{
		DB:         db,
		Store:      session.NewStore(120*time.Second, nil),
		Extractor:  ex,
		Classifier: classify.NewClassifier(rules, nil),
		Engine:     engine,
		Dataset:    ds,
		Orders:     orders,
	}
	t.Cleanup(agg.Stop)
	return agg, db
}

func msg(id int64, text string) domain.MessageEvent {
	return domain.MessageEvent{
		ChatID:    100,
		ChatTitle: "Yetkazib berish",
		UserID:    200,
		UserName:  "Aziz",
		MessageID: id,
		Text:      text,
	}
}

func TestHandleMessage_FullOrderFlow(t *testing.T) {
	agg, db := newTestPipeline(t)
	ctx := context.Background()

	res, err := agg.HandleMessage(ctx, msg(1, "2 ta pizza 1 cola"))
	if err != nil || res.Status != StatusAggregated {
		t.Fatalf("msg1 = (%+v, %v)", res, err)
	}

	res, err = agg.HandleMessage(ctx, msg(2, "Telefon: 90 107 80 55"))
	if err != nil || res.Status != StatusAggregated {
		t.Fatalf("msg2 = (%+v, %v)", res, err)
	}

	res, err = agg.HandleMessage(ctx, msg(3, "Summa 300 ming"))
	if err != nil || res.Status != StatusAggregated {
		t.Fatalf("msg3 = (%+v, %v)", res, err)
	}

	geo := msg(4, "")
	geo.Geo = &domain.Geo{Lat: 41.3, Lon: 69.2}
	res, err = agg.HandleMessage(ctx, geo)
	if err != nil {
		t.Fatalf("geo message: %v", err)
	}
	if res.Status != StatusFinalized || res.OrderID == "" {
		t.Fatalf("expected inline finalize, got %+v", res)
	}

	order, err := repo.GetOrder(ctx, db, res.OrderID)
	if err != nil {
		t.Fatalf("GetOrder: %v", err)
	}
	if len(order.Phones) != 1 || order.Phones[0] != "+998901078055" {
		t.Fatalf("phones = %v", order.Phones)
	}
	if order.Amount == nil || *order.Amount != 300000 {
		t.Fatalf("amount = %v", order.Amount)
	}
	if order.Location == nil || order.Location.Kind != domain.LocationNative {
		t.Fatalf("location = %+v", order.Location)
	}
	if order.ProductText != "2 ta pizza 1 cola\nSumma 300 ming" {
		t.Fatalf("product text = %q", order.ProductText)
	}
	if order.UserName != "Aziz" || order.GroupTitle != "Yetkazib berish" || order.MessageID != 4 {
		t.Fatalf("metadata wrong: %+v", order)
	}

	// The session is gone; the next message starts fresh.
	if n := agg.Store.Len(); n != 0 {
		t.Fatalf("live sessions after finalize = %d", n)
	}
}

func TestHandleMessage_DuplicateDelivery(t *testing.T) {
	agg, _ := newTestPipeline(t)
	ctx := context.Background()

	if _, err := agg.HandleMessage(ctx, msg(1, "2 ta pizza")); err != nil {
		t.Fatalf("first delivery: %v", err)
	}
	res, err := agg.HandleMessage(ctx, msg(1, "2 ta pizza"))
	if err != nil || res.Status != StatusDuplicate {
		t.Fatalf("replay = (%+v, %v), want duplicate", res, err)
	}
}

func TestHandleMessage_EmptyEvent(t *testing.T) {
	agg, _ := newTestPipeline(t)

	if _, err := agg.HandleMessage(context.Background(), msg(1, "   ")); err != ErrEmptyEvent {
		t.Fatalf("err = %v, want ErrEmptyEvent", err)
	}
}

func TestHandleMessage_PhoneWithoutLocationDoesNotFinalize(t *testing.T) {
	agg, _ := newTestPipeline(t)
	ctx := context.Background()

	// A first phone is a trigger, but the session is not ready without a
	// location, so nothing is emitted.
	res, err := agg.HandleMessage(ctx, msg(1, "90 107 80 55"))
	if err != nil || res.Status != StatusAggregated {
		t.Fatalf("result = (%+v, %v)", res, err)
	}
	if agg.Store.Len() != 1 {
		t.Fatal("session vanished")
	}
}

func TestDrain_SupersededVersionIsNoOp(t *testing.T) {
	agg, db := newTestPipeline(t)
	ctx := context.Background()

	if _, err := agg.HandleMessage(ctx, msg(1, "2 ta pizza")); err != nil {
		t.Fatalf("seed: %v", err)
	}

	res, err := agg.drain(ctx, session.Key{ChatID: 100, UserID: 200}, 999, finalize.Meta{})
	if err != nil || res.Status != StatusSuperseded {
		t.Fatalf("drain = (%+v, %v), want superseded", res, err)
	}

	var n int64
	if err := db.Model(&domain.Order{}).Count(&n).Error; err != nil || n != 0 {
		t.Fatalf("orders = %d, want 0", n)
	}
}

func TestHandleMessage_ReplyUpdateReplacesOrder(t *testing.T) {
	agg, db := newTestPipeline(t)
	ctx := context.Background()

	old, err := repo.CreateOrder(ctx, db, &domain.Order{
		ChatID:      100,
		UserID:      200,
		Phones:      domain.PhoneList{"+998901078055"},
		ProductText: "2 ta pizza",
	})
	if err != nil {
		t.Fatalf("seed order: %v", err)
	}

	ev := msg(50, "клиент 97 777 77 77")
	ev.ReplyToOrderID = old.ID
	res, err := agg.HandleMessage(ctx, ev)
	if err != nil {
		t.Fatalf("reply update: %v", err)
	}
	if res.Status != StatusUpdated || res.OrderID == "" || res.OrderID == old.ID {
		t.Fatalf("result = %+v", res)
	}

	replaced, err := repo.GetOrder(ctx, db, old.ID)
	if err != nil {
		t.Fatalf("GetOrder(old): %v", err)
	}
	if replaced.Status != domain.OrderStatusCancelled {
		t.Fatalf("old order status = %q, want cancelled", replaced.Status)
	}

	next, err := repo.GetOrder(ctx, db, res.OrderID)
	if err != nil {
		t.Fatalf("GetOrder(new): %v", err)
	}
	if next.ReplacesID == nil || *next.ReplacesID != old.ID {
		t.Fatalf("ReplacesID = %v", next.ReplacesID)
	}
	if len(next.Phones) != 1 || next.Phones[0] != "+998977777777" {
		t.Fatalf("phones = %v", next.Phones)
	}
	// The correction carried only a phone; product text carries over.
	if next.ProductText != "2 ta pizza" {
		t.Fatalf("product text = %q", next.ProductText)
	}
}

func TestHandleMessage_ReplyUpdateUnknownOrder(t *testing.T) {
	agg, _ := newTestPipeline(t)

	ev := msg(60, "97 777 77 77")
	ev.ReplyToOrderID = "missing"
	if _, err := agg.HandleMessage(context.Background(), ev); err != ErrOrderNotFound {
		t.Fatalf("err = %v, want ErrOrderNotFound", err)
	}
}

func TestHandleMessage_FailedUpdateCanBeRetried(t *testing.T) {
	agg, db := newTestPipeline(t)
	ctx := context.Background()

	// The reply targets an order that does not exist yet; the delivery fails.
	ev := msg(7, "клиент 97 777 77 77")
	ev.ReplyToOrderID = "not-yet-created"
	if _, err := agg.HandleMessage(ctx, ev); err != ErrOrderNotFound {
		t.Fatalf("first delivery err = %v, want ErrOrderNotFound", err)
	}

	// The order appears and the adapter redelivers the same message. A failed
	// delivery must not occupy the dedupe slot.
	old, err := repo.CreateOrder(ctx, db, &domain.Order{
		ChatID:      100,
		UserID:      200,
		ProductText: "2 ta pizza",
	})
	if err != nil {
		t.Fatalf("seed order: %v", err)
	}
	ev.ReplyToOrderID = old.ID
	res, err := agg.HandleMessage(ctx, ev)
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if res.Status != StatusUpdated || res.OrderID == "" {
		t.Fatalf("retry = %+v, want updated", res)
	}

	// A third delivery of the now-successful message is still a replay.
	res, err = agg.HandleMessage(ctx, ev)
	if err != nil || res.Status != StatusDuplicate {
		t.Fatalf("replay = (%+v, %v), want duplicate", res, err)
	}
}

func TestMirrorVerdict_ContactBearingMessagesSkipNonOrderCapture(t *testing.T) {
	db := newServiceDB(t)
	ex := extract.New()
	rules := classify.NewRules(classify.DefaultKeywords())
	engine := finalize.NewEngine(ex, rules, nil)

	dir := t.TempDir()
	ds, err := dataset.NewWriter(dir, nil)
	if err != nil {
		t.Fatalf("dataset writer: %v", err)
	}
	agg := &AggregatorService{
		DB:         db,
		Store:      session.NewStore(120*time.Second, nil),
		Extractor:  ex,
		Classifier: classify.NewClassifier(rules, nil),
		Engine:     engine,
		Dataset:    ds,
		Orders:     &OrderService{DB: db, Extractor: ex, Rules: rules, Engine: engine},
	}
	t.Cleanup(agg.Stop)
	ctx := context.Background()

	// A bare phone and a bare geo pin classify as unrelated, but they are
	// order fragments and must not reach the non-order capture.
	if _, err := agg.HandleMessage(ctx, msg(1, "90 107 80 55")); err != nil {
		t.Fatalf("phone message: %v", err)
	}
	geo := msg(2, "")
	geo.Geo = &domain.Geo{Lat: 41.3, Lon: 69.2}
	if _, err := agg.HandleMessage(ctx, geo); err != nil {
		t.Fatalf("geo message: %v", err)
	}

	// Chatter with neither goes through.
	if _, err := agg.HandleMessage(ctx, msg(3, "salom")); err != nil {
		t.Fatalf("greeting message: %v", err)
	}

	raw, err := os.ReadFile(filepath.Join(dir, dataset.EventNonOrder+".ndjson"))
	if err != nil {
		t.Fatalf("read capture: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(raw)), "\n")
	if len(lines) != 1 || !strings.Contains(lines[0], "salom") {
		t.Fatalf("non-order capture = %q, want only the greeting", raw)
	}
}

func TestOrderService_CancelPaths(t *testing.T) {
	_, db := newTestPipeline(t)
	ctx := context.Background()

	svc := &OrderService{DB: db}

	if err := svc.Cancel(ctx, "missing"); err != ErrOrderNotFound {
		t.Fatalf("missing cancel err = %v", err)
	}

	o, err := repo.CreateOrder(ctx, db, &domain.Order{ChatID: 1, UserID: 2})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	if err := svc.Cancel(ctx, o.ID); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if err := svc.Cancel(ctx, o.ID); err != ErrOrderNotActive {
		t.Fatalf("repeat cancel err = %v", err)
	}
}

func TestOrderService_ListValidation(t *testing.T) {
	_, db := newTestPipeline(t)
	svc := &OrderService{DB: db}

	if _, _, err := svc.List(context.Background(), 0, 0, 10); err != ErrInvalidPage {
		t.Fatalf("err = %v, want ErrInvalidPage", err)
	}
}
