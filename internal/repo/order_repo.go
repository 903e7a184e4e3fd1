package repo

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-order-backend/internal/domain"
)

// CreateOrder inserts a new order row, generating its UUID.
func CreateOrder(ctx context.Context, db *gorm.DB, o *domain.Order) (*domain.Order, error) {
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	if o.Status == "" {
		o.Status = domain.OrderStatusActive
	}
	if err := db.WithContext(ctx).Create(o).Error; err != nil {
		return nil, err
	}
	return o, nil
}

// GetOrder fetches an order by id.
func GetOrder(ctx context.Context, db *gorm.DB, id string) (*domain.Order, error) {
	var o domain.Order
	err := db.WithContext(ctx).First(&o, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &o, nil
}

// CancelOrder marks an active order cancelled. It reports false when the
// order does not exist or was already cancelled.
func CancelOrder(ctx context.Context, db *gorm.DB, id string) (bool, error) {
	res := db.WithContext(ctx).
		Model(&domain.Order{}).
		Where("id = ? AND status = ?", id, domain.OrderStatusActive).
		Update("status", domain.OrderStatusCancelled)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// CountOrders returns the total number of orders for a chat (0 = all chats).
func CountOrders(ctx context.Context, db *gorm.DB, chatID int64) (int64, error) {
	q := db.WithContext(ctx).Model(&domain.Order{})
	if chatID != 0 {
		q = q.Where("chat_id = ?", chatID)
	}
	var n int64
	err := q.Count(&n).Error
	return n, err
}

// ListOrdersPage returns a page of orders, newest first.
func ListOrdersPage(ctx context.Context, db *gorm.DB, chatID int64, offset, limit int) ([]domain.Order, error) {
	q := db.WithContext(ctx).Model(&domain.Order{})
	if chatID != 0 {
		q = q.Where("chat_id = ?", chatID)
	}
	var orders []domain.Order
	err := q.Order("created_at DESC").Offset(offset).Limit(limit).Find(&orders).Error
	return orders, err
}

// MarkEventProcessed records an inbound (chat, message) pair. It reports
// false when the pair was already recorded, i.e. the delivery is a replay.
func MarkEventProcessed(ctx context.Context, db *gorm.DB, chatID, messageID int64) (bool, error) {
	err := db.WithContext(ctx).Create(&domain.ProcessedEvent{
		ChatID:    chatID,
		MessageID: messageID,
	}).Error
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) || isUniqueViolation(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// UnmarkEventProcessed removes the dedupe row for (chat, message). Called on
// pipeline failure so the at-least-once adapter can retry the delivery
// instead of having it dropped as a replay. Removing an absent row is a no-op.
func UnmarkEventProcessed(ctx context.Context, db *gorm.DB, chatID, messageID int64) error {
	return db.WithContext(ctx).
		Where("chat_id = ? AND message_id = ?", chatID, messageID).
		Delete(&domain.ProcessedEvent{}).Error
}

// isUniqueViolation sniffs driver-level unique constraint errors that GORM
// does not translate for every dialect.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") || strings.Contains(msg, "duplicate key")
}
