// Package domain defines the persistence models and shared value types for
// the order aggregation backend: finalized orders, processed inbound events,
// and the tagged location variant carried from extraction to persistence.
// Persistence models are mapped with GORM.
package domain

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"gorm.io/gorm"
)

// Order statuses.
const (
	OrderStatusActive    = "active"
	OrderStatusCancelled = "cancelled"
)

// Location kinds.
const (
	LocationNative = "native"
	LocationText   = "text"
)

// Location is a tagged variant describing where an order should be
// delivered: either a native geo attachment (Kind == "native", Lat/Lon set)
// or free text (Kind == "text", Raw set). It serializes as JSON both over
// the wire and into the orders table.
type Location struct {
	Kind string  `json:"kind"`
	Lat  float64 `json:"lat,omitempty"`
	Lon  float64 `json:"lon,omitempty"`
	Raw  string  `json:"raw,omitempty"`
}

// Value implements driver.Valuer so a Location can be stored as a JSON column.
func (l Location) Value() (driver.Value, error) {
	return json.Marshal(l)
}

// Scan implements sql.Scanner for reading a JSON Location column.
func (l *Location) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		return nil
	case []byte:
		return json.Unmarshal(v, l)
	case string:
		return json.Unmarshal([]byte(v), l)
	default:
		return errors.New("domain: unsupported Location column type")
	}
}

// PhoneList is a set of normalized phone strings stored as a JSON array.
type PhoneList []string

// Value implements driver.Valuer.
func (p PhoneList) Value() (driver.Value, error) {
	if p == nil {
		p = PhoneList{}
	}
	return json.Marshal(p)
}

// Scan implements sql.Scanner.
func (p *PhoneList) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*p = nil
		return nil
	case []byte:
		return json.Unmarshal(v, p)
	case string:
		return json.Unmarshal([]byte(v), p)
	default:
		return errors.New("domain: unsupported PhoneList column type")
	}
}

// Order is the durable record produced when an aggregation session is
// finalized (or when an order is recreated through the update flow).
//
// Fields:
//   - ID: stable UUID primary key (char(36)).
//   - ChatID / UserID: the (conversation, participant) key the order came from.
//   - UserName / GroupTitle: display metadata captured at finalize time.
//   - MessageID: id of the message that triggered finalization.
//   - Phones: elected client phone numbers (JSON array).
//   - Location: tagged location variant (JSON).
//   - ProductText / CommentText: partitioned order content.
//   - Amount: best-effort extracted amount in the smallest currency unit.
//   - Status: "active" or "cancelled".
//   - ReplacesID: id of the order this one superseded via the update flow.
type Order struct {
	ID          string         `json:"id"           gorm:"type:char(36);primaryKey"`
	ChatID      int64          `json:"chat_id"      gorm:"not null;index:idx_chat_orders"`
	UserID      int64          `json:"user_id"      gorm:"not null;index"`
	UserName    string         `json:"user_name"    gorm:"type:varchar(255)"`
	GroupTitle  string         `json:"group_title"  gorm:"type:varchar(255)"`
	MessageID   int64          `json:"message_id"`
	Phones      PhoneList      `json:"phones"       gorm:"type:text"`
	Location    *Location      `json:"location"     gorm:"type:text"`
	ProductText string         `json:"product_text" gorm:"type:text"`
	CommentText string         `json:"comment_text" gorm:"type:text"`
	Amount      *int64         `json:"amount,omitempty"`
	Status      string         `json:"status"       gorm:"type:varchar(16);not null;default:'active';check:status IN ('active','cancelled')"`
	ReplacesID  *string        `json:"replaces_id,omitempty" gorm:"type:char(36)"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `json:"-"            gorm:"index"`
}

// TableName returns the database table name for Order.
func (Order) TableName() string { return "orders" }

// ProcessedEvent records an inbound message event that has already been
// handled. Webhook deliveries are at-least-once, so replays of the same
// (chat_id, message_id) pair must be dropped without touching any session.
type ProcessedEvent struct {
	ID        uint      `gorm:"primaryKey;autoIncrement"`
	ChatID    int64     `gorm:"not null;uniqueIndex:ux_event_chat_msg,priority:1"`
	MessageID int64     `gorm:"not null;uniqueIndex:ux_event_chat_msg,priority:2"`
	CreatedAt time.Time `gorm:"index"`
}

// TableName returns the database table name for ProcessedEvent.
func (ProcessedEvent) TableName() string { return "processed_events" }
