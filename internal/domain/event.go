package domain

import "strings"

// Geo is a native latitude/longitude attachment on an inbound message.
type Geo struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// MessageEvent is one inbound chat message as delivered by the messaging
// collaborator. Text and Caption are both optional; Content() picks whichever
// is present. ReplyToOrderID links the message to a previously emitted order
// when the sender replied to it.
type MessageEvent struct {
	ChatID         int64  `json:"chat_id"`
	ChatTitle      string `json:"chat_title"`
	UserID         int64  `json:"user_id"`
	UserName       string `json:"user_name"`
	MessageID      int64  `json:"message_id"`
	Text           string `json:"text"`
	Caption        string `json:"caption"`
	Geo            *Geo   `json:"geo,omitempty"`
	ReplyToOrderID string `json:"reply_to_order_id,omitempty"`
}

// Content returns the message text, falling back to the caption.
func (e MessageEvent) Content() string {
	if strings.TrimSpace(e.Text) != "" {
		return e.Text
	}
	return e.Caption
}
