package relay

import (
	"context"
	"time"
)

// Message is one inbound chat event from the relay bridge.
type Message struct {
	ID       int64     `json:"id"`
	Channel  string    `json:"channel"`
	UserID   int64     `json:"user_id"`
	UserName string    `json:"user_name"`
	Content  string    `json:"content"`
	Mentions []int64   `json:"mentions,omitempty"`
	SentAt   time.Time `json:"sent_at"`
}

// Config mirrors the bridge's GET /config response.
type Config struct {
	Port        int    `json:"port"`
	MessageRate int    `json:"message_rate"`
	Endpoint    string `json:"endpoint"`
}

// ReplyRequest is the POST /reply payload.
type ReplyRequest struct {
	Type    string `json:"type"`
	Channel string `json:"channel"`
	Data    string `json:"data"`
}

// HistoryPage is one page of archived channel history from GET /history.
type HistoryPage struct {
	Messages []Message `json:"messages"`
	// Cursor for the next (older) page; empty when exhausted.
	Before string `json:"before"`
}

type MessageCallback func(message *Message)

type StateCallback func(state WebSocketState)

// Sender is the narrow outbound capability handed to components that post
// messages. Keeps the game and dispatcher testable without a live bridge.
type Sender interface {
	SendText(ctx context.Context, channel, message string) error
}
