package transport

import (
	"encoding/json"
	"time"

	"github.com/lox/cardroom/internal/game"
)

// MessageType names a frame.
type MessageType string

// Client to server.
const (
	TypeHello   MessageType = "hello"
	TypeJoin    MessageType = "join"
	TypeLeave   MessageType = "leave"
	TypeWatch   MessageType = "watch"
	TypeAction  MessageType = "action"
	TypeAutobet MessageType = "autobet"
	TypeTables  MessageType = "tables"
)

// Server to client.
const (
	TypeWelcome MessageType = "welcome"
	TypeResult  MessageType = "result"
	TypeState   MessageType = "state"
	TypeError   MessageType = "error"
)

// Message is the envelope every frame travels in.
type Message struct {
	Type      MessageType     `json:"type"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp time.Time       `json:"timestamp,omitzero"`
	RequestID string          `json:"request_id,omitempty"`
}

// NewMessage creates a message with the current timestamp.
func NewMessage(t MessageType, data any) (*Message, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return &Message{Type: t, Data: raw, Timestamp: time.Now()}, nil
}

type HelloData struct {
	Player string `json:"player"`
}

type JoinData struct {
	Table string `json:"table"`
	BuyIn int64  `json:"buy_in,omitempty"`
}

type TableData struct {
	Table string `json:"table"`
}

type ActionData struct {
	Table  string `json:"table"`
	Action string `json:"action"`
	Amount int64  `json:"amount,omitempty"`
}

type AutobetData struct {
	Table  string `json:"table"`
	Amount int64  `json:"amount"`
	Hands  int    `json:"hands"`
}

type WelcomeData struct {
	Player  string `json:"player"`
	Session string `json:"session"`
}

// ResultData answers a command. Code is empty on success.
type ResultData struct {
	Applied bool   `json:"applied"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

type ErrorData struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// StateData carries a table view as the receiving player sees it.
type StateData = game.View
