package feed

import (
	"context"
	"time"

	"github.com/gorilla/websocket"
)

// Conn is the minimal websocket surface the connector needs.
// *websocket.Conn satisfies it; tests substitute a fake.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteJSON(v interface{}) error
	Close() error
}

// DialFunc opens a websocket connection to the quote source.
type DialFunc func(ctx context.Context, url string) (Conn, error)

// DefaultDial dials with gorilla/websocket.
func DefaultDial(ctx context.Context, url string) (Conn, error) {
	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}
	conn, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// subscribeRequest is the message sent after connecting to open the
// ticker channel for a single product.
type subscribeRequest struct {
	Type       string   `json:"type"`
	ProductIDs []string `json:"product_ids"`
	Channels   []string `json:"channels"`
}

// tickerMessage is an inbound quote message. Prices arrive as
// string-encoded decimals.
type tickerMessage struct {
	Type      string `json:"type"`
	ProductID string `json:"product_id"`
	Price     string `json:"price"`
	LastSize  string `json:"last_size"`
	High24h   string `json:"high_24h"`
	Low24h    string `json:"low_24h"`
}
