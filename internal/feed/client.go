package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/gorilla/websocket"

	"quantd/internal/metrics"
)

// Client maintains the persistent streaming connection feeding the
// synchronizer. It reconnects with capped exponential backoff and never
// blocks on downstream consumers; all state lives in the synchronizer.
type Client struct {
	url      string
	channels []string
	symbols  []string
	sync     *Synchronizer
	log      *slog.Logger
}

// NewClient creates a feed client that subscribes each (channel, symbol)
// pair on url and routes inbound messages into sync.
func NewClient(url string, channels, symbols []string, sync *Synchronizer) *Client {
	return &Client{
		url:      url,
		channels: channels,
		symbols:  symbols,
		sync:     sync,
		log:      slog.Default().With("component", "feed-client"),
	}
}

// subscribeRequest is the subscription frame sent after connecting.
type subscribeRequest struct {
	Op   string   `json:"op"`
	Args []string `json:"args"`
}

// Run connects and consumes the stream until ctx is cancelled, reconnecting
// on transient errors.
func (c *Client) Run(ctx context.Context) error {
	backoff := time.Second
	const maxBackoff = 30 * time.Second

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		err := c.consume(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.log.Warn("feed disconnected, retrying", "err", err, "backoff", backoff)
		metrics.FeedReconnectsTotal.Inc()
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return ctx.Err()
		}
		backoff = time.Duration(math.Min(float64(maxBackoff), float64(backoff)*2))
	}
}

// consume dials, subscribes, and runs the read loop until the connection
// drops or ctx is cancelled.
func (c *Client) consume(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, c.url, nil)
	if err != nil {
		return fmt.Errorf("dialing %s: %w", c.url, err)
	}
	defer conn.Close()

	if err := c.subscribe(conn); err != nil {
		return err
	}
	c.log.Info("connected market data feed", "url", c.url, "symbols", c.symbols)

	conn.SetReadLimit(1 << 20)
	conn.SetReadDeadline(time.Now().Add(30 * time.Second))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(30 * time.Second))
		return nil
	})

	pingCtx, pingCancel := context.WithCancel(ctx)
	defer pingCancel()
	go func() {
		ticker := time.NewTicker(15 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					c.log.Warn("feed ping failed", "err", err)
					return
				}
			case <-pingCtx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		_, payload, err := conn.ReadMessage()
		if err != nil {
			return err
		}

		var msg Message
		if err := json.Unmarshal(payload, &msg); err != nil {
			c.log.Warn("failed to decode feed message", "err", err)
			continue
		}
		if msg.Table == "" {
			// Control frame (welcome, subscription ack); nothing to apply.
			continue
		}
		if err := c.sync.Apply(msg); err != nil {
			if errors.Is(err, ErrUnknownAction) {
				c.log.Warn("protocol anomaly skipped", "err", err)
				continue
			}
			return err
		}
	}
}

// subscribe sends one subscription request listing every (channel, symbol)
// pair.
func (c *Client) subscribe(conn *websocket.Conn) error {
	args := make([]string, 0, len(c.channels)*len(c.symbols))
	for _, ch := range c.channels {
		for _, sym := range c.symbols {
			args = append(args, ch+":"+sym)
		}
	}
	conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return conn.WriteJSON(subscribeRequest{Op: "subscribe", Args: args})
}
