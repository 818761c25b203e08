// Package feed maintains the streaming subscription to the external
// quote source and fans normalized ticks out to subscribers.
package feed

import (
	"context"
	"encoding/json"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"

	apperrors "updown-core/internal/errors"
	"updown-core/internal/logging"
	"updown-core/internal/models"
	"updown-core/pkg/utils"
)

// Config holds configuration for the price feed connector.
type Config struct {
	URL         string
	ProductID   string
	MaxRetries  int
	BaseDelay   time.Duration
	StaleAfter  time.Duration
	HistorySize int
}

// DefaultConfig returns the default connector configuration.
func DefaultConfig() Config {
	return Config{
		URL:         "wss://ws-feed.exchange.coinbase.com",
		ProductID:   "BTC-USD",
		MaxRetries:  5,
		BaseDelay:   time.Second,
		StaleAfter:  30 * time.Second,
		HistorySize: 1000,
	}
}

func (c Config) withDefaults() Config {
	if c.MaxRetries == 0 {
		c.MaxRetries = 5
	}
	if c.BaseDelay == 0 {
		c.BaseDelay = time.Second
	}
	if c.StaleAfter == 0 {
		c.StaleAfter = 30 * time.Second
	}
	if c.HistorySize == 0 {
		c.HistorySize = 1000
	}
	return c
}

// Listener receives every tick in arrival order.
type Listener func(models.PriceTick)

// Connector maintains one streaming connection to a quote source.
// It tracks the latest price, retains a bounded tick history for
// diagnostics, and invokes subscribers synchronously per tick.
type Connector struct {
	cfg    Config
	logger zerolog.Logger
	dial   DialFunc

	mu           sync.RWMutex
	conn         Conn
	connected    bool
	connecting   bool
	closed       bool
	currentPrice float64
	lastTickAt   time.Time
	history      []models.PriceTick

	subMu       sync.RWMutex
	subscribers map[int]Listener
	nextSubID   int

	done chan struct{}
	wg   sync.WaitGroup
}

// NewConnector creates a new price feed connector.
func NewConnector(cfg Config, logger zerolog.Logger) *Connector {
	return NewConnectorWithDial(cfg, logger, DefaultDial)
}

// NewConnectorWithDial creates a connector with a custom dial function.
func NewConnectorWithDial(cfg Config, logger zerolog.Logger, dial DialFunc) *Connector {
	cfg = cfg.withDefaults()
	return &Connector{
		cfg:         cfg,
		logger:      logging.WithComponent(logger, "feed"),
		dial:        dial,
		subscribers: make(map[int]Listener),
		done:        make(chan struct{}),
	}
}

// Connect opens the streaming connection and starts the read loop
// and the staleness watchdog.
func (c *Connector) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return apperrors.NewFeedError(c.cfg.ProductID, "connector closed", apperrors.ErrFeedDisconnected)
	}
	// Only one caller may dial; the others treat the connection as
	// already established.
	if c.connected || c.connecting {
		c.mu.Unlock()
		return nil
	}
	c.connecting = true
	c.mu.Unlock()

	conn, err := c.open(ctx)

	c.mu.Lock()
	c.connecting = false
	if err != nil {
		c.mu.Unlock()
		return err
	}
	if c.closed {
		c.mu.Unlock()
		conn.Close()
		return apperrors.NewFeedError(c.cfg.ProductID, "connector closed", apperrors.ErrFeedDisconnected)
	}
	c.conn = conn
	c.connected = true
	c.lastTickAt = time.Now()
	c.mu.Unlock()

	c.wg.Add(2)
	go c.readLoop(ctx, conn)
	go c.watchdog(ctx)

	c.logger.Info().
		Str("url", c.cfg.URL).
		Str("product", c.cfg.ProductID).
		Msg("Feed connected")

	return nil
}

// open dials the quote source and sends the ticker subscription.
func (c *Connector) open(ctx context.Context) (Conn, error) {
	conn, err := c.dial(ctx, c.cfg.URL)
	if err != nil {
		return nil, err
	}

	sub := subscribeRequest{
		Type:       "subscribe",
		ProductIDs: []string{c.cfg.ProductID},
		Channels:   []string{"ticker"},
	}
	if err := conn.WriteJSON(sub); err != nil {
		conn.Close()
		return nil, err
	}

	return conn, nil
}

// Close permanently shuts the connector down. Reconnect attempts stop
// and all subscribers are dropped.
func (c *Connector) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.connected = false
	close(c.done)
	if c.conn != nil {
		c.conn.Close()
	}
	c.mu.Unlock()

	c.subMu.Lock()
	c.subscribers = make(map[int]Listener)
	c.subMu.Unlock()

	c.wg.Wait()
	c.logger.Info().Msg("Feed closed")
}

// CurrentPrice returns the latest price, or 0 if no tick has arrived yet.
func (c *Connector) CurrentPrice() float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.currentPrice
}

// IsConnected returns whether the feed connection is up.
func (c *Connector) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}

// Subscribe registers a listener for every tick and returns a token
// for Unsubscribe.
func (c *Connector) Subscribe(fn Listener) int {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	c.nextSubID++
	id := c.nextSubID
	c.subscribers[id] = fn
	return id
}

// Unsubscribe removes a previously registered listener.
func (c *Connector) Unsubscribe(id int) {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	delete(c.subscribers, id)
}

// History returns a copy of the retained tick window, oldest first.
func (c *Connector) History() []models.PriceTick {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]models.PriceTick, len(c.history))
	copy(out, c.history)
	return out
}

// readLoop consumes messages until the connection fails or the
// connector is closed, then hands off to the reconnect cycle.
func (c *Connector) readLoop(ctx context.Context, conn Conn) {
	defer c.wg.Done()

	for {
		select {
		case <-c.done:
			return
		default:
		}

		_, data, err := conn.ReadMessage()
		if err != nil {
			c.mu.Lock()
			wasConnected := c.connected
			c.connected = false
			closed := c.closed
			c.mu.Unlock()

			if closed {
				return
			}
			if wasConnected {
				c.logger.Warn().Err(err).Msg("Feed connection lost")
			}

			c.wg.Add(1)
			go c.reconnect(ctx)
			return
		}

		c.handleMessage(data)
	}
}

// handleMessage parses one inbound message and, if it is a ticker update
// for the subscribed product, records and delivers the tick.
func (c *Connector) handleMessage(data []byte) {
	var msg tickerMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		c.logger.Debug().Err(err).Msg("Malformed feed message dropped")
		return
	}

	if msg.Type != "ticker" || msg.ProductID != c.cfg.ProductID {
		return
	}

	price, err := strconv.ParseFloat(msg.Price, 64)
	if err != nil || price <= 0 {
		c.logger.Debug().Str("price", msg.Price).Msg("Unparseable tick price dropped")
		return
	}

	tick := models.PriceTick{
		Price:     price,
		Volume:    parseFloatOrZero(msg.LastSize),
		High24h:   parseFloatOrZero(msg.High24h),
		Low24h:    parseFloatOrZero(msg.Low24h),
		Source:    msg.ProductID,
		Timestamp: time.Now(),
	}

	c.mu.Lock()
	c.currentPrice = tick.Price
	c.lastTickAt = tick.Timestamp
	c.history = append(c.history, tick)
	if len(c.history) > c.cfg.HistorySize {
		c.history = c.history[len(c.history)-c.cfg.HistorySize:]
	}
	c.mu.Unlock()

	c.deliver(tick)
}

// deliver invokes every subscriber in registration order. A panicking
// listener must not prevent delivery to the others.
func (c *Connector) deliver(tick models.PriceTick) {
	c.subMu.RLock()
	ids := make([]int, 0, len(c.subscribers))
	for id := range c.subscribers {
		ids = append(ids, id)
	}
	listeners := make(map[int]Listener, len(c.subscribers))
	for id, fn := range c.subscribers {
		listeners[id] = fn
	}
	c.subMu.RUnlock()

	sort.Ints(ids)
	for _, id := range ids {
		c.safeInvoke(id, listeners[id], tick)
	}
}

func (c *Connector) safeInvoke(id int, fn Listener, tick models.PriceTick) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error().
				Int("subscriber", id).
				Interface("panic", r).
				Msg("Tick listener panicked")
		}
	}()
	fn(tick)
}

// reconnect retries the connection with exponential backoff:
// BaseDelay * 2^(attempt-1), up to MaxRetries attempts. After the cap
// the feed stays disconnected until a fresh connector is built.
func (c *Connector) reconnect(ctx context.Context) {
	defer c.wg.Done()

	for attempt := 1; attempt <= c.cfg.MaxRetries; attempt++ {
		delay := utils.CalculateBackoff(attempt, c.cfg.BaseDelay, 0, 2)

		select {
		case <-c.done:
			return
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}

		c.logger.Info().
			Int("attempt", attempt).
			Dur("delay", delay).
			Msg("Reconnecting to feed")

		conn, err := c.open(ctx)
		if err != nil {
			c.logger.Warn().Err(err).Int("attempt", attempt).Msg("Reconnect failed")
			continue
		}

		c.mu.Lock()
		if c.closed {
			c.mu.Unlock()
			conn.Close()
			return
		}
		c.conn = conn
		c.connected = true
		c.lastTickAt = time.Now()
		c.mu.Unlock()

		c.logger.Info().Int("attempt", attempt).Msg("Feed reconnected")

		c.wg.Add(1)
		go c.readLoop(ctx, conn)
		return
	}

	c.logger.Error().
		Int("max_retries", c.cfg.MaxRetries).
		Msg("Feed reconnect attempts exhausted")
}

// watchdog forces a reconnect cycle when the feed is nominally connected
// but no tick has arrived within StaleAfter.
func (c *Connector) watchdog(ctx context.Context) {
	defer c.wg.Done()

	interval := c.cfg.StaleAfter / 4
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.mu.RLock()
			stale := c.connected && time.Since(c.lastTickAt) > c.cfg.StaleAfter
			conn := c.conn
			c.mu.RUnlock()

			if stale && conn != nil {
				c.logger.Warn().
					Dur("stale_after", c.cfg.StaleAfter).
					Msg("Feed stale, forcing reconnect")
				// Closing the socket fails the read loop, which runs
				// the normal reconnect cycle.
				conn.Close()
			}
		}
	}
}

func parseFloatOrZero(s string) float64 {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}
