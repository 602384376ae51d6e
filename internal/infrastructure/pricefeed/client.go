package pricefeed

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Client streams mark prices over a websocket ticker feed and falls back to a
// REST snapshot for the initial price. It implements domain.PriceSource.
//
// Samples arrive per market with non-decreasing timestamps; anything older
// than the last delivered sample for its market is dropped here, before it
// reaches the engine.
type Client struct {
	wsURL   string
	restURL string
	client  *http.Client
	logger  *zap.Logger

	mu         sync.Mutex
	conn       *websocket.Conn
	callbacks  []func(market string, price float64)
	subscribed []string
	lastSeen   map[string]int64 // market -> timestamp (ms) of last delivered sample
}

func NewClient(wsURL, restURL string, logger *zap.Logger) *Client {
	return &Client{
		wsURL:    wsURL,
		restURL:  restURL,
		client:   &http.Client{Timeout: 10 * time.Second},
		logger:   logger,
		lastSeen: make(map[string]int64),
	}
}

// tickerMessage is one sample on the wire. Prices come as strings, the way
// exchange feeds serialize them.
type tickerMessage struct {
	Topic string `json:"topic"`
	Data  struct {
		Market    string `json:"market"`
		Price     string `json:"price"`
		Timestamp int64  `json:"timestamp"`
	} `json:"data"`
}

// OnPriceUpdate registers a callback invoked once per accepted tick.
func (c *Client) OnPriceUpdate(callback func(market string, price float64)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.callbacks = append(c.callbacks, callback)
}

// GetCurrentPrice fetches a one-off mark price over REST.
func (c *Client) GetCurrentPrice(ctx context.Context, market string) (float64, error) {
	endpoint := fmt.Sprintf("%s/price?market=%s", c.restURL, url.QueryEscape(market))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return 0, err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, err
	}
	if resp.StatusCode >= 400 {
		return 0, fmt.Errorf("price API error: %s", string(body))
	}

	var result struct {
		Market string `json:"market"`
		Price  string `json:"price"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return 0, err
	}
	if result.Price == "" {
		return 0, fmt.Errorf("no price for market %s", market)
	}
	return strconv.ParseFloat(result.Price, 64)
}

// Subscribe dials the feed if needed and subscribes to the given markets.
func (c *Client) Subscribe(markets []string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, m := range markets {
		c.subscribed = appendUnique(c.subscribed, m)
	}

	if c.conn == nil {
		conn, _, err := websocket.DefaultDialer.Dial(c.wsURL, nil)
		if err != nil {
			return err
		}
		c.conn = conn
		go c.readLoop(conn)
	}
	return c.sendSubscribe(c.conn, markets)
}

func (c *Client) sendSubscribe(conn *websocket.Conn, markets []string) error {
	if len(markets) == 0 {
		return nil
	}
	args := make([]string, len(markets))
	for i, m := range markets {
		args[i] = "tickers." + m
	}
	return conn.WriteJSON(map[string]interface{}{
		"op":   "subscribe",
		"args": args,
	})
}

func (c *Client) readLoop(conn *websocket.Conn) {
	defer func() {
		conn.Close()
		c.mu.Lock()
		if c.conn == conn {
			c.conn = nil
		}
		c.mu.Unlock()
		c.reconnect()
	}()

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			c.logger.Warn("feed read error", zap.Error(err))
			return
		}

		var msg tickerMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			c.logger.Debug("feed message unmarshal failed", zap.Error(err))
			continue
		}
		if msg.Data.Market == "" || msg.Data.Price == "" {
			continue
		}
		price, err := strconv.ParseFloat(msg.Data.Price, 64)
		if err != nil || price <= 0 {
			continue
		}

		c.mu.Lock()
		if last, ok := c.lastSeen[msg.Data.Market]; ok && msg.Data.Timestamp < last {
			// Superseded tick, drop it.
			c.mu.Unlock()
			continue
		}
		c.lastSeen[msg.Data.Market] = msg.Data.Timestamp
		callbacks := make([]func(string, float64), len(c.callbacks))
		copy(callbacks, c.callbacks)
		c.mu.Unlock()

		for _, cb := range callbacks {
			cb(msg.Data.Market, price)
		}
	}
}

// reconnect redials with backoff and resubscribes to every known market.
func (c *Client) reconnect() {
	backoff := time.Second
	for {
		time.Sleep(backoff)
		if backoff < 30*time.Second {
			backoff *= 2
		}

		c.mu.Lock()
		if c.conn != nil {
			c.mu.Unlock()
			return
		}
		markets := append([]string(nil), c.subscribed...)
		c.mu.Unlock()

		if err := c.Subscribe(markets); err != nil {
			c.logger.Warn("feed reconnect failed", zap.Error(err))
			continue
		}
		c.logger.Info("feed reconnected", zap.Strings("markets", markets))
		return
	}
}

func appendUnique(list []string, v string) []string {
	for _, s := range list {
		if s == v {
			return list
		}
	}
	return append(list, v)
}
