package solana

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// WSClientConfig configures WebSocket client behavior.
type WSClientConfig struct {
	// ReconnectDelay is initial delay before reconnect attempt.
	ReconnectDelay time.Duration
	// MaxReconnectDelay is maximum delay between reconnect attempts.
	MaxReconnectDelay time.Duration
	// PingInterval is interval for sending ping frames.
	PingInterval time.Duration
	// ReadTimeout is timeout for reading messages.
	ReadTimeout time.Duration
	// WriteTimeout is timeout for writing messages.
	WriteTimeout time.Duration
	// Buffer is the notification channel capacity.
	Buffer int
	// Commitment for logsSubscribe.
	Commitment string
}

// DefaultWSConfig returns default WebSocket configuration.
func DefaultWSConfig() WSClientConfig {
	return WSClientConfig{
		ReconnectDelay:    1 * time.Second,
		MaxReconnectDelay: 30 * time.Second,
		PingInterval:      30 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      10 * time.Second,
		Buffer:            1024,
		Commitment:        CommitmentConfirmed,
	}
}

// WSClientImpl implements WSClient with one gorilla/websocket connection per
// subscription. A dropped connection is redialed with backoff and the
// subscription re-established; notifications missed in the gap are not
// replayed, so callers pair this with a periodic scan.
type WSClientImpl struct {
	endpoint string
	config   WSClientConfig
	logger   *zap.Logger

	requestID atomic.Uint64
	closed    atomic.Bool
	done      chan struct{}
	wg        sync.WaitGroup

	connsMu sync.Mutex
	conns   map[*websocket.Conn]struct{}
}

var _ WSClient = (*WSClientImpl)(nil)

// NewWSClient creates a WebSocket client. Connections are dialed lazily by
// SubscribeLogs.
func NewWSClient(endpoint string, config *WSClientConfig, logger *zap.Logger) *WSClientImpl {
	cfg := DefaultWSConfig()
	if config != nil {
		cfg = *config
	}
	if cfg.Buffer <= 0 {
		cfg.Buffer = 1
	}
	if cfg.Commitment == "" {
		cfg.Commitment = CommitmentConfirmed
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &WSClientImpl{
		endpoint: endpoint,
		config:   cfg,
		logger:   logger,
		done:     make(chan struct{}),
		conns:    make(map[*websocket.Conn]struct{}),
	}
}

// SubscribeLogs dials, subscribes and returns the notification stream. The
// first subscription must succeed; later failures are retried in the
// background. The channel is closed when ctx ends or Close is called.
func (c *WSClientImpl) SubscribeLogs(ctx context.Context, filter LogsFilter) (<-chan LogNotification, error) {
	if c.closed.Load() {
		return nil, errors.New("client closed")
	}

	conn, err := c.subscribe(ctx, filter)
	if err != nil {
		return nil, err
	}

	out := make(chan LogNotification, c.config.Buffer)
	c.wg.Add(1)
	go c.run(ctx, filter, conn, out)
	return out, nil
}

// Close closes all connections and waits for subscription goroutines.
func (c *WSClientImpl) Close() error {
	if c.closed.Swap(true) {
		return nil
	}
	close(c.done)

	c.connsMu.Lock()
	for conn := range c.conns {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(c.config.WriteTimeout))
		conn.Close()
	}
	c.connsMu.Unlock()

	c.wg.Wait()
	return nil
}

func (c *WSClientImpl) run(ctx context.Context, filter LogsFilter, conn *websocket.Conn, out chan<- LogNotification) {
	defer c.wg.Done()
	defer close(out)

	delay := c.config.ReconnectDelay
	for {
		err := c.pump(ctx, conn, out)
		c.release(conn)

		if c.stopped(ctx) {
			return
		}
		c.logger.Warn("log subscription dropped", zap.Error(err), zap.Duration("retry_in", delay))

		for {
			select {
			case <-ctx.Done():
				return
			case <-c.done:
				return
			case <-time.After(delay):
			}

			delay *= 2
			if delay > c.config.MaxReconnectDelay {
				delay = c.config.MaxReconnectDelay
			}

			conn, err = c.subscribe(ctx, filter)
			if err == nil {
				delay = c.config.ReconnectDelay
				c.logger.Info("log subscription restored")
				break
			}
			if c.stopped(ctx) {
				return
			}
			c.logger.Warn("resubscribe failed", zap.Error(err), zap.Duration("retry_in", delay))
		}
	}
}

func (c *WSClientImpl) stopped(ctx context.Context) bool {
	return c.closed.Load() || ctx.Err() != nil
}

// subscribe dials and waits for the logsSubscribe confirmation.
func (c *WSClientImpl) subscribe(ctx context.Context, filter LogsFilter) (*websocket.Conn, error) {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, c.endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("websocket dial: %w", err)
	}

	mentions := map[string]interface{}{"all": nil}
	if len(filter.Mentions) > 0 {
		mentions = map[string]interface{}{"mentions": filter.Mentions}
	}

	req := wsRequest{
		JSONRPC: "2.0",
		ID:      c.requestID.Add(1),
		Method:  "logsSubscribe",
		Params: []interface{}{
			mentions,
			map[string]string{"commitment": c.config.Commitment},
		},
	}

	conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
	if err := conn.WriteJSON(req); err != nil {
		conn.Close()
		return nil, fmt.Errorf("write subscribe: %w", err)
	}

	conn.SetReadDeadline(time.Now().Add(c.config.ReadTimeout))
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			conn.Close()
			return nil, fmt.Errorf("read subscribe response: %w", err)
		}

		var resp wsResponse
		if err := json.Unmarshal(msg, &resp); err != nil || resp.ID != req.ID {
			continue
		}
		if resp.Error != nil {
			conn.Close()
			return nil, resp.Error
		}
		break
	}

	c.connsMu.Lock()
	if c.closed.Load() {
		c.connsMu.Unlock()
		conn.Close()
		return nil, errors.New("client closed")
	}
	c.conns[conn] = struct{}{}
	c.connsMu.Unlock()

	return conn, nil
}

func (c *WSClientImpl) release(conn *websocket.Conn) {
	c.connsMu.Lock()
	delete(c.conns, conn)
	c.connsMu.Unlock()
	conn.Close()
}

// pump forwards notifications until the connection fails or the caller stops.
func (c *WSClientImpl) pump(ctx context.Context, conn *websocket.Conn, out chan<- LogNotification) error {
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(c.config.ReadTimeout))
	})

	stopPing := make(chan struct{})
	defer close(stopPing)
	go func() {
		ticker := time.NewTicker(c.config.PingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-stopPing:
				return
			case <-ticker.C:
				_ = conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.config.WriteTimeout))
			}
		}
	}()

	// Unblock ReadMessage when the caller goes away.
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-stopPing:
		}
	}()

	for {
		conn.SetReadDeadline(time.Now().Add(c.config.ReadTimeout))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return err
		}

		var notif wsNotification
		if err := json.Unmarshal(msg, &notif); err != nil || notif.Method != "logsNotification" || notif.Params == nil {
			continue
		}

		value := notif.Params.Result.Value
		n := LogNotification{
			Signature: value.Signature,
			Logs:      value.Logs,
			Err:       value.Err,
		}
		if notif.Params.Result.Context != nil {
			n.Slot = notif.Params.Result.Context.Slot
		}

		// Block rather than drop; the buffer absorbs bursts.
		select {
		case out <- n:
		case <-ctx.Done():
			return ctx.Err()
		case <-c.done:
			return nil
		}
	}
}

// WebSocket message types

type wsRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      uint64        `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params,omitempty"`
}

type wsResponse struct {
	JSONRPC string    `json:"jsonrpc"`
	ID      uint64    `json:"id"`
	Result  int64     `json:"result"` // subscription ID
	Error   *RPCError `json:"error,omitempty"`
}

type wsNotification struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  *struct {
		Subscription int64 `json:"subscription"`
		Result       struct {
			Context *struct {
				Slot int64 `json:"slot"`
			} `json:"context"`
			Value struct {
				Signature string      `json:"signature"`
				Logs      []string    `json:"logs"`
				Err       interface{} `json:"err"`
			} `json:"value"`
		} `json:"result"`
	} `json:"params"`
}
