// Package transport carries protocol envelopes over a WebSocket connection.
package transport

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/spellclash/spellclash-go/internal/config"
	"github.com/spellclash/spellclash-go/internal/protocol"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Maximum message size accepted from the server.
	maxMessageSize = 1 << 20
)

var (
	// ErrNotConnected is returned by Send before Connect has succeeded.
	ErrNotConnected = errors.New("transport: not connected")
	// ErrClosed is returned by Send and Connect after Close.
	ErrClosed = errors.New("transport: closed")
	// ErrSendBufferFull is returned when the write pump cannot keep up.
	ErrSendBufferFull = errors.New("transport: send buffer full")
)

// Handler receives connection callbacks. Callbacks run on the client's read
// goroutine and must hand work off rather than block.
type Handler interface {
	OnConnected()
	OnMessage(raw []byte)
	OnDisconnected(err error)
}

// Options tunes a Client.
type Options struct {
	DialTimeout    time.Duration
	MaxRetries     int
	RetryBaseDelay time.Duration
	WriteRate      float64
	WriteBurst     int
	PingPeriod     time.Duration
	SendBuffer     int
	Header         http.Header
	Logger         *zap.Logger
}

// OptionsFromConfig maps the transport section of the configuration.
func OptionsFromConfig(cfg config.TransportConfig, logger *zap.Logger) Options {
	return Options{
		DialTimeout:    cfg.DialTimeout,
		MaxRetries:     cfg.MaxRetries,
		RetryBaseDelay: cfg.RetryBaseDelay,
		WriteRate:      cfg.WriteRate,
		WriteBurst:     cfg.WriteBurst,
		PingPeriod:     cfg.PingPeriod,
		SendBuffer:     cfg.SendBuffer,
		Logger:         logger,
	}
}

// Client is a single-use WebSocket connection to a game server. A dropped
// connection is reported once through Handler.OnDisconnected and never
// re-established; callers create a new Client to reconnect.
type Client struct {
	opts    Options
	handler Handler
	logger  *zap.Logger
	dialer  *websocket.Dialer
	limiter *rate.Limiter

	mu     sync.RWMutex
	conn   *websocket.Conn
	url    string
	closed bool

	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
	dropOnce  sync.Once
}

// NewClient creates an unconnected client.
func NewClient(handler Handler, opts Options) *Client {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.DialTimeout <= 0 {
		opts.DialTimeout = 10 * time.Second
	}
	if opts.RetryBaseDelay <= 0 {
		opts.RetryBaseDelay = 500 * time.Millisecond
	}
	if opts.WriteRate <= 0 {
		opts.WriteRate = 20
	}
	if opts.WriteBurst <= 0 {
		opts.WriteBurst = 5
	}
	if opts.PingPeriod <= 0 {
		opts.PingPeriod = 30 * time.Second
	}
	if opts.SendBuffer <= 0 {
		opts.SendBuffer = 64
	}
	return &Client{
		opts:    opts,
		handler: handler,
		logger:  opts.Logger,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: opts.DialTimeout,
		},
		limiter: rate.NewLimiter(rate.Limit(opts.WriteRate), opts.WriteBurst),
		send:    make(chan []byte, opts.SendBuffer),
		done:    make(chan struct{}),
	}
}

// Connect dials url, retrying with exponential backoff up to MaxRetries extra
// attempts. On success the read and write pumps are started and
// Handler.OnConnected is called.
func (c *Client) Connect(ctx context.Context, url string) error {
	c.mu.RLock()
	closed, connected := c.closed, c.conn != nil
	c.mu.RUnlock()
	if closed {
		return ErrClosed
	}
	if connected {
		return fmt.Errorf("transport: already connected to %s", c.url)
	}

	var (
		conn *websocket.Conn
		err  error
	)
	delay := c.opts.RetryBaseDelay
	for attempt := 0; attempt <= c.opts.MaxRetries; attempt++ {
		if attempt > 0 {
			c.logger.Warn("dial failed, retrying",
				zap.String("url", url),
				zap.Int("attempt", attempt),
				zap.Duration("backoff", delay),
				zap.Error(err),
			)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-c.done:
				return ErrClosed
			case <-time.After(delay):
			}
			delay *= 2
		}

		dialCtx, cancel := context.WithTimeout(ctx, c.opts.DialTimeout)
		conn, _, err = c.dialer.DialContext(dialCtx, url, c.opts.Header)
		cancel()
		if err == nil {
			break
		}
	}
	if err != nil {
		return fmt.Errorf("failed to connect to %s after %d attempts: %w", url, c.opts.MaxRetries+1, err)
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		_ = conn.Close()
		return ErrClosed
	}
	c.conn = conn
	c.url = url
	c.mu.Unlock()

	c.logger.Info("connected", zap.String("url", url))
	if c.handler != nil {
		c.handler.OnConnected()
	}
	go c.writePump(conn)
	go c.readPump(conn)
	return nil
}

// Connected reports whether the connection is up.
func (c *Client) Connected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.conn != nil && !c.closed
}

// Send encodes env and queues it for the write pump. It waits for the rate
// limiter but never for the network.
func (c *Client) Send(ctx context.Context, env protocol.Envelope) error {
	raw, err := protocol.Encode(env)
	if err != nil {
		return err
	}
	return c.SendRaw(ctx, raw)
}

// SendRaw queues an already encoded frame.
func (c *Client) SendRaw(ctx context.Context, raw []byte) error {
	c.mu.RLock()
	closed, connected := c.closed, c.conn != nil
	c.mu.RUnlock()
	if closed {
		return ErrClosed
	}
	if !connected {
		return ErrNotConnected
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("send rate limit: %w", err)
	}
	select {
	case c.send <- raw:
		return nil
	case <-c.done:
		return ErrClosed
	default:
		return ErrSendBufferFull
	}
}

// Close shuts the connection down. It is safe to call more than once and
// does not trigger Handler.OnDisconnected.
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		conn, url := c.conn, c.url
		c.mu.Unlock()
		close(c.done)

		if conn == nil {
			return
		}
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		err = multierr.Append(err, conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait)))
		err = multierr.Append(err, conn.Close())
		if errors.Is(err, websocket.ErrCloseSent) {
			err = nil
		}
		c.logger.Info("connection closed", zap.String("url", url))
	})
	return err
}

func (c *Client) readPump(conn *websocket.Conn) {
	pongWait := c.opts.PingPeriod * 10 / 9
	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			c.drop(conn, err)
			return
		}
		if c.handler != nil {
			c.handler.OnMessage(raw)
		}
	}
}

func (c *Client) writePump(conn *websocket.Conn) {
	ticker := time.NewTicker(c.opts.PingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case raw := <-c.send:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, raw); err != nil {
				c.drop(conn, fmt.Errorf("write failed: %w", err))
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.drop(conn, fmt.Errorf("ping failed: %w", err))
				return
			}
		}
	}
}

// drop tears down a connection that failed underneath us and reports it once.
func (c *Client) drop(conn *websocket.Conn, cause error) {
	c.mu.Lock()
	intentional := c.closed
	c.closed = true
	c.mu.Unlock()
	if intentional {
		return
	}

	c.dropOnce.Do(func() {
		c.closeOnce.Do(func() { close(c.done) })
		_ = conn.Close()

		if websocket.IsUnexpectedCloseError(cause, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
			c.logger.Warn("connection lost", zap.String("url", c.url), zap.Error(cause))
		} else {
			c.logger.Info("server closed connection", zap.String("url", c.url), zap.Error(cause))
		}
		if c.handler != nil {
			c.handler.OnDisconnected(cause)
		}
	})
}
