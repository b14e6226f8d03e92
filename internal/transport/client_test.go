package transport

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/spellclash/spellclash-go/internal/protocol"
)

type recordingHandler struct {
	mu           sync.Mutex
	connected    int
	messages     [][]byte
	disconnected []error
}

func (h *recordingHandler) OnConnected() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.connected++
}

func (h *recordingHandler) OnMessage(raw []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.messages = append(h.messages, raw)
}

func (h *recordingHandler) OnDisconnected(err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.disconnected = append(h.disconnected, err)
}

func (h *recordingHandler) counts() (int, int, int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.connected, len(h.messages), len(h.disconnected)
}

var upgrader = websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}

// echoServer answers every frame with a gameStateUpdate carrying the request type
// in the message field. A frame "bye" makes the server hang up.
func echoServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			_, raw, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var env protocol.Envelope
			if err := json.Unmarshal(raw, &env); err != nil {
				return
			}
			if env.Type == "bye" {
				return
			}
			reply, _ := protocol.Encode(protocol.Envelope{Type: protocol.TypeGameStateUpdate, Message: string(env.Type)})
			if err := conn.WriteMessage(websocket.TextMessage, reply); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func newClient(t *testing.T, h Handler) *Client {
	t.Helper()
	return NewClient(h, Options{
		DialTimeout:    time.Second,
		MaxRetries:     1,
		RetryBaseDelay: 10 * time.Millisecond,
		WriteRate:      1000,
		WriteBurst:     10,
		Logger:         zaptest.NewLogger(t),
	})
}

func TestRoundTrip(t *testing.T) {
	srv := echoServer(t)
	h := &recordingHandler{}
	c := newClient(t, h)
	defer c.Close()

	require.NoError(t, c.Connect(context.Background(), wsURL(srv)))
	assert.True(t, c.Connected())

	require.NoError(t, c.Send(context.Background(), protocol.EndTurn("", "p1")))
	require.Eventually(t, func() bool {
		_, n, _ := h.counts()
		return n == 1
	}, 2*time.Second, 5*time.Millisecond)

	h.mu.Lock()
	msg, err := protocol.Decode(h.messages[0])
	h.mu.Unlock()
	require.NoError(t, err)
	assert.Equal(t, protocol.TypeGameStateUpdate, msg.MessageType())

	connected, _, disconnected := h.counts()
	assert.Equal(t, 1, connected)
	assert.Zero(t, disconnected)
}

func TestSendBeforeConnect(t *testing.T) {
	c := newClient(t, &recordingHandler{})
	err := c.Send(context.Background(), protocol.EndTurn("", "p1"))
	assert.True(t, errors.Is(err, ErrNotConnected))
}

func TestSendRejectsEmptyType(t *testing.T) {
	c := newClient(t, &recordingHandler{})
	assert.Error(t, c.Send(context.Background(), protocol.Envelope{}))
}

func TestServerHangupReportedOnce(t *testing.T) {
	srv := echoServer(t)
	h := &recordingHandler{}
	c := newClient(t, h)

	require.NoError(t, c.Connect(context.Background(), wsURL(srv)))
	require.NoError(t, c.Send(context.Background(), protocol.Envelope{Type: "bye"}))

	require.Eventually(t, func() bool {
		_, _, n := h.counts()
		return n == 1
	}, 2*time.Second, 5*time.Millisecond)
	assert.False(t, c.Connected())

	err := c.Send(context.Background(), protocol.EndTurn("", "p1"))
	assert.True(t, errors.Is(err, ErrClosed))

	require.NoError(t, c.Close())
	time.Sleep(20 * time.Millisecond)
	_, _, n := h.counts()
	assert.Equal(t, 1, n)
}

func TestCloseIsIdempotentAndSilent(t *testing.T) {
	srv := echoServer(t)
	h := &recordingHandler{}
	c := newClient(t, h)
	require.NoError(t, c.Connect(context.Background(), wsURL(srv)))

	assert.NoError(t, c.Close())
	assert.NoError(t, c.Close())
	time.Sleep(50 * time.Millisecond)

	_, _, n := h.counts()
	assert.Zero(t, n, "an intentional close is not a disconnect")
	assert.True(t, errors.Is(c.Connect(context.Background(), wsURL(srv)), ErrClosed))
}

func TestConnectRetriesThenFails(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	c := newClient(t, &recordingHandler{})
	start := time.Now()
	err := c.Connect(context.Background(), wsURL(srv))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "after 2 attempts")
	assert.GreaterOrEqual(t, time.Since(start), 10*time.Millisecond)
}

func TestConnectHonoursContext(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	c := NewClient(&recordingHandler{}, Options{MaxRetries: 5, RetryBaseDelay: time.Hour})
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := c.Connect(ctx, wsURL(srv))
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}
