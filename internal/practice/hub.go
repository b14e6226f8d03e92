package practice

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/spellclash/spellclash-go/internal/protocol"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
	sendBuffer     = 256
)

// table is the game logic behind one hub. All calls happen on the hub's
// goroutine, so implementations keep no locks
type table interface {
	join(p *peer)
	leave(p *peer)
	handle(p *peer, env protocol.Envelope)
}

type inbound struct {
	peer *peer
	env  protocol.Envelope
}

// hub serialises every connection event of one endpoint onto a single
// goroutine and hands them to its table
type hub struct {
	name       string
	table      table
	logger     *zap.Logger
	peers      map[*peer]bool
	register   chan *peer
	unregister chan *peer
	inbound    chan inbound
	done       chan struct{}
}

func newHub(name string, t table, logger *zap.Logger) *hub {
	return &hub{
		name:       name,
		table:      t,
		logger:     logger.With(zap.String("hub", name)),
		peers:      make(map[*peer]bool),
		register:   make(chan *peer),
		unregister: make(chan *peer),
		inbound:    make(chan inbound, sendBuffer),
		done:       make(chan struct{}),
	}
}

func (h *hub) run(ctx context.Context) {
	defer func() {
		for p := range h.peers {
			h.drop(p)
		}
		close(h.done)
	}()
	for {
		select {
		case <-ctx.Done():
			return

		case p := <-h.register:
			h.peers[p] = true
			h.logger.Info("client registered", zap.String("remote", p.remote))
			h.table.join(p)

		case p := <-h.unregister:
			if h.peers[p] {
				h.table.leave(p)
				h.drop(p)
				h.logger.Info("client unregistered", zap.String("remote", p.remote))
			}

		case in := <-h.inbound:
			if h.peers[in.peer] {
				h.table.handle(in.peer, in.env)
			}
		}
	}
}

func (h *hub) drop(p *peer) {
	delete(h.peers, p)
	close(p.send)
}

// peer is one WebSocket client of a hub
type peer struct {
	hub    *hub
	conn   *websocket.Conn
	send   chan []byte
	remote string
}

// deliver queues env for the client. A client that cannot keep up loses the frame
func (p *peer) deliver(env protocol.Envelope) {
	b, err := protocol.Encode(env)
	if err != nil {
		p.hub.logger.Error("failed to encode frame", zap.Error(err))
		return
	}
	select {
	case p.send <- b:
	default:
		p.hub.logger.Warn("client send buffer full, dropping frame",
			zap.String("remote", p.remote),
			zap.String("type", string(env.Type)),
		)
	}
}

// deliverData queues an envelope whose data is v
func (p *peer) deliverData(env protocol.Envelope, v any) {
	env, err := env.WithData(v)
	if err != nil {
		p.hub.logger.Error("failed to build frame", zap.Error(err))
		return
	}
	p.deliver(env)
}

func (p *peer) fail(message string) {
	p.deliver(protocol.Envelope{Type: protocol.TypeError, Message: message})
}

func (p *peer) readPump() {
	defer func() {
		select {
		case p.hub.unregister <- p:
		case <-p.hub.done:
		}
		p.conn.Close()
	}()

	p.conn.SetReadLimit(maxMessageSize)
	p.conn.SetReadDeadline(time.Now().Add(pongWait))
	p.conn.SetPongHandler(func(string) error {
		return p.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, message, err := p.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				p.hub.logger.Warn("unexpected close", zap.String("remote", p.remote), zap.Error(err))
			}
			return
		}

		var env protocol.Envelope
		if err := json.Unmarshal(message, &env); err != nil {
			p.hub.logger.Warn("failed to decode frame", zap.String("remote", p.remote), zap.Error(err))
			continue
		}

		select {
		case p.hub.inbound <- inbound{peer: p, env: env}:
		case <-p.hub.done:
			return
		}
	}
}

func (p *peer) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		p.conn.Close()
	}()

	for {
		select {
		case message, ok := <-p.send:
			p.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				p.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := p.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			p.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := p.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
