// Package practice is a local game server speaking the duel protocol. It hosts
// matches against a server AI on /ws/ai and two-player rooms on /ws/room
package practice

import (
	"context"
	"encoding/json"
	"math/rand"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/spellclash/spellclash-go/internal/config"
)

// Server routes WebSocket clients to the AI and room hubs
type Server struct {
	logger   *zap.Logger
	router   chi.Router
	upgrader websocket.Upgrader
	ai       *hub
	rooms    *hub

	startOnce sync.Once
}

// Options configures a Server. Rand seeds deck generation and AI choices
type Options struct {
	Rules  config.RulesConfig
	Rand   *rand.Rand
	Logger *zap.Logger
}

// NewServer builds a server. Call Start before serving traffic
func NewServer(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	rng := opts.Rand
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	// each hub goroutine draws from its own source
	aiRng := rand.New(rand.NewSource(rng.Int63()))
	roomRng := rand.New(rand.NewSource(rng.Int63()))

	s := &Server{
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
	s.ai = newHub("ai", newAITable(opts.Rules, aiRng, logger.Named("ai")), logger)
	s.rooms = newHub("room", newRoomTable(opts.Rules, roomRng, logger.Named("room")), logger)
	s.router = s.routes()
	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Get("/ws/ai", func(w http.ResponseWriter, r *http.Request) { s.serveWS(s.ai, w, r) })
	r.Get("/ws/room", func(w http.ResponseWriter, r *http.Request) { s.serveWS(s.rooms, w, r) })
	return r
}

// Handler returns the HTTP handler of the server
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start runs the hubs until ctx is cancelled
func (s *Server) Start(ctx context.Context) {
	s.startOnce.Do(func() {
		go s.ai.run(ctx)
		go s.rooms.run(ctx)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]string{"status": "ok"}); err != nil {
		s.logger.Warn("failed to write health response", zap.Error(err))
	}
}

func (s *Server) serveWS(h *hub, w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", zap.String("hub", h.name), zap.Error(err))
		return
	}

	p := &peer{
		hub:    h,
		conn:   conn,
		send:   make(chan []byte, sendBuffer),
		remote: r.RemoteAddr,
	}
	select {
	case h.register <- p:
	case <-h.done:
		conn.Close()
		return
	}

	go p.writePump()
	go p.readPump()
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down gracefully
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	s.Start(ctx)
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("practice server listening", zap.String("address", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.logger.Info("shutting down practice server")
		return srv.Shutdown(shutdownCtx)
	}
}
