// Package session owns a match from start to game over. All state mutation
// happens on the controller's event loop; transport callbacks, timers and
// animation completions are posted onto it.
package session

import (
	"context"
	"errors"
	"math/rand"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/spellclash/spellclash-go/internal/ai"
	"github.com/spellclash/spellclash-go/internal/card"
	"github.com/spellclash/spellclash-go/internal/config"
	"github.com/spellclash/spellclash-go/internal/convert"
	"github.com/spellclash/spellclash-go/internal/event"
	"github.com/spellclash/spellclash-go/internal/gameover"
	"github.com/spellclash/spellclash-go/internal/protocol"
	"github.com/spellclash/spellclash-go/internal/state"
	"github.com/spellclash/spellclash-go/internal/transport"
	"github.com/spellclash/spellclash-go/internal/turn"
)

// ErrStopped is returned by commands once Run has returned.
var ErrStopped = errors.New("session controller stopped")

// Conn is an outbound connection to a game server.
type Conn interface {
	Connect(ctx context.Context, url string) error
	Send(ctx context.Context, env protocol.Envelope) error
	Close() error
}

// DialFunc creates an unconnected Conn reporting to h.
type DialFunc func(h transport.Handler) Conn

// Journal records state after every change.
type Journal interface {
	Record(snap state.Snapshot) error
}

// Deps are the collaborators of a Controller. Only Config is required.
type Deps struct {
	Config   *config.Config
	Bus      *event.Bus
	Animator turn.Animator
	Waiter   gameover.AnimationWaiter
	Assets   convert.AssetResolver
	Dial     DialFunc
	Journal  Journal
	Rand     *rand.Rand
	Logger   *zap.Logger
}

// Controller is the outward command surface of the core.
type Controller struct {
	cfg     *config.Config
	bus     *event.Bus
	logger  *zap.Logger
	rng     *rand.Rand
	dial    DialFunc
	journal Journal

	session  *state.Session
	conv     *convert.Converter
	arbiter  *gameover.Arbiter
	proc     *turn.Processor
	opponent *ai.Opponent
	animator turn.Animator

	conn    Conn
	connGen uint64
	screen  event.Screen
	// handles of cards sent to the server, by card id, awaiting confirmation
	pending map[string]turn.Handle

	ops  *opQueue
	done chan struct{}
}

// New wires a controller. Call Run before issuing commands.
func New(deps Deps) *Controller {
	if deps.Config == nil {
		deps.Config = config.Default()
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Bus == nil {
		deps.Bus = event.NewBus()
	}
	if deps.Rand == nil {
		deps.Rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	cfg := deps.Config

	c := &Controller{
		cfg:      cfg,
		bus:      deps.Bus,
		logger:   deps.Logger,
		rng:      deps.Rand,
		dial:     deps.Dial,
		journal:  deps.Journal,
		animator: deps.Animator,
		pending:  make(map[string]turn.Handle),
		ops:      newOpQueue(),
		done:     make(chan struct{}),
	}
	if c.dial == nil {
		opts := transport.OptionsFromConfig(cfg.Transport, deps.Logger.Named("transport"))
		c.dial = func(h transport.Handler) Conn { return transport.NewClient(h, opts) }
	}

	c.conv = convert.NewConverter(deps.Assets, deps.Logger.Named("convert"))
	c.session = state.New(c.conv, deps.Logger.Named("state"))
	c.arbiter = gameover.NewArbiter(gameover.Options{
		PreDelay:         cfg.GameOver.PreDelay,
		AnimationTimeout: cfg.GameOver.AnimationTimeout,
		Waiter:           deps.Waiter,
		Post:             c.post,
		Teardown:         c.closeConn,
		Bus:              c.bus,
		Logger:           deps.Logger.Named("gameover"),
	})
	c.proc = turn.NewProcessor(turn.Options{
		Session:          c.session,
		Rules:            cfg.Rules,
		Rand:             c.rng,
		Animator:         deps.Animator,
		Arbiter:          c.arbiter,
		Bus:              c.bus,
		Post:             c.post,
		AnimationTimeout: cfg.GameOver.AnimationTimeout,
		Logger:           deps.Logger.Named("turn"),
	})
	c.opponent = ai.New(ai.Options{
		Board:       board{c},
		Actions:     board{c},
		Scheduler:   ai.SchedulerFunc(c.after),
		Rand:        c.rng,
		ThinkDelay:  cfg.AI.ThinkDelay,
		ActionDelay: cfg.AI.ActionDelay,
		Logger:      deps.Logger.Named("ai"),
	})
	c.proc.SetOpponent(c.opponent)
	return c
}

// Bus returns the event bus the controller publishes on.
func (c *Controller) Bus() *event.Bus {
	return c.bus
}

// Run processes posted work until ctx is done. It is the only goroutine that
// touches session state.
func (c *Controller) Run(ctx context.Context) error {
	defer func() {
		close(c.done)
		c.opponent.Cancel()
		c.arbiter.Reset()
		c.closeConn()
	}()
	c.logger.Info("session controller started")
	for {
		select {
		case <-ctx.Done():
			c.logger.Info("session controller stopping")
			return ctx.Err()
		case <-c.ops.ready:
			for _, o := range c.ops.take() {
				o.fn()
				if o.notify {
					c.changed()
				}
			}
		}
	}
}

// post queues fn for the loop. It never blocks the caller, which may be the
// loop itself, and work runs in the order it was posted.
func (c *Controller) post(fn func()) {
	select {
	case <-c.done:
		return
	default:
	}
	c.ops.push(op{fn: fn, notify: true})
}

// after runs fn on the loop once d has elapsed, unless the session was reset
// in the meantime. It must be called from the loop.
func (c *Controller) after(d time.Duration, fn func()) func() {
	epoch := c.session.Epoch
	t := time.AfterFunc(d, func() {
		c.post(func() {
			if c.session.Epoch != epoch {
				return
			}
			fn()
		})
	})
	return func() { t.Stop() }
}

// do runs fn on the loop and waits for its result.
func (c *Controller) do(ctx context.Context, notify bool, fn func() error) error {
	res := make(chan error, 1)
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-c.done:
		return ErrStopped
	default:
	}
	c.ops.push(op{fn: func() { res <- fn() }, notify: notify})
	select {
	case err := <-res:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-c.done:
		return ErrStopped
	}
}

func (c *Controller) changed() {
	snap := c.session.Snapshot()
	e := event.New(event.StateChanged, "")
	e.Snapshot = &snap
	c.bus.Publish(e)
	if c.journal == nil {
		return
	}
	if err := c.journal.Record(snap); err != nil {
		c.logger.Warn("failed to journal state", zap.Error(err))
	}
}

// Start resets the session into mode. Offline matches are dealt at once;
// online modes dial the configured endpoint and wait for the server.
func (c *Controller) Start(ctx context.Context, mode state.Mode) error {
	var conn Conn
	err := c.do(ctx, true, func() error {
		c.reset(mode)
		if !mode.Online() {
			c.dealOffline()
			return nil
		}
		c.connGen++
		conn = c.dial(&link{c: c, gen: c.connGen})
		c.conn = conn
		c.proc.SetSender(conn)
		return nil
	})
	if err != nil || conn == nil {
		return err
	}

	url := c.endpoint(mode)
	if err := conn.Connect(ctx, url); err != nil {
		c.logger.Error("failed to connect", zap.String("url", url), zap.Error(err))
		_ = c.do(context.Background(), true, func() error {
			if c.conn == conn {
				c.conn = nil
				c.proc.SetSender(nil)
			}
			e := event.New(event.Disconnected, "Could not connect to server")
			c.bus.Publish(e)
			return nil
		})
		return err
	}
	return nil
}

func (c *Controller) reset(mode state.Mode) {
	c.opponent.Cancel()
	c.arbiter.Reset()
	c.closeConn()
	c.pending = make(map[string]turn.Handle)
	c.screen = ""
	c.session.Reset(mode, c.defaults(mode))
	c.logger.Info("session started",
		zap.Stringer("mode", mode),
		zap.Uint64("epoch", c.session.Epoch),
	)
}

func (c *Controller) dealOffline() {
	gen := card.NewGenerator(c.rng)
	c.session.PlayerDeck = gen.RandomDeck(c.cfg.Rules.DeckSize)
	c.session.OpponentDeck = gen.RandomDeck(c.cfg.Rules.DeckSize)
	c.session.GameStarted = true
	c.proc.DrawOpening(c.cfg.Rules.StartingHand)
	c.setScreen(event.ScreenGame)
}

func (c *Controller) defaults(mode state.Mode) config.ModeDefaults {
	switch mode {
	case state.ModeOnlineSoloAI:
		return c.cfg.Rules.OnlineAI
	case state.ModeOnlineRoom:
		return c.cfg.Rules.Room
	default:
		return c.cfg.Rules.Offline
	}
}

func (c *Controller) endpoint(mode state.Mode) string {
	if mode == state.ModeOnlineRoom {
		return c.cfg.Server.RoomURL
	}
	return c.cfg.Server.AIURL
}

// closeConn drops the current connection. Callbacks still in flight from it
// are ignored.
func (c *Controller) closeConn() {
	if c.conn == nil {
		return
	}
	conn := c.conn
	c.conn = nil
	c.connGen++
	c.proc.SetSender(nil)
	if err := conn.Close(); err != nil {
		c.logger.Warn("error closing connection", zap.Error(err))
	}
}

// Teardown ends the session's connection and any pending AI or game-over work.
func (c *Controller) Teardown(ctx context.Context) error {
	return c.do(ctx, true, func() error {
		c.opponent.Cancel()
		c.arbiter.Reset()
		c.closeConn()
		return nil
	})
}

// EndTurn passes the turn.
func (c *Controller) EndTurn(ctx context.Context) error {
	return c.do(ctx, true, func() error {
		return c.proc.EndTurn(ctx)
	})
}

// PlayCard plays the local card with cardID. handle is forwarded to the
// animator and may be nil.
func (c *Controller) PlayCard(ctx context.Context, cardID string, handle turn.Handle) error {
	return c.do(ctx, true, func() error {
		if err := c.proc.PlayFromHand(ctx, cardID, true, handle); err != nil {
			return err
		}
		if c.session.Mode.Online() && handle != nil {
			c.pending[cardID] = handle
		}
		return nil
	})
}

// Snapshot returns a copy of the current session.
func (c *Controller) Snapshot(ctx context.Context) (state.Snapshot, error) {
	var snap state.Snapshot
	err := c.do(ctx, false, func() error {
		snap = c.session.Snapshot()
		return nil
	})
	return snap, err
}

// Phase returns the game-over arbiter's phase.
func (c *Controller) Phase() gameover.Phase {
	return c.arbiter.Phase()
}

func (c *Controller) setScreen(s event.Screen) {
	if c.screen == s {
		return
	}
	c.screen = s
	e := event.New(event.ScreenChanged, string(s))
	e.Screen = s
	c.bus.Publish(e)
}

// link adapts transport callbacks for one connection onto the loop.
type link struct {
	c   *Controller
	gen uint64
}

func (l *link) OnConnected() {
	l.c.post(func() {
		if l.gen != l.c.connGen {
			return
		}
		l.c.onConnected()
	})
}

func (l *link) OnMessage(raw []byte) {
	l.c.post(func() {
		if l.gen != l.c.connGen {
			return
		}
		l.c.route(raw)
	})
}

func (l *link) OnDisconnected(err error) {
	l.c.post(func() {
		if l.gen != l.c.connGen {
			return
		}
		l.c.onDisconnected(err)
	})
}

func (c *Controller) onConnected() {
	s := c.session
	if s.PlayerID == "" {
		s.PlayerID = "Player" + strconv.Itoa(1000+c.rng.Intn(9000))
		c.logger.Debug("assigned temporary player id", zap.String("player_id", s.PlayerID))
	}
	e := event.New(event.Connected, "Connected to server")
	e.PlayerID = s.PlayerID
	c.bus.Publish(e)
}

func (c *Controller) onDisconnected(err error) {
	c.logger.Warn("disconnected from server", zap.Error(err))
	c.session.LocalTurn = false
	c.conn = nil
	c.proc.SetSender(nil)
	c.bus.Publish(event.New(event.Disconnected, "Disconnected from server"))
}

// board gives the local AI its view of the session and its moves. Every
// method runs on the loop.
type board struct{ c *Controller }

func (b board) OpponentHand() []card.Card { return b.c.session.OpponentHand }

func (b board) OpponentMana() int { return b.c.session.OpponentMana.Current }

func (b board) PlayOpponentCard(cd card.Card) error {
	var handle turn.Handle
	if b.c.animator != nil {
		handle = cd.ID
	}
	return b.c.proc.PlayCard(context.Background(), cd, false, handle)
}

func (b board) EndAITurn() { b.c.proc.EndAITurn() }
