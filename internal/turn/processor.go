package turn

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/spellclash/spellclash-go/internal/card"
	"github.com/spellclash/spellclash-go/internal/config"
	"github.com/spellclash/spellclash-go/internal/event"
	"github.com/spellclash/spellclash-go/internal/protocol"
	"github.com/spellclash/spellclash-go/internal/state"
)

// Handle is an opaque presentation reference for a card being played. The
// processor only passes it through to the Animator.
type Handle any

// Sender delivers one request to the server.
type Sender interface {
	Send(ctx context.Context, env protocol.Envelope) error
}

// Animator plays the card animation for handle and calls done once it has
// finished. done may be called from any goroutine.
type Animator interface {
	AnimatePlay(handle Handle, c card.Card, actingLocal bool, done func())
}

// Arbiter is the part of the game-over arbiter the processor needs.
type Arbiter interface {
	CheckLocal(snap state.Snapshot) bool
	Frozen() bool
}

// OpponentTurn runs the local AI's turn. It must eventually call EndAITurn.
type OpponentTurn interface {
	TakeTurn()
}

// OpponentTurnFunc adapts a plain function to OpponentTurn.
type OpponentTurnFunc func()

func (f OpponentTurnFunc) TakeTurn() { f() }

// Options wires a Processor.
type Options struct {
	Session  *state.Session
	Rules    config.RulesConfig
	Rand     *rand.Rand
	Sender   Sender
	Animator Animator
	Arbiter  Arbiter
	Bus      *event.Bus
	// Post runs fn on the goroutine that owns Session.
	Post func(fn func())
	// AnimationTimeout bounds the wait for an animation before its effect is applied.
	AnimationTimeout time.Duration
	Logger           *zap.Logger
}

// Processor validates and executes player commands against the session.
type Processor struct {
	session  *state.Session
	rules    config.RulesConfig
	rng      *rand.Rand
	sender   Sender
	animator Animator
	arbiter  Arbiter
	ai       OpponentTurn
	bus      *event.Bus
	post     func(fn func())
	timeout  time.Duration
	logger   *zap.Logger
}

// NewProcessor creates a processor. Session, Rand and Arbiter are required.
func NewProcessor(opts Options) *Processor {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Post == nil {
		opts.Post = func(fn func()) { fn() }
	}
	if opts.AnimationTimeout <= 0 {
		opts.AnimationTimeout = 7 * time.Second
	}
	if opts.Bus == nil {
		opts.Bus = event.NewBus()
	}
	return &Processor{
		session:  opts.Session,
		rules:    opts.Rules,
		rng:      opts.Rand,
		sender:   opts.Sender,
		animator: opts.Animator,
		arbiter:  opts.Arbiter,
		bus:      opts.Bus,
		post:     opts.Post,
		timeout:  opts.AnimationTimeout,
		logger:   opts.Logger,
	}
}

// SetOpponent installs the local AI invoked after an offline end of turn.
func (p *Processor) SetOpponent(ai OpponentTurn) {
	p.ai = ai
}

// SetSender replaces the outbound channel, e.g. after (re)connecting.
func (p *Processor) SetSender(sender Sender) {
	p.sender = sender
}

// EndTurn passes the turn. Offline the opponent is granted mana and a card and
// the AI runs. Online a request is sent and the turn flag is left for the
// server's next snapshot to flip.
func (p *Processor) EndTurn(ctx context.Context) error {
	s := p.session
	if p.arbiter.Frozen() {
		return p.reject(Reject(ReasonGameFrozen, "game is over"))
	}
	if s.Mode.Online() {
		return p.send(ctx, protocol.EndTurn(p.roomID(), s.PlayerID))
	}

	if !s.LocalTurn {
		return p.reject(Reject(ReasonNotYourTurn, "cannot end the opponent's turn"))
	}
	s.LocalTurn = false
	s.OpponentMana.Grow(p.rules.ManaGrowth, p.rules.ManaCap)
	p.logger.Debug("player turn ended",
		zap.Int("opponent_mana", s.OpponentMana.Current),
		zap.Int("opponent_max_mana", s.OpponentMana.Max),
	)
	p.bus.Publish(event.New(event.TurnEnded, ""))

	p.draw(state.SideOpponent, 1)
	if p.ai != nil && !p.arbiter.Frozen() {
		p.ai.TakeTurn()
	}
	return nil
}

// EndAITurn hands the turn back to the local player after the offline AI has
// moved. Calls outside the opponent's turn are ignored, so ownership returns
// exactly once per AI turn.
func (p *Processor) EndAITurn() {
	s := p.session
	if s.Mode.Online() {
		p.logger.Warn("ignoring AI turn end in online mode", zap.Stringer("mode", s.Mode))
		return
	}
	if s.LocalTurn {
		p.logger.Warn("ignoring AI turn end during the local turn")
		return
	}
	if p.arbiter.Frozen() {
		return
	}
	s.LocalTurn = true
	s.PlayerMana.Gain(p.rules.ManaRegen)
	p.bus.Publish(event.New(event.TurnStarted, ""))
	p.draw(state.SideLocal, 1)
}

// PlayCard plays c for the acting side.
//
// Offline the card leaves the hand and its cost is paid at once. With a
// handle the effect is applied when the animation reports completion (or the
// animation timeout expires); without one it is applied immediately. Online a
// request is sent and nothing local changes until the server answers.
func (p *Processor) PlayCard(ctx context.Context, c card.Card, actingLocal bool, handle Handle) error {
	s := p.session
	side := state.SideOpponent
	if actingLocal {
		side = state.SideLocal
	}

	if p.arbiter.Frozen() {
		return p.reject(Reject(ReasonGameFrozen, "game is over"))
	}
	if !s.IsTurnOf(side) {
		return p.reject(Reject(ReasonNotYourTurn, "%s cannot play during the other side's turn", side))
	}
	// the hand copy is authoritative; c may be stale
	held, inHand := s.FindInHand(side, c.ID)
	if inHand {
		c = held
	} else if !s.Mode.Online() {
		return p.reject(Reject(ReasonCardNotInHand, "%s", c.ID))
	}
	if !s.Mana(side).CanAfford(c.Cost) {
		return p.reject(Reject(ReasonInsufficientMana, "%s costs %d, %d available", c.Name, c.Cost, s.Mana(side).Current))
	}

	if s.Mode.Online() {
		if !actingLocal {
			return fmt.Errorf("opponent cards are played by the server")
		}
		return p.send(ctx, protocol.PlayCard(c.ID, p.roomID(), s.PlayerID))
	}

	if !s.Mana(side).Spend(c.Cost) {
		return p.reject(Reject(ReasonInsufficientMana, "%s costs %d, %d available", c.Name, c.Cost, s.Mana(side).Current))
	}
	played, err := s.RemoveFromHand(side, c.ID)
	if err != nil {
		s.Mana(side).Gain(c.Cost)
		return p.reject(Reject(ReasonCardNotInHand, "%s", c.ID))
	}
	s.AddToField(side, played)

	p.logger.Info("card played",
		zap.String("card_id", played.ID),
		zap.String("name", played.Name),
		zap.Int("cost", played.Cost),
		zap.Stringer("side", side),
	)
	p.bus.Publish(event.New(event.CardPlayed, played.Effect).WithCard(played, actingLocal))

	if handle == nil || p.animator == nil {
		p.resolve(played, actingLocal)
		return nil
	}

	epoch := s.Epoch
	var once sync.Once
	finish := func() {
		once.Do(func() {
			p.post(func() {
				if s.Epoch != epoch {
					p.logger.Debug("dropping card effect from a previous session", zap.String("card_id", played.ID))
					return
				}
				p.resolve(played, actingLocal)
			})
		})
	}
	timer := time.AfterFunc(p.timeout, func() {
		p.logger.Warn("card animation timed out, applying effect", zap.String("card_id", played.ID))
		finish()
	})
	p.animator.AnimatePlay(handle, played, actingLocal, func() {
		timer.Stop()
		finish()
	})
	return nil
}

// PlayFromHand looks id up in the acting side's hand and plays it.
func (p *Processor) PlayFromHand(ctx context.Context, id string, actingLocal bool, handle Handle) error {
	side := state.SideOpponent
	if actingLocal {
		side = state.SideLocal
	}
	c, ok := p.session.FindInHand(side, id)
	if !ok {
		return p.reject(Reject(ReasonCardNotInHand, "%s", id))
	}
	return p.PlayCard(ctx, c, actingLocal, handle)
}

// Reject records a refused command and returns it as an error.
func (p *Processor) Reject(reason Reason, format string, args ...any) error {
	return p.reject(Reject(reason, format, args...))
}

func (p *Processor) resolve(c card.Card, actingLocal bool) {
	outcome := card.Resolve(c, actingLocal)
	p.session.ApplyOutcome(outcome)
	p.logger.Debug("card effect applied",
		zap.String("card_id", c.ID),
		zap.Int("player_delta", outcome.PlayerDelta),
		zap.Int("opponent_delta", outcome.OpponentDelta),
	)
	p.arbiter.CheckLocal(p.session.Snapshot())
}

// draw deals n cards to side. An empty deck ends the drawing and asks the
// arbiter whether the match is over.
func (p *Processor) draw(side state.Side, n int) {
	for i := 0; i < n; i++ {
		c, err := p.session.DrawOne(side, p.rng)
		if errors.Is(err, state.ErrDeckExhausted) {
			p.logger.Warn("deck exhausted", zap.Stringer("side", side))
			p.arbiter.CheckLocal(p.session.Snapshot())
			return
		}
		if side == state.SideLocal {
			p.bus.Publish(event.New(event.CardDrawn, "").WithCard(c, true))
		} else {
			p.bus.Publish(event.New(event.CardDrawn, "").WithCard(card.Card{ID: c.ID}, false))
		}
	}
}

// DrawOpening deals the opening hands of an offline match.
func (p *Processor) DrawOpening(n int) {
	p.draw(state.SideLocal, n)
	p.draw(state.SideOpponent, n)
}

func (p *Processor) roomID() string {
	if p.session.Mode == state.ModeOnlineRoom && p.session.InRoom {
		return p.session.RoomID
	}
	return ""
}

func (p *Processor) send(ctx context.Context, env protocol.Envelope) error {
	if p.sender == nil {
		return p.reject(Reject(ReasonNotConnected, "no server connection"))
	}
	if err := p.sender.Send(ctx, env); err != nil {
		return fmt.Errorf("failed to send %s: %w", env.Type, err)
	}
	p.logger.Debug("request sent", zap.String("type", string(env.Type)))
	return nil
}

func (p *Processor) reject(r *Rejection) error {
	p.logger.Warn("command rejected",
		zap.Stringer("reason", r.Reason),
		zap.String("detail", r.Detail),
	)
	e := event.New(event.CommandRejected, r.Detail)
	e.Reason = r.Reason.String()
	p.bus.Publish(e)
	return r
}
