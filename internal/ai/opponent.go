// Package ai implements the scripted opponent of offline matches.
package ai

import (
	"math/rand"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/spellclash/spellclash-go/internal/card"
)

// Board exposes what the opponent may look at.
type Board interface {
	OpponentHand() []card.Card
	OpponentMana() int
}

// Actions are the moves available to the opponent.
type Actions interface {
	PlayOpponentCard(c card.Card) error
	EndAITurn()
}

// Scheduler runs fn on the session's event loop after d. The returned function
// cancels fn if it has not started yet.
type Scheduler interface {
	After(d time.Duration, fn func()) (cancel func())
}

// SchedulerFunc adapts a function to Scheduler.
type SchedulerFunc func(d time.Duration, fn func()) func()

func (f SchedulerFunc) After(d time.Duration, fn func()) func() { return f(d, fn) }

// Options configures an Opponent.
type Options struct {
	Board       Board
	Actions     Actions
	Scheduler   Scheduler
	Rand        *rand.Rand
	ThinkDelay  time.Duration
	ActionDelay time.Duration
	Logger      *zap.Logger
}

// Opponent plays at most one affordable card per turn, chosen uniformly at
// random, and then ends its turn.
type Opponent struct {
	opts   Options
	logger *zap.Logger

	mu      sync.Mutex
	pending func()
	turn    uint64
}

// New creates an opponent. Board, Actions and Rand are required.
func New(opts Options) *Opponent {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Scheduler == nil {
		opts.Scheduler = SchedulerFunc(func(d time.Duration, fn func()) func() {
			t := time.AfterFunc(d, fn)
			return func() { t.Stop() }
		})
	}
	return &Opponent{opts: opts, logger: opts.Logger}
}

// TakeTurn schedules the opponent's move. It returns immediately.
func (o *Opponent) TakeTurn() {
	o.mu.Lock()
	o.turn++
	turn := o.turn
	o.mu.Unlock()

	o.schedule(o.opts.ThinkDelay, func() {
		if !o.current(turn) {
			return
		}
		o.playOne()
		o.schedule(o.opts.ActionDelay, func() {
			if !o.current(turn) {
				return
			}
			o.opts.Actions.EndAITurn()
		})
	})
}

func (o *Opponent) playOne() {
	available := o.opts.Board.OpponentMana()
	var affordable []card.Card
	for _, c := range o.opts.Board.OpponentHand() {
		if c.Cost <= available {
			affordable = append(affordable, c)
		}
	}
	if len(affordable) == 0 {
		o.logger.Debug("opponent has no affordable card", zap.Int("mana", available))
		return
	}

	pick := affordable[o.opts.Rand.Intn(len(affordable))]
	o.logger.Debug("opponent plays card",
		zap.String("card_id", pick.ID),
		zap.String("name", pick.Name),
		zap.Int("cost", pick.Cost),
	)
	if err := o.opts.Actions.PlayOpponentCard(pick); err != nil {
		o.logger.Warn("opponent play refused", zap.String("card_id", pick.ID), zap.Error(err))
	}
}

func (o *Opponent) schedule(d time.Duration, fn func()) {
	cancel := o.opts.Scheduler.After(d, fn)
	o.mu.Lock()
	o.pending = cancel
	o.mu.Unlock()
}

func (o *Opponent) current(turn uint64) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.turn == turn
}

// Cancel abandons a turn in progress. Pending callbacks that already fired are
// ignored when they run.
func (o *Opponent) Cancel() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.turn++
	if o.pending != nil {
		o.pending()
		o.pending = nil
	}
}
