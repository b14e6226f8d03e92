package gameover

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/spellclash/spellclash-go/internal/event"
	"github.com/spellclash/spellclash-go/internal/state"
)

const (
	MessageWin     = "You Win!"
	MessageLose    = "You Lose!"
	MessageGeneric = "Game over"

	// AIWinnerSentinel is the winner string the AI server uses for the human player.
	AIWinnerSentinel = "Player"
)

// Phase is the arbiter's position in the game-over sequence.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseSequencing
	PhaseFinalized
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "IDLE"
	case PhaseSequencing:
		return "SEQUENCING"
	case PhaseFinalized:
		return "FINALIZED"
	default:
		return "UNKNOWN"
	}
}

// Outcome is the result reported when a match ends.
type Outcome struct {
	Won     bool
	Winner  string
	Message string
}

// AnimationWaiter blocks until no animation is in flight or ctx is done.
type AnimationWaiter interface {
	WaitIdle(ctx context.Context) error
}

// Options configures an Arbiter.
type Options struct {
	PreDelay         time.Duration
	AnimationTimeout time.Duration
	Waiter           AnimationWaiter
	// Post runs fn on the goroutine that owns the session. Finalization is
	// always delivered through it.
	Post func(fn func())
	// Teardown closes the transport once an online match is finalized.
	Teardown func()
	Bus      *event.Bus
	Logger   *zap.Logger
}

// Arbiter detects the end of a match exactly once and drives the game-over sequence.
type Arbiter struct {
	opts   Options
	logger *zap.Logger

	mu      sync.Mutex
	phase   Phase
	frozen  bool
	seq     uint64
	cancel  context.CancelFunc
	outcome Outcome
}

// NewArbiter creates an idle arbiter.
func NewArbiter(opts Options) *Arbiter {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Post == nil {
		opts.Post = func(fn func()) { fn() }
	}
	return &Arbiter{opts: opts, logger: opts.Logger}
}

// SetTeardown replaces the transport teardown hook.
func (a *Arbiter) SetTeardown(fn func()) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.opts.Teardown = fn
}

// Phase returns the current phase.
func (a *Arbiter) Phase() Phase {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.phase
}

// Frozen reports whether game progression is paused by a finalized game over.
func (a *Arbiter) Frozen() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.frozen
}

// Outcome returns the last triggered outcome.
func (a *Arbiter) Outcome() Outcome {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.outcome
}

// CheckLocal inspects an offline snapshot and starts the sequence when either
// side has run out of health.
func (a *Arbiter) CheckLocal(snap state.Snapshot) bool {
	switch {
	case snap.PlayerDefeated():
		return a.Trigger(Outcome{Won: false, Winner: snap.OpponentID, Message: MessageLose}, false)
	case snap.OpponentDefeated():
		return a.Trigger(Outcome{Won: true, Winner: snap.PlayerID, Message: MessageWin}, false)
	default:
		return false
	}
}

// ProcessServerState handles the gameOver flag of a gameStart or gameStateUpdate.
// A snapshot that says the game is not over cancels any running sequence.
func (a *Arbiter) ProcessServerState(gameOver bool, winner string, mode state.Mode, localID string) bool {
	if !gameOver {
		a.Reset()
		return false
	}
	won := localID != "" && winner == localID
	if mode == state.ModeOnlineSoloAI && winner == AIWinnerSentinel {
		won = true
	}
	return a.Trigger(outcomeFor(winner, won), mode.Online())
}

// ProcessRoomState handles the gameOver flag of a roomUpdate.
func (a *Arbiter) ProcessRoomState(gameOver bool, winnerID, localID string) bool {
	if !gameOver {
		a.Reset()
		return false
	}
	won := localID != "" && winnerID == localID
	return a.Trigger(outcomeFor(winnerID, won), true)
}

func outcomeFor(winner string, won bool) Outcome {
	switch {
	case winner == "":
		return Outcome{Message: MessageGeneric}
	case won:
		return Outcome{Won: true, Winner: winner, Message: MessageWin}
	default:
		return Outcome{Winner: winner, Message: MessageLose}
	}
}

// Trigger starts the sequence. It returns false when a sequence is already
// running or finalized.
func (a *Arbiter) Trigger(outcome Outcome, online bool) bool {
	a.mu.Lock()
	if a.phase != PhaseIdle {
		a.mu.Unlock()
		a.logger.Debug("game over already in progress, ignoring trigger",
			zap.String("message", outcome.Message),
		)
		return false
	}
	a.phase = PhaseSequencing
	a.outcome = outcome
	a.seq++
	seq := a.seq
	ctx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel
	a.mu.Unlock()

	a.logger.Info("game over detected",
		zap.Bool("won", outcome.Won),
		zap.String("winner", outcome.Winner),
		zap.Bool("online", online),
	)
	go a.sequence(ctx, seq, outcome, online)
	return true
}

func (a *Arbiter) sequence(ctx context.Context, seq uint64, outcome Outcome, online bool) {
	if a.opts.PreDelay > 0 {
		timer := time.NewTimer(a.opts.PreDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}

	if a.opts.Waiter != nil {
		timeout := a.opts.AnimationTimeout
		if timeout <= 0 {
			timeout = 7 * time.Second
		}
		waitCtx, cancel := context.WithTimeout(ctx, timeout)
		err := a.opts.Waiter.WaitIdle(waitCtx)
		cancel()
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			a.logger.Warn("animations still running after timeout, finalizing anyway",
				zap.Duration("timeout", timeout),
			)
		}
	}

	if ctx.Err() != nil {
		return
	}
	a.opts.Post(func() { a.finalize(seq, outcome, online) })
}

func (a *Arbiter) finalize(seq uint64, outcome Outcome, online bool) {
	a.mu.Lock()
	if a.phase != PhaseSequencing || a.seq != seq {
		a.mu.Unlock()
		return
	}
	a.phase = PhaseFinalized
	a.frozen = true
	teardown := a.opts.Teardown
	a.mu.Unlock()

	a.logger.Info("game over finalized",
		zap.Bool("won", outcome.Won),
		zap.String("message", outcome.Message),
	)
	if a.opts.Bus != nil {
		e := event.New(event.GameOver, outcome.Message)
		e.Won = outcome.Won
		e.PlayerID = outcome.Winner
		a.opts.Bus.Publish(e)
	}
	if online && teardown != nil {
		teardown()
	}
}

// Reset abandons a running or finished sequence and unfreezes the game.
func (a *Arbiter) Reset() {
	a.mu.Lock()
	if a.phase == PhaseIdle && !a.frozen {
		a.mu.Unlock()
		return
	}
	if a.cancel != nil {
		a.cancel()
		a.cancel = nil
	}
	previous := a.phase
	a.phase = PhaseIdle
	a.frozen = false
	a.outcome = Outcome{}
	a.seq++
	a.mu.Unlock()

	a.logger.Info("game over state reset", zap.Stringer("previous_phase", previous))
	if a.opts.Bus != nil {
		a.opts.Bus.Publish(event.New(event.GameOverReset, ""))
	}
}
