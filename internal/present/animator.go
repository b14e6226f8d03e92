// Package present holds the terminal presentation of a duel: a timed stand-in
// for card animations and a console renderer for events and board snapshots.
package present

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/spellclash/spellclash-go/internal/card"
	"github.com/spellclash/spellclash-go/internal/turn"
)

// Animator pretends every card animation lasts a fixed duration. It also
// reports when no animation is running.
type Animator struct {
	duration time.Duration
	logger   *zap.Logger

	mu      sync.Mutex
	active  int
	waiters []chan struct{}
}

// NewAnimator returns an animator whose plays last d.
func NewAnimator(d time.Duration, logger *zap.Logger) *Animator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Animator{duration: d, logger: logger}
}

// AnimatePlay calls done after the configured duration.
func (a *Animator) AnimatePlay(handle turn.Handle, c card.Card, actingLocal bool, done func()) {
	a.mu.Lock()
	a.active++
	a.mu.Unlock()

	a.logger.Debug("animating card",
		zap.String("card", c.Name),
		zap.Bool("local", actingLocal),
		zap.Any("handle", handle),
	)
	time.AfterFunc(a.duration, func() {
		if done != nil {
			done()
		}
		a.finish()
	})
}

func (a *Animator) finish() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.active--
	if a.active > 0 {
		return
	}
	for _, ch := range a.waiters {
		close(ch)
	}
	a.waiters = nil
}

// Active returns the number of running animations.
func (a *Animator) Active() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.active
}

// WaitIdle blocks until no animation is running or ctx is done.
func (a *Animator) WaitIdle(ctx context.Context) error {
	a.mu.Lock()
	if a.active == 0 {
		a.mu.Unlock()
		return nil
	}
	ch := make(chan struct{})
	a.waiters = append(a.waiters, ch)
	a.mu.Unlock()

	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
