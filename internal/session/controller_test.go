package session

import (
	"context"
	"encoding/json"
	"errors"
	"math/rand"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/spellclash/spellclash-go/internal/card"
	"github.com/spellclash/spellclash-go/internal/config"
	"github.com/spellclash/spellclash-go/internal/event"
	"github.com/spellclash/spellclash-go/internal/gameover"
	"github.com/spellclash/spellclash-go/internal/protocol"
	"github.com/spellclash/spellclash-go/internal/state"
	"github.com/spellclash/spellclash-go/internal/transport"
	"github.com/spellclash/spellclash-go/internal/turn"
)

type fakeConn struct {
	mu         sync.Mutex
	h          transport.Handler
	url        string
	sent       []protocol.Envelope
	closed     int
	connectErr error
}

func (f *fakeConn) Connect(ctx context.Context, url string) error {
	if f.connectErr != nil {
		return f.connectErr
	}
	f.mu.Lock()
	f.url = url
	f.mu.Unlock()
	f.h.OnConnected()
	return nil
}

func (f *fakeConn) Send(ctx context.Context, env protocol.Envelope) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, env)
	return nil
}

func (f *fakeConn) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed++
	return nil
}

func (f *fakeConn) sentTypes() []protocol.MessageType {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]protocol.MessageType, 0, len(f.sent))
	for _, e := range f.sent {
		out = append(out, e.Type)
	}
	return out
}

func (f *fakeConn) closeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// push delivers a server frame through the transport callback path.
func (f *fakeConn) push(t *testing.T, env protocol.Envelope, data any) {
	t.Helper()
	if data != nil {
		var err error
		env, err = env.WithData(data)
		require.NoError(t, err)
	}
	raw, err := protocol.Encode(env)
	require.NoError(t, err)
	f.h.OnMessage(raw)
}

type events struct {
	mu  sync.Mutex
	all []event.Event
}

func (e *events) record(ev event.Event) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.all = append(e.all, ev)
}

func (e *events) of(t event.Type) []event.Event {
	e.mu.Lock()
	defer e.mu.Unlock()
	var out []event.Event
	for _, ev := range e.all {
		if ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}

type recordingJournal struct {
	mu    sync.Mutex
	snaps []state.Snapshot
}

func (j *recordingJournal) Record(s state.Snapshot) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.snaps = append(j.snaps, s)
	return nil
}

type mockAnimator struct{ mock.Mock }

func (m *mockAnimator) AnimatePlay(handle turn.Handle, c card.Card, actingLocal bool, done func()) {
	m.Called(handle, c.ID, actingLocal)
	done()
}

type harness struct {
	c       *Controller
	conn    *fakeConn
	events  *events
	journal *recordingJournal
	ctx     context.Context
}

func newHarness(t *testing.T, mutate func(*config.Config, *Deps)) *harness {
	t.Helper()
	cfg := config.Default()
	cfg.AI.ThinkDelay = 0
	cfg.AI.ActionDelay = 0
	cfg.GameOver.PreDelay = 0
	cfg.GameOver.AnimationTimeout = time.Second

	h := &harness{conn: &fakeConn{}, events: &events{}, journal: &recordingJournal{}}
	deps := Deps{
		Config: cfg,
		Dial: func(th transport.Handler) Conn {
			h.conn.h = th
			return h.conn
		},
		Journal: h.journal,
		Rand:    rand.New(rand.NewSource(42)),
		Logger:  zaptest.NewLogger(t),
	}
	if mutate != nil {
		mutate(cfg, &deps)
	}
	h.c = New(deps)
	h.c.Bus().Subscribe(h.events.record)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = h.c.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	h.ctx = ctx
	return h
}

func (h *harness) snap(t *testing.T) state.Snapshot {
	t.Helper()
	s, err := h.c.Snapshot(h.ctx)
	require.NoError(t, err)
	return s
}

// edit mutates the session on the loop, for arranging test positions.
func (h *harness) edit(t *testing.T, fn func(s *state.Session)) {
	t.Helper()
	require.NoError(t, h.c.do(h.ctx, true, func() error {
		fn(h.c.session)
		return nil
	}))
}

func TestStartOfflineDealsOpeningHands(t *testing.T) {
	h := newHarness(t, nil)
	require.NoError(t, h.c.Start(h.ctx, state.ModeOfflineSolo))

	s := h.snap(t)
	assert.Len(t, s.PlayerHand, 5)
	assert.Len(t, s.OpponentHand, 5)
	assert.Equal(t, 5, s.OpponentHandCount)
	assert.Equal(t, 25, s.PlayerDeckSize)
	assert.Equal(t, 25, s.OpponentDeckSize)
	assert.True(t, s.LocalTurn)
	assert.True(t, s.GameStarted)

	screens := h.events.of(event.ScreenChanged)
	require.NotEmpty(t, screens)
	assert.Equal(t, event.ScreenGame, screens[len(screens)-1].Screen)
	assert.NotEmpty(t, h.journal.snaps)
}

func TestOfflineDealThreeScenario(t *testing.T) {
	h := newHarness(t, nil)
	require.NoError(t, h.c.Start(h.ctx, state.ModeOfflineSolo))
	h.edit(t, func(s *state.Session) {
		s.OpponentHealth = 30
		s.PlayerHand = append(s.PlayerHand, card.Card{ID: "bolt", Name: "Fireball", Cost: 0, Attack: 3, Effect: "Deal 3 damage"})
	})

	require.NoError(t, h.c.PlayCard(h.ctx, "bolt", nil))

	s := h.snap(t)
	assert.Equal(t, 27, s.OpponentHealth)
	assert.False(t, card.ContainsID(s.PlayerHand, "bolt"))
	assert.True(t, card.ContainsID(s.PlayerField, "bolt"))
	assert.Len(t, h.events.of(event.CardPlayed), 1)
}

func TestOfflineUnknownCardRejected(t *testing.T) {
	h := newHarness(t, nil)
	require.NoError(t, h.c.Start(h.ctx, state.ModeOfflineSolo))

	err := h.c.PlayCard(h.ctx, "missing", nil)
	assert.True(t, turn.IsReason(err, turn.ReasonCardNotInHand))
	assert.Len(t, h.events.of(event.CommandRejected), 1)
}

func TestOfflineTurnReturnsAfterAI(t *testing.T) {
	h := newHarness(t, nil)
	require.NoError(t, h.c.Start(h.ctx, state.ModeOfflineSolo))

	require.NoError(t, h.c.EndTurn(h.ctx))
	require.Eventually(t, func() bool {
		s, err := h.c.Snapshot(h.ctx)
		return err == nil && s.LocalTurn
	}, 2*time.Second, 5*time.Millisecond)

	s := h.snap(t)
	assert.Equal(t, 2, s.OpponentMaxMana)
	assert.Len(t, s.PlayerHand, 6)
	assert.Equal(t, 24, s.PlayerDeckSize)
	assert.Equal(t, 24, s.OpponentDeckSize)
	assert.Len(t, h.events.of(event.TurnStarted), 1)
}

func TestRestartDropsPendingAITurn(t *testing.T) {
	h := newHarness(t, func(cfg *config.Config, _ *Deps) {
		cfg.AI.ThinkDelay = 50 * time.Millisecond
	})
	require.NoError(t, h.c.Start(h.ctx, state.ModeOfflineSolo))
	require.NoError(t, h.c.EndTurn(h.ctx))
	require.NoError(t, h.c.Start(h.ctx, state.ModeOfflineSolo))

	time.Sleep(120 * time.Millisecond)
	s := h.snap(t)
	assert.True(t, s.LocalTurn)
	assert.Len(t, s.PlayerHand, 5, "stale AI turn must not hand the player an extra card")
}

func TestOnlineAIFlow(t *testing.T) {
	h := newHarness(t, nil)
	require.NoError(t, h.c.Start(h.ctx, state.ModeOnlineSoloAI))

	s := h.snap(t)
	assert.Regexp(t, regexp.MustCompile(`^Player\d{4}$`), s.PlayerID)
	assert.Equal(t, "ws://localhost:8080/ws/ai", h.conn.url)
	require.Len(t, h.events.of(event.Connected), 1)

	h.conn.push(t, protocol.Envelope{Type: protocol.TypeGameStart}, protocol.ServerGameState{
		PlayerHealth:  protocol.IntPtr(30),
		PlayerMana:    protocol.IntPtr(1),
		PlayerMaxMana: protocol.IntPtr(1),
		PlayerHand:    []*protocol.ServerCard{{ID: "c1", Name: "Spark", Cost: 1, Attack: 2, Effect: "Deal 2 damage"}},
		PlayerField:   []*protocol.ServerCard{},
		AIHealth:      protocol.IntPtr(30),
		AIHandCount:   protocol.IntPtr(5),
		AIField:       []*protocol.ServerCard{},
		IsPlayerTurn:  protocol.BoolPtr(true),
	})

	before := h.snap(t)
	require.Len(t, before.PlayerHand, 1)
	assert.Equal(t, 5, before.OpponentHandCount)
	assert.True(t, before.GameStarted)

	require.NoError(t, h.c.PlayCard(h.ctx, "c1", nil))
	require.NoError(t, h.c.EndTurn(h.ctx))
	assert.Equal(t, []protocol.MessageType{protocol.TypePlayCard, protocol.TypeEndTurn}, h.conn.sentTypes())

	after := h.snap(t)
	assert.Equal(t, before.PlayerHand, after.PlayerHand, "online play must not mutate locally")
	assert.Equal(t, before.PlayerMana, after.PlayerMana)
	assert.True(t, after.LocalTurn, "end turn waits for the server to flip ownership")

	h.conn.push(t, protocol.Envelope{Type: protocol.TypeGameStateUpdate}, protocol.ServerGameState{
		PlayerHealth: protocol.IntPtr(17),
		IsPlayerTurn: protocol.BoolPtr(false),
	})
	s = h.snap(t)
	assert.Equal(t, 17, s.PlayerHealth)
	assert.False(t, s.LocalTurn)
	assert.Len(t, s.PlayerHand, 1, "absent lists keep their contents")
}

func TestInboundFramesApplyInArrivalOrder(t *testing.T) {
	h := newHarness(t, nil)
	require.NoError(t, h.c.Start(h.ctx, state.ModeOnlineSoloAI))
	h.conn.push(t, protocol.Envelope{Type: protocol.TypeGameStart}, protocol.ServerGameState{
		PlayerHealth: protocol.IntPtr(1),
		AIHealth:     protocol.IntPtr(30),
		IsPlayerTurn: protocol.BoolPtr(true),
	})
	h.snap(t)

	h.journal.mu.Lock()
	mark := len(h.journal.snaps)
	h.journal.mu.Unlock()

	// hold the loop so frames pile up behind it
	release := make(chan struct{})
	h.c.post(func() { <-release })
	const frames = 600
	for i := 1; i <= frames; i++ {
		h.conn.push(t, protocol.Envelope{Type: protocol.TypeGameStateUpdate}, protocol.ServerGameState{
			PlayerHealth: protocol.IntPtr(i),
		})
	}
	close(release)

	assert.Equal(t, frames, h.snap(t).PlayerHealth)

	h.journal.mu.Lock()
	defer h.journal.mu.Unlock()
	var healths []int
	for _, s := range h.journal.snaps[mark:] {
		healths = append(healths, s.PlayerHealth)
	}
	require.NotEmpty(t, healths)
	for i := 1; i < len(healths); i++ {
		if healths[i] < healths[i-1] {
			t.Fatalf("snapshot %d went back from health %d to %d", i, healths[i-1], healths[i])
		}
	}
}

func TestServerGameOverFinalizesAndTearsDown(t *testing.T) {
	h := newHarness(t, nil)
	require.NoError(t, h.c.Start(h.ctx, state.ModeOnlineSoloAI))

	h.conn.push(t, protocol.Envelope{Type: protocol.TypeGameStateUpdate}, protocol.ServerGameState{
		AIHealth: protocol.IntPtr(0),
		GameOver: true,
		Winner:   gameover.AIWinnerSentinel,
	})
	require.Eventually(t, func() bool { return h.c.Phase() == gameover.PhaseFinalized }, 2*time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool { return len(h.events.of(event.GameOver)) == 1 }, time.Second, 5*time.Millisecond)

	over := h.events.of(event.GameOver)[0]
	assert.True(t, over.Won)
	assert.Equal(t, gameover.MessageWin, over.Message)
	assert.Equal(t, 1, h.conn.closeCount())

	err := h.c.EndTurn(h.ctx)
	assert.True(t, turn.IsReason(err, turn.ReasonGameFrozen))
}

func TestCorrectiveSnapshotResetsArbiter(t *testing.T) {
	h := newHarness(t, func(cfg *config.Config, _ *Deps) {
		cfg.GameOver.PreDelay = time.Hour
	})
	require.NoError(t, h.c.Start(h.ctx, state.ModeOnlineSoloAI))

	h.conn.push(t, protocol.Envelope{Type: protocol.TypeGameStateUpdate}, protocol.ServerGameState{GameOver: true, Winner: "AI"})
	h.snap(t)
	assert.Equal(t, gameover.PhaseSequencing, h.c.Phase())

	h.conn.push(t, protocol.Envelope{Type: protocol.TypeGameStateUpdate}, protocol.ServerGameState{GameOver: false})
	h.snap(t)
	assert.Equal(t, gameover.PhaseIdle, h.c.Phase())
	assert.Len(t, h.events.of(event.GameOverReset), 1)
	assert.Empty(t, h.events.of(event.GameOver))
}

func TestDisconnectForcesRemoteTurn(t *testing.T) {
	h := newHarness(t, nil)
	require.NoError(t, h.c.Start(h.ctx, state.ModeOnlineSoloAI))
	h.conn.push(t, protocol.Envelope{Type: protocol.TypeGameStart}, protocol.ServerGameState{IsPlayerTurn: protocol.BoolPtr(true)})
	require.True(t, h.snap(t).LocalTurn)

	h.conn.h.OnDisconnected(errors.New("connection reset"))
	assert.False(t, h.snap(t).LocalTurn)
	require.Len(t, h.events.of(event.Disconnected), 1)

	err := h.c.PlayCard(h.ctx, "anything", nil)
	assert.Error(t, err)
	h.edit(t, func(s *state.Session) { s.LocalTurn = true })
	err = h.c.EndTurn(h.ctx)
	assert.True(t, turn.IsReason(err, turn.ReasonNotConnected))
}

func TestConnectFailureReported(t *testing.T) {
	h := newHarness(t, nil)
	h.conn.connectErr = errors.New("refused")

	err := h.c.Start(h.ctx, state.ModeOnlineRoom)
	require.Error(t, err)
	h.snap(t)
	assert.Len(t, h.events.of(event.Disconnected), 1)

	err = h.c.CreateRoom(h.ctx, "alice")
	assert.True(t, turn.IsReason(err, turn.ReasonNotConnected))
}

func TestUnknownAndMalformedMessagesIgnored(t *testing.T) {
	h := newHarness(t, nil)
	require.NoError(t, h.c.Start(h.ctx, state.ModeOnlineSoloAI))
	before := h.snap(t)

	h.conn.push(t, protocol.Envelope{Type: "chat", Message: "hi"}, nil)
	h.conn.h.OnMessage([]byte("{not json"))
	h.conn.h.OnMessage([]byte(`{"type":"gameStateUpdate","data":[1,2]}`))

	after := h.snap(t)
	before.Epoch, after.Epoch = 0, 0
	assert.Equal(t, before, after)
}

func TestRemotePlaysAreAnimatedNotApplied(t *testing.T) {
	animator := &mockAnimator{}
	animator.On("AnimatePlay", nil, "ai-1", false).Once()
	animator.On("AnimatePlay", nil, "opp-1", false).Once()
	h := newHarness(t, func(_ *config.Config, d *Deps) { d.Animator = animator })
	require.NoError(t, h.c.Start(h.ctx, state.ModeOnlineSoloAI))
	before := h.snap(t)

	h.conn.push(t, protocol.Envelope{Type: protocol.TypeAIAction}, protocol.AIAction{
		ActionType: "playCard",
		Card:       &protocol.ServerCard{ID: "ai-1", Name: "Bolt", Attack: 4, Effect: "Deal 4 damage"},
	})
	h.conn.push(t, protocol.Envelope{Type: protocol.TypeOpponentPlayCard}, protocol.OpponentPlayCard{
		Card:       &protocol.ServerCard{ID: "opp-1", Name: "Mend", Value: 2, Effect: "Heal 2 health"},
		PlayerName: "bob",
	})
	h.conn.push(t, protocol.Envelope{Type: protocol.TypeAIAction}, protocol.AIAction{ActionType: "endTurn"})

	after := h.snap(t)
	assert.Equal(t, before.PlayerHealth, after.PlayerHealth)
	assert.Equal(t, before.OpponentHealth, after.OpponentHealth)

	remote := h.events.of(event.RemoteCardPlayed)
	require.Len(t, remote, 2)
	assert.Equal(t, "AI played Bolt", remote[0].Message)
	assert.Equal(t, "bob played Mend", remote[1].Message)
	animator.AssertExpectations(t)
}

func TestPlayerActionConfirmsWithPendingHandle(t *testing.T) {
	animator := &mockAnimator{}
	animator.On("AnimatePlay", "slot-3", "c1", true).Once()
	h := newHarness(t, func(_ *config.Config, d *Deps) { d.Animator = animator })
	require.NoError(t, h.c.Start(h.ctx, state.ModeOnlineSoloAI))
	h.conn.push(t, protocol.Envelope{Type: protocol.TypeGameStart}, protocol.ServerGameState{
		PlayerMana:    protocol.IntPtr(3),
		PlayerMaxMana: protocol.IntPtr(3),
		PlayerHand:    []*protocol.ServerCard{{ID: "c1", Name: "Spark", Cost: 1}},
		IsPlayerTurn:  protocol.BoolPtr(true),
	})

	require.NoError(t, h.c.PlayCard(h.ctx, "c1", "slot-3"))
	h.conn.push(t, protocol.Envelope{Type: protocol.TypePlayerAction, CardID: "c1"}, protocol.PlayerActionResult{Action: "playCard", Success: true})
	h.conn.push(t, protocol.Envelope{Type: protocol.TypePlayerAction}, protocol.PlayerActionResult{Action: "playCard", CardID: "c9", Success: false, Message: "Not enough mana"})
	h.snap(t)

	confirmed := h.events.of(event.CardConfirmed)
	require.Len(t, confirmed, 1)
	assert.Equal(t, "Spark", confirmed[0].Card.Name)
	rejected := h.events.of(event.CommandRejected)
	require.Len(t, rejected, 1)
	assert.Equal(t, "Not enough mana", rejected[0].Message)
	animator.AssertExpectations(t)
}

func TestRoomLifecycle(t *testing.T) {
	h := newHarness(t, nil)
	require.NoError(t, h.c.Start(h.ctx, state.ModeOnlineRoom))
	assert.Equal(t, "ws://localhost:8080/ws/room", h.conn.url)

	require.NoError(t, h.c.CreateRoom(h.ctx, "alice"))
	h.conn.push(t, protocol.Envelope{Type: protocol.TypeRoomCreated, RoomID: "r-1", PlayerID: "p-alice", Message: "Room created"}, nil)

	s := h.snap(t)
	assert.True(t, s.InRoom)
	assert.Equal(t, "r-1", s.RoomID)
	assert.Equal(t, "p-alice", s.PlayerID)
	require.Len(t, h.events.of(event.RoomCreated), 1)
	assert.Equal(t, "Room created", h.events.of(event.RoomCreated)[0].Message)

	h.conn.push(t, protocol.Envelope{Type: protocol.TypeRoomUpdate}, protocol.ServerRoomState{
		RoomID:          "r-1",
		Players:         map[string]string{"p-alice": "alice", "p-bob": "bob"},
		GameStarted:     true,
		CurrentPlayerID: "p-alice",
		Self:            &protocol.ServerPlayerState{PlayerID: "p-alice", Health: 30, Mana: 1, MaxMana: 1, Hand: []*protocol.ServerCard{{ID: "h1", Name: "Spark", Cost: 1}}},
		Opponent:        &protocol.ServerPlayerState{PlayerID: "p-bob", Health: 30, Mana: 1, MaxMana: 1, HandCount: 5},
	})
	s = h.snap(t)
	assert.True(t, s.LocalTurn)
	assert.Equal(t, "p-bob", s.OpponentID)
	assert.Equal(t, 5, s.OpponentHandCount)
	screens := h.events.of(event.ScreenChanged)
	require.NotEmpty(t, screens)
	assert.Equal(t, event.ScreenGame, screens[len(screens)-1].Screen)

	require.NoError(t, h.c.PlayCard(h.ctx, "h1", nil))
	require.NoError(t, h.c.EndTurn(h.ctx))
	require.NoError(t, h.c.LeaveRoom(h.ctx))
	h.conn.mu.Lock()
	sent := append([]protocol.Envelope(nil), h.conn.sent...)
	h.conn.mu.Unlock()
	require.Len(t, sent, 4)
	assert.Equal(t, protocol.CreateRoom("alice"), sent[0])
	assert.Equal(t, protocol.PlayCard("h1", "r-1", "p-alice"), sent[1])
	assert.Equal(t, protocol.EndTurn("r-1", "p-alice"), sent[2])
	assert.Equal(t, protocol.LeaveRoom("r-1", "p-alice"), sent[3])

	h.conn.push(t, protocol.Envelope{Type: protocol.TypeLeftRoom, RoomID: "r-1", Message: "Left room"}, nil)
	s = h.snap(t)
	assert.False(t, s.InRoom)
	assert.Empty(t, s.RoomID)
	assert.Empty(t, s.OpponentID)
	screens = h.events.of(event.ScreenChanged)
	assert.Equal(t, event.ScreenLobby, screens[len(screens)-1].Screen)
}

func TestRoomCommandValidation(t *testing.T) {
	h := newHarness(t, nil)
	require.NoError(t, h.c.Start(h.ctx, state.ModeOnlineRoom))

	for _, id := range []string{"", "   ", "\t"} {
		err := h.c.JoinRoom(h.ctx, id, "bob")
		assert.True(t, turn.IsReason(err, turn.ReasonInvalidRoom), "id %q", id)
	}
	assert.True(t, turn.IsReason(h.c.LeaveRoom(h.ctx), turn.ReasonNotInRoom))
	assert.Empty(t, h.conn.sentTypes())

	require.NoError(t, h.c.JoinRoom(h.ctx, "  r-9 ", "bob"))
	assert.Equal(t, []protocol.MessageType{protocol.TypeJoinRoom}, h.conn.sentTypes())
	h.conn.mu.Lock()
	assert.Equal(t, "r-9", h.conn.sent[0].RoomID)
	h.conn.mu.Unlock()

	h.conn.push(t, protocol.Envelope{Type: protocol.TypeError, Message: "Room not found"}, nil)
	h.snap(t)
	errs := h.events.of(event.ServerError)
	require.Len(t, errs, 1)
	assert.Equal(t, "Room not found", errs[0].Message)
}

func TestRoomCommandsNeedRoomMode(t *testing.T) {
	h := newHarness(t, nil)
	require.NoError(t, h.c.Start(h.ctx, state.ModeOnlineSoloAI))

	err := h.c.CreateRoom(h.ctx, "alice")
	assert.True(t, turn.IsReason(err, turn.ReasonWrongMode))
	assert.Empty(t, h.conn.sentTypes())
}

func TestRoomUpdateLobbyAndRoomGameOver(t *testing.T) {
	h := newHarness(t, nil)
	require.NoError(t, h.c.Start(h.ctx, state.ModeOnlineRoom))
	h.conn.push(t, protocol.Envelope{Type: protocol.TypeRoomJoined, RoomID: "r-2", PlayerID: "p-bob"}, nil)

	h.conn.push(t, protocol.Envelope{Type: protocol.TypeRoomUpdate}, protocol.ServerRoomState{
		RoomID:  "r-2",
		Players: map[string]string{"p-bob": "bob"},
		Message: "Waiting for opponent",
		Self:    &protocol.ServerPlayerState{PlayerID: "p-bob", Health: 30},
	})
	h.snap(t)
	screens := h.events.of(event.ScreenChanged)
	assert.Equal(t, event.ScreenLobby, screens[len(screens)-1].Screen)
	require.Len(t, h.events.of(event.RoomStatus), 1)

	h.conn.push(t, protocol.Envelope{Type: protocol.TypeRoomUpdate}, protocol.ServerRoomState{
		RoomID:      "r-2",
		GameStarted: true,
		GameOver:    true,
		WinnerID:    "p-bob",
		Self:        &protocol.ServerPlayerState{PlayerID: "p-bob", Health: 12},
	})
	require.Eventually(t, func() bool { return len(h.events.of(event.GameOver)) == 1 }, 2*time.Second, 5*time.Millisecond)
	assert.True(t, h.events.of(event.GameOver)[0].Won)
}

func TestCommandsAfterStopFail(t *testing.T) {
	cfg := config.Default()
	c := New(Deps{Config: cfg, Logger: zaptest.NewLogger(t)})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error)
	go func() { done <- c.Run(ctx) }()
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)

	err := c.EndTurn(context.Background())
	assert.ErrorIs(t, err, ErrStopped)
}

func TestEnvelopeDataForRoomResponsesIsOptional(t *testing.T) {
	h := newHarness(t, nil)
	require.NoError(t, h.c.Start(h.ctx, state.ModeOnlineRoom))

	raw, err := json.Marshal(map[string]any{"type": "roomJoined", "roomId": "r-3", "data": map[string]string{"message": "Joined room"}})
	require.NoError(t, err)
	h.conn.h.OnMessage(raw)

	s := h.snap(t)
	assert.Equal(t, "r-3", s.RoomID)
	joined := h.events.of(event.RoomJoined)
	require.Len(t, joined, 1)
	assert.Equal(t, "Joined room", joined[0].Message)
}
