package practice

import (
	"math/rand"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spellclash/spellclash-go/internal/card"
	"github.com/spellclash/spellclash-go/internal/config"
	"github.com/spellclash/spellclash-go/internal/protocol"
)

const roomCapacity = 2

type member struct {
	peer *peer
	seat *seat
	room *room
}

type room struct {
	id      string
	members []*member
	started bool
	over    bool
	winner  string
	current string
}

func (r *room) other(m *member) *member {
	for _, o := range r.members {
		if o != m {
			return o
		}
	}
	return nil
}

func (r *room) roster() map[string]string {
	out := make(map[string]string, len(r.members))
	for _, m := range r.members {
		out[m.seat.id] = m.seat.name
	}
	return out
}

// view is the room as seen by m
func (r *room) view(m *member, message string) protocol.ServerRoomState {
	rs := protocol.ServerRoomState{
		RoomID:          r.id,
		Players:         r.roster(),
		GameStarted:     r.started,
		GameOver:        r.over,
		WinnerID:        r.winner,
		CurrentPlayerID: r.current,
		Message:         message,
		Self:            m.seat.playerState(true),
	}
	if o := r.other(m); o != nil {
		rs.Opponent = o.seat.playerState(false)
	}
	return rs
}

func (r *room) broadcast(message string) {
	for _, m := range r.members {
		m.peer.deliverData(protocol.Envelope{Type: protocol.TypeRoomUpdate, RoomID: r.id}, r.view(m, message))
	}
}

// settle ends the game once a seat is out of health. If both fall at once the
// player who acted wins
func (r *room) settle(actor *member) {
	if r.over {
		return
	}
	opp := r.other(actor)
	switch {
	case opp != nil && opp.seat.health <= 0:
		r.over, r.winner = true, actor.seat.id
	case actor.seat.health <= 0 && opp != nil:
		r.over, r.winner = true, opp.seat.id
	}
	if r.over {
		r.current = ""
	}
}

// roomTable hosts two-player rooms
type roomTable struct {
	rules   config.RulesConfig
	rng     *rand.Rand
	gen     *card.Generator
	logger  *zap.Logger
	newID   func() string
	rooms   map[string]*room
	members map[*peer]*member
}

func newRoomTable(rules config.RulesConfig, rng *rand.Rand, logger *zap.Logger) *roomTable {
	return &roomTable{
		rules:   rules,
		rng:     rng,
		gen:     card.NewGenerator(rng),
		logger:  logger,
		newID:   uuid.NewString,
		rooms:   make(map[string]*room),
		members: make(map[*peer]*member),
	}
}

func (t *roomTable) join(*peer) {}

func (t *roomTable) leave(p *peer) {
	if m, ok := t.members[p]; ok {
		t.depart(m, false)
	}
}

func (t *roomTable) handle(p *peer, env protocol.Envelope) {
	switch env.Type {
	case protocol.TypeCreateRoom:
		t.create(p, env.PlayerID)
	case protocol.TypeJoinRoom:
		t.enter(p, strings.TrimSpace(env.RoomID), env.PlayerID)
	case protocol.TypeLeaveRoom:
		m, ok := t.members[p]
		if !ok {
			p.fail("you are not in a room")
			return
		}
		t.depart(m, true)
	case protocol.TypePlayCard:
		t.playCard(p, env.CardID)
	case protocol.TypeEndTurn:
		t.endTurn(p)
	default:
		p.fail("unsupported message type " + string(env.Type))
	}
}

func (t *roomTable) newMember(p *peer, name string) *member {
	name = strings.TrimSpace(name)
	if name == "" {
		name = "Player"
	}
	d := t.rules.Room
	s := newSeat(t.newID(), name, d.PlayerHealth, d.MaxHealth, d.PlayerMana, d.PlayerMaxMana, t.gen.RandomDeck(t.rules.DeckSize))
	m := &member{peer: p, seat: s}
	t.members[p] = m
	return m
}

func (t *roomTable) create(p *peer, name string) {
	if _, ok := t.members[p]; ok {
		p.fail("you are already in a room")
		return
	}
	r := &room{id: t.newID()}
	m := t.newMember(p, name)
	m.room = r
	r.members = append(r.members, m)
	t.rooms[r.id] = r

	t.logger.Info("room created", zap.String("room_id", r.id), zap.String("player_id", m.seat.id))
	p.deliver(protocol.Envelope{
		Type:     protocol.TypeRoomCreated,
		RoomID:   r.id,
		PlayerID: m.seat.id,
		Message:  "Room created, waiting for an opponent",
	})
	r.broadcast("Waiting for an opponent")
}

func (t *roomTable) enter(p *peer, roomID, name string) {
	if _, ok := t.members[p]; ok {
		p.fail("you are already in a room")
		return
	}
	r, ok := t.rooms[roomID]
	switch {
	case roomID == "":
		p.fail("room id is required")
		return
	case !ok:
		p.fail("room " + roomID + " does not exist")
		return
	case len(r.members) >= roomCapacity || r.started:
		p.fail("room " + roomID + " is full")
		return
	}
	m := t.newMember(p, name)
	m.room = r
	r.members = append(r.members, m)

	t.logger.Info("player joined room", zap.String("room_id", r.id), zap.String("player_id", m.seat.id))
	p.deliver(protocol.Envelope{
		Type:     protocol.TypeRoomJoined,
		RoomID:   r.id,
		PlayerID: m.seat.id,
		Message:  "Joined room",
	})
	if len(r.members) == roomCapacity {
		t.start(r)
		return
	}
	r.broadcast("Waiting for an opponent")
}

func (t *roomTable) start(r *room) {
	for _, m := range r.members {
		m.seat.draw(t.rng, t.rules.StartingHand)
	}
	r.started = true
	r.current = r.members[0].seat.id
	t.logger.Info("room game started", zap.String("room_id", r.id), zap.String("first_player", r.current))
	r.broadcast("Game started")
}

func (t *roomTable) depart(m *member, notify bool) {
	r := m.room
	delete(t.members, m.peer)
	for i, o := range r.members {
		if o == m {
			r.members = append(r.members[:i:i], r.members[i+1:]...)
			break
		}
	}
	t.logger.Info("player left room", zap.String("room_id", r.id), zap.String("player_id", m.seat.id))
	if notify {
		m.peer.deliver(protocol.Envelope{
			Type:     protocol.TypeLeftRoom,
			RoomID:   r.id,
			PlayerID: m.seat.id,
			Message:  "Left room",
		})
	}
	if len(r.members) == 0 {
		delete(t.rooms, r.id)
		return
	}
	if r.started && !r.over {
		r.over = true
		r.winner = r.members[0].seat.id
		r.current = ""
	}
	r.broadcast(m.seat.name + " left the room")
}

// acting returns the member of p if p may act now, otherwise it answers with a
// refused playerAction
func (t *roomTable) acting(p *peer, action protocol.MessageType, cardID string) (*member, bool) {
	refuse := func(msg string) {
		p.deliverData(protocol.Envelope{Type: protocol.TypePlayerAction, CardID: cardID}, protocol.PlayerActionResult{
			Action: string(action), Success: false, CardID: cardID, Message: msg,
		})
	}
	m, ok := t.members[p]
	switch {
	case !ok:
		p.fail("you are not in a room")
		return nil, false
	case !m.room.started:
		refuse("the game has not started")
		return nil, false
	case m.room.over:
		refuse("the game is over")
		return nil, false
	case m.room.current != m.seat.id:
		refuse("it is not your turn")
		return nil, false
	}
	return m, true
}

func (t *roomTable) playCard(p *peer, cardID string) {
	m, ok := t.acting(p, protocol.TypePlayCard, cardID)
	if !ok {
		return
	}
	c, err := m.seat.play(cardID)
	if err != nil {
		p.deliverData(protocol.Envelope{Type: protocol.TypePlayerAction, CardID: cardID}, protocol.PlayerActionResult{
			Action: string(protocol.TypePlayCard), Success: false, CardID: cardID, Message: err.Error(),
		})
		return
	}
	r := m.room
	opp := r.other(m)
	m.seat.resolve(c, opp.seat)
	r.settle(m)

	p.deliverData(protocol.Envelope{Type: protocol.TypePlayerAction, CardID: cardID}, protocol.PlayerActionResult{
		Action: string(protocol.TypePlayCard), Success: true, CardID: cardID,
	})
	opp.peer.deliverData(protocol.Envelope{Type: protocol.TypeOpponentPlayCard, RoomID: r.id}, protocol.OpponentPlayCard{
		Card:       serverCard(c),
		PlayerName: m.seat.name,
	})
	r.broadcast("")
}

func (t *roomTable) endTurn(p *peer) {
	m, ok := t.acting(p, protocol.TypeEndTurn, "")
	if !ok {
		return
	}
	r := m.room
	next := r.other(m)
	next.seat.startTurn(t.rules, t.rng)
	r.current = next.seat.id
	r.broadcast("")
}
