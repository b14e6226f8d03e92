package practice

import (
	"math/rand"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spellclash/spellclash-go/internal/card"
	"github.com/spellclash/spellclash-go/internal/config"
	"github.com/spellclash/spellclash-go/internal/protocol"
)

// Winner values of an AI match
const (
	WinnerPlayer = "Player"
	WinnerAI     = "AI"
)

// aiMatch is one client playing the server AI
type aiMatch struct {
	player     *seat
	ai         *seat
	playerTurn bool
	over       bool
	winner     string
}

// aiTable runs one independent match per connection
type aiTable struct {
	rules   config.RulesConfig
	rng     *rand.Rand
	gen     *card.Generator
	logger  *zap.Logger
	matches map[*peer]*aiMatch
}

func newAITable(rules config.RulesConfig, rng *rand.Rand, logger *zap.Logger) *aiTable {
	return &aiTable{
		rules:   rules,
		rng:     rng,
		gen:     card.NewGenerator(rng),
		logger:  logger,
		matches: make(map[*peer]*aiMatch),
	}
}

func (t *aiTable) join(p *peer) {
	d := t.rules.OnlineAI
	m := &aiMatch{
		player:     newSeat(uuid.NewString(), "Player", d.PlayerHealth, d.MaxHealth, d.PlayerMana, d.PlayerMaxMana, t.gen.RandomDeck(t.rules.DeckSize)),
		ai:         newSeat("ai", "AI", d.OpponentHealth, d.MaxHealth, d.OpponentMana, d.OpponentMaxMana, t.gen.RandomDeck(t.rules.DeckSize)),
		playerTurn: true,
	}
	m.player.draw(t.rng, t.rules.StartingHand)
	m.ai.draw(t.rng, t.rules.StartingHand)
	t.matches[p] = m

	t.logger.Info("ai match started", zap.String("player_id", m.player.id))
	p.deliverData(protocol.Envelope{Type: protocol.TypeGameStart}, m.state())
}

func (t *aiTable) leave(p *peer) {
	delete(t.matches, p)
}

func (t *aiTable) handle(p *peer, env protocol.Envelope) {
	m, ok := t.matches[p]
	if !ok {
		return
	}
	switch env.Type {
	case protocol.TypePlayCard:
		t.playCard(p, m, env.CardID)
	case protocol.TypeEndTurn:
		t.endTurn(p, m)
	default:
		t.logger.Debug("ignoring message", zap.String("type", string(env.Type)))
		p.fail("unsupported message type " + string(env.Type))
	}
}

func (t *aiTable) playCard(p *peer, m *aiMatch, cardID string) {
	refuse := func(msg string) {
		p.deliverData(protocol.Envelope{Type: protocol.TypePlayerAction, CardID: cardID}, protocol.PlayerActionResult{
			Action: string(protocol.TypePlayCard), Success: false, CardID: cardID, Message: msg,
		})
	}
	switch {
	case m.over:
		refuse("the game is over")
		return
	case !m.playerTurn:
		refuse("it is not your turn")
		return
	}
	c, err := m.player.play(cardID)
	if err != nil {
		refuse(err.Error())
		return
	}
	m.player.resolve(c, m.ai)
	m.settle()
	t.logger.Debug("player played card",
		zap.String("card", c.Name),
		zap.Int("player_health", m.player.health),
		zap.Int("ai_health", m.ai.health),
	)

	p.deliverData(protocol.Envelope{Type: protocol.TypePlayerAction, CardID: cardID}, protocol.PlayerActionResult{
		Action: string(protocol.TypePlayCard), Success: true, CardID: cardID,
	})
	p.deliverData(protocol.Envelope{Type: protocol.TypeGameStateUpdate}, m.state())
}

func (t *aiTable) endTurn(p *peer, m *aiMatch) {
	if m.over || !m.playerTurn {
		p.deliverData(protocol.Envelope{Type: protocol.TypePlayerAction}, protocol.PlayerActionResult{
			Action: string(protocol.TypeEndTurn), Success: false, Message: "it is not your turn",
		})
		return
	}
	m.playerTurn = false
	m.ai.startTurn(t.rules, t.rng)
	p.deliverData(protocol.Envelope{Type: protocol.TypeGameStateUpdate}, m.state())

	for !m.over {
		c, ok := t.pick(m.ai)
		if !ok {
			break
		}
		if _, err := m.ai.play(c.ID); err != nil {
			break
		}
		m.ai.resolve(c, m.player)
		m.settle()
		p.deliverData(protocol.Envelope{Type: protocol.TypeAIAction}, protocol.AIAction{
			ActionType: string(protocol.TypePlayCard),
			Card:       serverCard(c),
		})
	}
	if !m.over {
		p.deliverData(protocol.Envelope{Type: protocol.TypeAIAction}, protocol.AIAction{ActionType: string(protocol.TypeEndTurn)})
		m.player.startTurn(t.rules, t.rng)
		m.playerTurn = true
	}
	t.logger.Debug("ai turn finished",
		zap.Int("player_health", m.player.health),
		zap.Int("ai_health", m.ai.health),
		zap.Bool("game_over", m.over),
	)
	p.deliverData(protocol.Envelope{Type: protocol.TypeGameStateUpdate}, m.state())
}

// pick chooses uniformly among the cards s can pay for
func (t *aiTable) pick(s *seat) (card.Card, bool) {
	var affordable []card.Card
	for _, c := range s.hand {
		if s.mana.CanAfford(c.Cost) {
			affordable = append(affordable, c)
		}
	}
	if len(affordable) == 0 {
		return card.Card{}, false
	}
	return affordable[t.rng.Intn(len(affordable))], true
}

// settle ends the match once a side is out of health. A simultaneous knockout
// goes to the AI
func (m *aiMatch) settle() {
	if m.over {
		return
	}
	switch {
	case m.player.health <= 0:
		m.over, m.winner = true, WinnerAI
	case m.ai.health <= 0:
		m.over, m.winner = true, WinnerPlayer
	}
	if m.over {
		m.playerTurn = false
	}
}

func (m *aiMatch) state() protocol.ServerGameState {
	return protocol.ServerGameState{
		PlayerID:      m.player.id,
		MaxHealth:     protocol.IntPtr(m.player.maxHealth),
		PlayerHealth:  protocol.IntPtr(m.player.health),
		PlayerMana:    protocol.IntPtr(m.player.mana.Current),
		PlayerMaxMana: protocol.IntPtr(m.player.mana.Max),
		PlayerHand:    serverCards(m.player.hand),
		PlayerField:   serverCards(m.player.field),
		AIHealth:      protocol.IntPtr(m.ai.health),
		AIMana:        protocol.IntPtr(m.ai.mana.Current),
		AIMaxMana:     protocol.IntPtr(m.ai.mana.Max),
		AIHandCount:   protocol.IntPtr(len(m.ai.hand)),
		AIField:       serverCards(m.ai.field),
		IsPlayerTurn:  protocol.BoolPtr(m.playerTurn),
		GameOver:      m.over,
		Winner:        m.winner,
		GameStarted:   protocol.BoolPtr(true),
	}
}
