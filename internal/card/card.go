package card

import "strings"

// Card is a playable card. Cards are values: once dealt they are never mutated,
// and identity is the ID, not the Go value.
type Card struct {
	ID        string
	Name      string
	Cost      int
	Attack    int
	HealValue int
	Effect    string
	Type      string
	// Asset is an opaque presentation key resolved from the card name, if any.
	Asset string
}

// Kind is the resolved meaning of an effect descriptor.
type Kind int

const (
	KindNone Kind = iota
	KindDeal
	KindHeal
)

func (k Kind) String() string {
	switch k {
	case KindDeal:
		return "DEAL"
	case KindHeal:
		return "HEAL"
	default:
		return "NONE"
	}
}

// EffectKind parses the descriptor. Descriptors form a single-clause language:
// "Deal" takes precedence and compound clauses are not combined.
func EffectKind(effect string) Kind {
	switch {
	case strings.Contains(effect, "Deal"):
		return KindDeal
	case strings.Contains(effect, "Heal"):
		return KindHeal
	default:
		return KindNone
	}
}

// Outcome is a health change produced by resolving a card.
type Outcome struct {
	PlayerDelta   int
	OpponentDelta int
}

// IsZero reports whether the outcome changes nothing.
func (o Outcome) IsZero() bool {
	return o.PlayerDelta == 0 && o.OpponentDelta == 0
}

// Resolve computes the health change of c played by the local player
// (actingLocal) or by the opponent. Damage lands on the non-acting side,
// healing on the acting side.
func Resolve(c Card, actingLocal bool) Outcome {
	switch EffectKind(c.Effect) {
	case KindDeal:
		if actingLocal {
			return Outcome{OpponentDelta: -c.Attack}
		}
		return Outcome{PlayerDelta: -c.Attack}
	case KindHeal:
		if actingLocal {
			return Outcome{PlayerDelta: c.HealValue}
		}
		return Outcome{OpponentDelta: c.HealValue}
	default:
		return Outcome{}
	}
}

// IndexByID returns the position of the card with id in cards, or -1.
func IndexByID(cards []Card, id string) int {
	for i := range cards {
		if cards[i].ID == id {
			return i
		}
	}
	return -1
}

// ContainsID reports whether a card with id is present in cards.
func ContainsID(cards []Card, id string) bool {
	return IndexByID(cards, id) >= 0
}
