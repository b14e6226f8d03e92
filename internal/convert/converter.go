package convert

import (
	"go.uber.org/zap"

	"github.com/spellclash/spellclash-go/internal/card"
	"github.com/spellclash/spellclash-go/internal/protocol"
)

// AssetResolver looks up a presentation asset by card name.
type AssetResolver interface {
	Resolve(name string) (string, bool)
}

// AssetMap is a static name to asset table.
type AssetMap map[string]string

// Resolve implements AssetResolver.
func (m AssetMap) Resolve(name string) (string, bool) {
	asset, ok := m[name]
	return asset, ok
}

// Converter maps wire cards to internal cards.
type Converter struct {
	assets AssetResolver
	logger *zap.Logger
}

// NewConverter creates a converter. assets may be nil.
func NewConverter(assets AssetResolver, logger *zap.Logger) *Converter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Converter{assets: assets, logger: logger}
}

// Card converts one wire card. ok is false for cards that cannot be used.
func (c *Converter) Card(sc *protocol.ServerCard) (card.Card, bool) {
	if sc == nil {
		return card.Card{}, false
	}
	if sc.ID == "" {
		c.logger.Error("dropping server card without id",
			zap.String("name", sc.Name),
		)
		return card.Card{}, false
	}
	if sc.Name == "" {
		c.logger.Warn("server card has no name", zap.String("card_id", sc.ID))
	}

	out := card.Card{
		ID:        sc.ID,
		Name:      sc.Name,
		Cost:      sc.Cost,
		Attack:    sc.Attack,
		HealValue: sc.Value,
		Effect:    sc.Effect,
		Type:      sc.CardType,
	}
	if c.assets != nil && sc.Name != "" {
		if asset, found := c.assets.Resolve(sc.Name); found {
			out.Asset = asset
		} else {
			c.logger.Debug("no asset for card", zap.String("name", sc.Name))
		}
	}
	return out, true
}

// Cards converts a batch. A nil batch yields an empty, non-nil slice; nil and
// id-less entries are dropped.
func (c *Converter) Cards(batch []*protocol.ServerCard) []card.Card {
	out := make([]card.Card, 0, len(batch))
	for _, sc := range batch {
		if converted, ok := c.Card(sc); ok {
			out = append(out, converted)
		}
	}
	return out
}
