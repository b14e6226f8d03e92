package convert

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/spellclash/spellclash-go/internal/protocol"
)

func TestCardsDropsUnusableEntries(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	conv := NewConverter(AssetMap{"Fireball #1": "fireball.png"}, zap.New(core))

	out := conv.Cards([]*protocol.ServerCard{
		{ID: "a", Name: "Fireball #1", Cost: 2, Attack: 3, Effect: "Deal 3 damage", CardType: "Spell"},
		nil,
		{ID: "", Name: "Ghost"},
		{ID: "b", Name: "", Value: 2, Effect: "Heal 2 health"},
	})

	require.Len(t, out, 2)
	assert.Equal(t, "a", out[0].ID)
	assert.Equal(t, "fireball.png", out[0].Asset)
	assert.Equal(t, 3, out[0].Attack)
	assert.Equal(t, "Spell", out[0].Type)
	assert.Equal(t, "b", out[1].ID)
	assert.Equal(t, 2, out[1].HealValue)

	assert.Equal(t, 1, logs.FilterMessage("dropping server card without id").Len())
	assert.Equal(t, 1, logs.FilterMessage("server card has no name").Len())
}

func TestCardsNilBatch(t *testing.T) {
	conv := NewConverter(nil, nil)
	out := conv.Cards(nil)
	assert.NotNil(t, out)
	assert.Empty(t, out)
}

func TestCardMissingAsset(t *testing.T) {
	conv := NewConverter(AssetMap{}, nil)
	c, ok := conv.Card(&protocol.ServerCard{ID: "z", Name: "Frost Shield #4"})
	require.True(t, ok)
	assert.Empty(t, c.Asset)
}
