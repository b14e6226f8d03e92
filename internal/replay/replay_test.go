package replay

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/spellclash/spellclash-go/internal/card"
	"github.com/spellclash/spellclash-go/internal/state"
)

func snapAt(epoch uint64, health int) state.Snapshot {
	return state.Snapshot{
		Mode:           state.ModeOfflineSolo,
		PlayerHealth:   health,
		OpponentHealth: 30,
		PlayerHand:     []card.Card{{ID: "c1", Name: "Spark", Cost: 1, Attack: 2, Effect: "Deal 2 damage"}},
		Players:        map[string]string{"p1": "alice"},
		Epoch:          epoch,
	}
}

func TestReplayNavigation(t *testing.T) {
	r := NewReplay("s-1", state.ModeOfflineSolo)
	for i := 1; i <= 5; i++ {
		r.Record(snapAt(1, i))
	}
	require.Equal(t, 5, r.Size())

	s, ok := r.Next()
	require.True(t, ok)
	assert.Equal(t, 1, s.PlayerHealth)
	s, _ = r.Next()
	assert.Equal(t, 2, s.PlayerHealth)

	s, ok = r.Previous()
	require.True(t, ok)
	assert.Equal(t, 2, s.PlayerHealth)
	s, _ = r.Previous()
	assert.Equal(t, 1, s.PlayerHealth)
	_, ok = r.Previous()
	assert.False(t, ok)

	s, _ = r.Skip(10)
	assert.Equal(t, 5, s.PlayerHealth)
	s, _ = r.Skip(-10)
	assert.Equal(t, 1, s.PlayerHealth)

	_, ok = r.At(7)
	assert.False(t, ok)

	r.Start()
	for i := 1; i <= 5; i++ {
		s, ok := r.Next()
		if !ok || s.PlayerHealth != i {
			t.Fatalf("step %d: got health %d ok=%v", i, s.PlayerHealth, ok)
		}
	}
	_, ok = r.Next()
	assert.False(t, ok)
}

func TestSkipOnEmptyReplay(t *testing.T) {
	_, ok := NewReplay("empty", state.ModeOnlineRoom).Skip(1)
	assert.False(t, ok)
}

func TestSaveAndLoad(t *testing.T) {
	dir := t.TempDir()
	r := NewReplay("s-2", state.ModeOnlineRoom)
	r.Record(snapAt(3, 30))
	r.Record(snapAt(3, 24))
	require.NoError(t, r.SaveToFile(dir))

	loaded, err := LoadFromFile(dir, "s-2")
	require.NoError(t, err)
	assert.Equal(t, "s-2", loaded.SessionID)
	assert.Equal(t, state.ModeOnlineRoom, loaded.Mode)
	require.Equal(t, 2, loaded.Size())

	s, _ := loaded.At(1)
	assert.Equal(t, 24, s.PlayerHealth)
	assert.Equal(t, uint64(3), s.Epoch)
	require.Len(t, s.PlayerHand, 1)
	assert.Equal(t, "Spark", s.PlayerHand[0].Name)
	assert.Equal(t, "alice", s.Players["p1"])
}

func TestLoadMissingOrCorrupt(t *testing.T) {
	dir := t.TempDir()
	_, err := LoadFromFile(dir, "nope")
	assert.Error(t, err)

	require.NoError(t, os.WriteFile(Path(dir, "bad"), []byte("plain text"), 0o644))
	_, err = LoadFromFile(dir, "bad")
	assert.Error(t, err)
}

func TestJournalSplitsSessionsByEpoch(t *testing.T) {
	dir := t.TempDir()
	j := NewJournal(dir, zaptest.NewLogger(t))
	n := 0
	j.newID = func() string {
		n++
		return fmt.Sprintf("session-%d", n)
	}

	require.NoError(t, j.Record(snapAt(1, 30)))
	require.NoError(t, j.Record(snapAt(1, 30)))
	require.NoError(t, j.Record(snapAt(1, 27)))
	cur, ok := j.Current()
	require.True(t, ok)
	assert.Equal(t, 2, cur.Size(), "identical snapshots are recorded once")
	assert.Empty(t, j.Saved())

	require.NoError(t, j.Record(snapAt(2, 30)))
	assert.Equal(t, []string{"session-1"}, j.Saved())

	require.NoError(t, j.Close())
	assert.Equal(t, []string{"session-1", "session-2"}, j.Saved())
	_, ok = j.Current()
	assert.False(t, ok)

	latest, err := j.Latest()
	require.NoError(t, err)
	assert.Equal(t, "session-2", latest.SessionID)
	assert.Equal(t, 1, latest.Size())

	first, err := j.Load("session-1")
	require.NoError(t, err)
	assert.Equal(t, 2, first.Size())
}

func TestJournalCloseWithoutStates(t *testing.T) {
	j := NewJournal(t.TempDir(), nil)
	assert.NoError(t, j.Close())
	_, err := j.Latest()
	assert.ErrorIs(t, err, ErrNoJournal)
}

func TestJournalLatestFindsEarlierRunsOnDisk(t *testing.T) {
	dir := t.TempDir()
	earlier := NewJournal(dir, nil)
	earlier.newID = func() string { return "earlier-run" }
	require.NoError(t, earlier.Record(snapAt(1, 30)))
	require.NoError(t, earlier.Record(snapAt(1, 22)))
	require.NoError(t, earlier.Close())

	j := NewJournal(dir, zaptest.NewLogger(t))
	assert.Empty(t, j.Saved())
	latest, err := j.Latest()
	require.NoError(t, err)
	assert.Equal(t, "earlier-run", latest.SessionID)
	assert.Equal(t, 2, latest.Size())
}

func TestJournalLatestMissingDirectory(t *testing.T) {
	j := NewJournal(filepath.Join(t.TempDir(), "absent"), nil)
	_, err := j.Latest()
	assert.ErrorIs(t, err, ErrNoJournal)
}
