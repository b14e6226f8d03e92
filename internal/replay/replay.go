// Package replay keeps a journal of session snapshots and stores it on disk
package replay

import (
	"compress/gzip"
	"encoding/gob"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/spellclash/spellclash-go/internal/state"
)

const fileVersion = 1

// FileExt is the extension of saved journals
const FileExt = ".journal"

// Replay holds the ordered snapshots of one session
type Replay struct {
	SessionID string
	Mode      state.Mode
	States    []state.Snapshot

	mu     sync.RWMutex
	cursor int
}

// NewReplay creates an empty replay
func NewReplay(sessionID string, mode state.Mode) *Replay {
	return &Replay{SessionID: sessionID, Mode: mode}
}

// Record appends a snapshot
func (r *Replay) Record(snap state.Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.States = append(r.States, snap)
}

// Start resets the replay to the beginning
func (r *Replay) Start() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cursor = 0
}

// Next returns the snapshot at the cursor and advances it
func (r *Replay) Next() (state.Snapshot, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cursor >= len(r.States) {
		return state.Snapshot{}, false
	}
	s := r.States[r.cursor]
	r.cursor++
	return s, true
}

// Previous moves to the previous snapshot and returns it
func (r *Replay) Previous() (state.Snapshot, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cursor == 0 {
		return state.Snapshot{}, false
	}
	r.cursor--
	return r.States[r.cursor], true
}

// Skip moves the cursor by count, clamped to the recorded range
func (r *Replay) Skip(count int) (state.Snapshot, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.States) == 0 {
		return state.Snapshot{}, false
	}
	next := r.cursor + count
	if next >= len(r.States) {
		next = len(r.States) - 1
	}
	if next < 0 {
		next = 0
	}
	r.cursor = next
	return r.States[next], true
}

// Size returns the number of recorded snapshots
func (r *Replay) Size() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.States)
}

// Position returns the cursor
func (r *Replay) Position() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.cursor
}

// At returns the snapshot at index without moving the cursor
func (r *Replay) At(index int) (state.Snapshot, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if index < 0 || index >= len(r.States) {
		return state.Snapshot{}, false
	}
	return r.States[index], true
}

func (r *Replay) last() (state.Snapshot, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if len(r.States) == 0 {
		return state.Snapshot{}, false
	}
	return r.States[len(r.States)-1], true
}

type header struct {
	SessionID  string
	Mode       state.Mode
	Timestamp  time.Time
	Version    int
	StateCount int
}

// Path returns the file a replay of sessionID is stored in
func Path(directory, sessionID string) string {
	return filepath.Join(directory, sessionID+FileExt)
}

// SaveToFile saves the replay to directory as a gzipped gob stream
func (r *Replay) SaveToFile(directory string) (err error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if err := os.MkdirAll(directory, 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	file, err := os.Create(Path(directory, r.SessionID))
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	zw := gzip.NewWriter(file)
	defer func() {
		err = multierr.Combine(err, zw.Close(), file.Close())
	}()

	enc := gob.NewEncoder(zw)
	h := header{
		SessionID:  r.SessionID,
		Mode:       r.Mode,
		Timestamp:  time.Now(),
		Version:    fileVersion,
		StateCount: len(r.States),
	}
	if err := enc.Encode(&h); err != nil {
		return fmt.Errorf("failed to encode header: %w", err)
	}
	for i := range r.States {
		if err := enc.Encode(&r.States[i]); err != nil {
			return fmt.Errorf("failed to encode state %d: %w", i, err)
		}
	}
	return nil
}

// LoadFromFile loads a replay saved by SaveToFile
func LoadFromFile(directory, sessionID string) (*Replay, error) {
	file, err := os.Open(Path(directory, sessionID))
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	zr, err := gzip.NewReader(file)
	if err != nil {
		return nil, fmt.Errorf("failed to create gzip reader: %w", err)
	}
	defer zr.Close()

	dec := gob.NewDecoder(zr)
	var h header
	if err := dec.Decode(&h); err != nil {
		return nil, fmt.Errorf("failed to decode header: %w", err)
	}
	if h.Version != fileVersion {
		return nil, fmt.Errorf("unsupported journal version: %d", h.Version)
	}

	r := NewReplay(h.SessionID, h.Mode)
	r.States = make([]state.Snapshot, 0, h.StateCount)
	for i := 0; i < h.StateCount; i++ {
		var s state.Snapshot
		if err := dec.Decode(&s); err != nil {
			return nil, fmt.Errorf("failed to decode state %d: %w", i, err)
		}
		r.States = append(r.States, s)
	}
	return r, nil
}

// Journal records the snapshots of consecutive sessions
// A change of session epoch closes the running replay, saves it and starts a new one
type Journal struct {
	logger  *zap.Logger
	saveDir string
	newID   func() string

	mu      sync.Mutex
	current *Replay
	epoch   uint64
	saved   []string
}

// NewJournal creates a journal writing to saveDir
func NewJournal(saveDir string, logger *zap.Logger) *Journal {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Journal{logger: logger, saveDir: saveDir, newID: uuid.NewString}
}

// Record appends snap to the replay of its session
// Snapshots identical to the previous one are skipped
func (j *Journal) Record(snap state.Snapshot) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	var err error
	if j.current != nil && snap.Epoch != j.epoch {
		err = j.flushLocked()
	}
	if j.current == nil {
		j.current = NewReplay(j.newID(), snap.Mode)
		j.epoch = snap.Epoch
		j.logger.Info("started session journal",
			zap.String("session_id", j.current.SessionID),
			zap.Stringer("mode", snap.Mode),
		)
	}
	if last, ok := j.current.last(); ok && reflect.DeepEqual(last, snap) {
		return err
	}
	j.current.Mode = snap.Mode
	j.current.Record(snap)
	return err
}

// Current returns the replay being recorded, if any
func (j *Journal) Current() (*Replay, bool) {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.current, j.current != nil
}

// Saved lists the session ids written so far
func (j *Journal) Saved() []string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]string(nil), j.saved...)
}

// Load loads a saved session from the journal directory
func (j *Journal) Load(sessionID string) (*Replay, error) {
	r, err := LoadFromFile(j.saveDir, sessionID)
	if err != nil {
		return nil, err
	}
	j.logger.Info("loaded session journal",
		zap.String("session_id", sessionID),
		zap.Int("state_count", r.Size()),
	)
	return r, nil
}

// Close saves the running replay
func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.current == nil {
		return nil
	}
	return j.flushLocked()
}

func (j *Journal) flushLocked() error {
	r := j.current
	j.current = nil
	if r.Size() == 0 {
		return nil
	}
	if err := r.SaveToFile(j.saveDir); err != nil {
		return fmt.Errorf("failed to save journal %s: %w", r.SessionID, err)
	}
	j.saved = append(j.saved, r.SessionID)
	j.logger.Info("saved session journal",
		zap.String("session_id", r.SessionID),
		zap.Int("state_count", r.Size()),
		zap.String("directory", j.saveDir),
	)
	return nil
}

// ErrNoJournal is returned by Latest when nothing has been saved
var ErrNoJournal = errors.New("no saved journal")

// Latest loads the most recently saved session, falling back to the newest
// file in the journal directory when this journal has not saved anything yet
func (j *Journal) Latest() (*Replay, error) {
	saved := j.Saved()
	if len(saved) > 0 {
		return j.Load(saved[len(saved)-1])
	}
	id, err := j.newestOnDisk()
	if err != nil {
		return nil, err
	}
	return j.Load(id)
}

func (j *Journal) newestOnDisk() (string, error) {
	entries, err := os.ReadDir(j.saveDir)
	if errors.Is(err, fs.ErrNotExist) {
		return "", ErrNoJournal
	}
	if err != nil {
		return "", fmt.Errorf("failed to list journals: %w", err)
	}
	var (
		newest   string
		newestAt time.Time
	)
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, FileExt) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if newest == "" || info.ModTime().After(newestAt) {
			newest, newestAt = strings.TrimSuffix(name, FileExt), info.ModTime()
		}
	}
	if newest == "" {
		return "", ErrNoJournal
	}
	return newest, nil
}
