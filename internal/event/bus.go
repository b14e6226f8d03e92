package event

import (
	"sync"
	"time"

	"github.com/spellclash/spellclash-go/internal/card"
	"github.com/spellclash/spellclash-go/internal/state"
)

// Type is the category of a presentation event.
type Type string

const (
	// State
	StateChanged  Type = "STATE_CHANGED"
	ScreenChanged Type = "SCREEN_CHANGED"

	// Cards
	CardPlayed       Type = "CARD_PLAYED"
	RemoteCardPlayed Type = "REMOTE_CARD_PLAYED"
	CardConfirmed    Type = "CARD_CONFIRMED"
	CardDrawn        Type = "CARD_DRAWN"

	// Turn
	TurnStarted Type = "TURN_STARTED"
	TurnEnded   Type = "TURN_ENDED"

	// Commands
	CommandRejected Type = "COMMAND_REJECTED"

	// Rooms
	RoomCreated Type = "ROOM_CREATED"
	RoomJoined  Type = "ROOM_JOINED"
	RoomLeft    Type = "ROOM_LEFT"
	RoomStatus  Type = "ROOM_STATUS"

	// Connection
	Connected    Type = "CONNECTED"
	Disconnected Type = "DISCONNECTED"
	ServerError  Type = "SERVER_ERROR"

	// Game over
	GameOver      Type = "GAME_OVER"
	GameOverReset Type = "GAME_OVER_RESET"
)

// Screen is the presentation mode requested by the core.
type Screen string

const (
	ScreenLobby Screen = "LOBBY"
	ScreenGame  Screen = "GAME"
)

// Event is a notification delivered to the presentation layer.
type Event struct {
	Type      Type
	Message   string
	PlayerID  string
	RoomID    string
	Card      *card.Card
	Local     bool
	Won       bool
	Screen    Screen
	Reason    string
	Snapshot  *state.Snapshot // set on StateChanged
	Timestamp time.Time
}

// New creates an event stamped with the current time.
func New(t Type, message string) Event {
	return Event{Type: t, Message: message, Timestamp: time.Now()}
}

// WithCard returns a copy of e referring to c.
func (e Event) WithCard(c card.Card, local bool) Event {
	e.Card = &c
	e.Local = local
	return e
}

// Listener receives events.
type Listener func(Event)

// TypedListener receives events of a single type.
type TypedListener struct {
	Handle    int
	EventType Type
	Callback  func(Event)
}

// Bus fans events out to listeners synchronously.
type Bus struct {
	mu             sync.RWMutex
	listeners      map[int]Listener
	typedListeners map[Type][]TypedListener
	nextHandle     int
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{
		listeners:      make(map[int]Listener),
		typedListeners: make(map[Type][]TypedListener),
	}
}

// Subscribe registers a listener for all events and returns a handle.
func (bus *Bus) Subscribe(listener Listener) int {
	if listener == nil {
		return -1
	}
	bus.mu.Lock()
	defer bus.mu.Unlock()
	handle := bus.nextHandle
	bus.nextHandle++
	bus.listeners[handle] = listener
	return handle
}

// SubscribeTyped registers a listener for one event type.
func (bus *Bus) SubscribeTyped(eventType Type, callback func(Event)) int {
	if callback == nil {
		return -1
	}
	bus.mu.Lock()
	defer bus.mu.Unlock()
	handle := bus.nextHandle
	bus.nextHandle++
	bus.typedListeners[eventType] = append(bus.typedListeners[eventType], TypedListener{
		Handle:    handle,
		EventType: eventType,
		Callback:  callback,
	})
	return handle
}

// Unsubscribe removes the listener identified by handle.
func (bus *Bus) Unsubscribe(handle int) {
	bus.mu.Lock()
	defer bus.mu.Unlock()
	delete(bus.listeners, handle)
	for eventType, listeners := range bus.typedListeners {
		for i := len(listeners) - 1; i >= 0; i-- {
			if listeners[i].Handle == handle {
				bus.typedListeners[eventType] = append(listeners[:i], listeners[i+1:]...)
				break
			}
		}
	}
}

// Publish delivers e to every matching listener. Listeners run on the caller's
// goroutine and must not publish re-entrantly while holding their own locks.
func (bus *Bus) Publish(e Event) {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
	bus.mu.RLock()
	all := make([]Listener, 0, len(bus.listeners))
	for _, l := range bus.listeners {
		all = append(all, l)
	}
	typed := append([]TypedListener(nil), bus.typedListeners[e.Type]...)
	bus.mu.RUnlock()

	for _, l := range all {
		l(e)
	}
	for _, l := range typed {
		l.Callback(e)
	}
}
