package protocol

// ServerCard is a card as the server describes it.
type ServerCard struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Cost     int    `json:"cost"`
	Attack   int    `json:"attack"`
	Value    int    `json:"value"`
	Effect   string `json:"effect"`
	CardType string `json:"cardType"`
}

// ServerGameState is pushed with gameStart and gameStateUpdate. Pointer and
// slice fields are nil when the server omitted them; an empty list is present.
type ServerGameState struct {
	PlayerID      string        `json:"playerId,omitempty"`
	MaxHealth     *int          `json:"maxHealth,omitempty"`
	PlayerHealth  *int          `json:"playerHealth,omitempty"`
	PlayerMana    *int          `json:"playerMana,omitempty"`
	PlayerMaxMana *int          `json:"playerMaxMana,omitempty"`
	PlayerHand    []*ServerCard `json:"playerHand"`
	PlayerField   []*ServerCard `json:"playerField"`

	AIHealth    *int          `json:"aiHealth,omitempty"`
	AIMana      *int          `json:"aiMana,omitempty"`
	AIMaxMana   *int          `json:"aiMaxMana,omitempty"`
	AIHandCount *int          `json:"aiHandCount,omitempty"`
	AIField     []*ServerCard `json:"aiField"`

	OpponentState *ServerPlayerState `json:"opponentState,omitempty"`

	IsPlayerTurn *bool  `json:"isPlayerTurn,omitempty"`
	GameOver     bool   `json:"gameOver"`
	Winner       string `json:"winner,omitempty"`
	GameStarted  *bool  `json:"gameStarted,omitempty"`
}

// ServerPlayerState is one seat of a room.
type ServerPlayerState struct {
	PlayerID   string        `json:"playerId"`
	PlayerName string        `json:"playerName,omitempty"`
	Health     int           `json:"health"`
	MaxHealth  int           `json:"maxHealth,omitempty"`
	Mana       int           `json:"mana"`
	MaxMana    int           `json:"maxMana"`
	Hand       []*ServerCard `json:"hand"`
	HandCount  int           `json:"handCount"`
	DeckSize   int           `json:"deckSize"`
	Field      []*ServerCard `json:"field"`
}

// ServerRoomState is pushed with roomUpdate, tailored to the receiving player.
type ServerRoomState struct {
	RoomID          string             `json:"roomId"`
	Players         map[string]string  `json:"players,omitempty"`
	GameStarted     bool               `json:"gameStarted"`
	GameOver        bool               `json:"gameOver"`
	WinnerID        string             `json:"winnerId,omitempty"`
	CurrentPlayerID string             `json:"currentPlayerId,omitempty"`
	Message         string             `json:"message,omitempty"`
	Self            *ServerPlayerState `json:"self,omitempty"`
	Opponent        *ServerPlayerState `json:"opponent,omitempty"`
}

// AIAction reports a move made by the server AI.
type AIAction struct {
	ActionType string      `json:"actionType"`
	Card       *ServerCard `json:"card,omitempty"`
}

// OpponentPlayCard reports a card played by the other room player.
type OpponentPlayCard struct {
	Card       *ServerCard `json:"card,omitempty"`
	PlayerName string      `json:"playerName,omitempty"`
}

// PlayerActionResult confirms or refuses the local player's action.
type PlayerActionResult struct {
	Action  string `json:"action"`
	Success bool   `json:"success"`
	CardID  string `json:"cardId,omitempty"`
	Message string `json:"message,omitempty"`
}

// RoomResponse covers roomCreated, roomJoined, leftRoom and error. Room and
// player ids ride on the envelope; details may also appear in data.
type RoomResponse struct {
	Kind       MessageType
	RoomID     string
	PlayerID   string
	PlayerName string
	Message    string
}

// roomResponseData is the optional data object of room responses.
type roomResponseData struct {
	Message    string `json:"message,omitempty"`
	PlayerName string `json:"playerName,omitempty"`
}

// IntPtr and BoolPtr help build partial states.
func IntPtr(v int) *int { return &v }

func BoolPtr(v bool) *bool { return &v }
