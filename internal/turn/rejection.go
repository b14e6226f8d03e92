package turn

import (
	"errors"
	"fmt"
)

// Reason classifies a rejected command.
type Reason int

const (
	ReasonNotYourTurn Reason = iota
	ReasonInsufficientMana
	ReasonCardNotInHand
	ReasonGameFrozen
	ReasonNotConnected
	ReasonInvalidRoom
	ReasonNotInRoom
	ReasonWrongMode
)

func (r Reason) String() string {
	switch r {
	case ReasonNotYourTurn:
		return "NOT_YOUR_TURN"
	case ReasonInsufficientMana:
		return "INSUFFICIENT_MANA"
	case ReasonCardNotInHand:
		return "CARD_NOT_IN_HAND"
	case ReasonGameFrozen:
		return "GAME_FROZEN"
	case ReasonNotConnected:
		return "NOT_CONNECTED"
	case ReasonInvalidRoom:
		return "INVALID_ROOM"
	case ReasonNotInRoom:
		return "NOT_IN_ROOM"
	case ReasonWrongMode:
		return "WRONG_MODE"
	default:
		return "UNKNOWN"
	}
}

// Rejection is returned when a command is refused. A rejected command never
// mutates session state.
type Rejection struct {
	Reason Reason
	Detail string
}

func (r *Rejection) Error() string {
	if r.Detail == "" {
		return fmt.Sprintf("command rejected: %s", r.Reason)
	}
	return fmt.Sprintf("command rejected: %s: %s", r.Reason, r.Detail)
}

// Reject builds a Rejection.
func Reject(reason Reason, format string, args ...any) *Rejection {
	return &Rejection{Reason: reason, Detail: fmt.Sprintf(format, args...)}
}

// AsRejection unwraps err into a Rejection.
func AsRejection(err error) (*Rejection, bool) {
	var r *Rejection
	if errors.As(err, &r) {
		return r, true
	}
	return nil, false
}

// IsReason reports whether err is a Rejection for reason.
func IsReason(err error, reason Reason) bool {
	r, ok := AsRejection(err)
	return ok && r.Reason == reason
}
