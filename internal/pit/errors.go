package pit

import (
	"errors"
	"fmt"
)

// ErrRejected marks a guard violation. Callers stay silent toward the user
// for these; everything else is a real failure.
var ErrRejected = errors.New("rejected")

var (
	ErrWrongPhase           = fmt.Errorf("%w: wrong phase", ErrRejected)
	ErrNotForged            = fmt.Errorf("%w: no character forged", ErrRejected)
	ErrStakeTooLow          = fmt.Errorf("%w: stake below minimum", ErrRejected)
	ErrInsufficientFunds    = fmt.Errorf("%w: insufficient funds", ErrRejected)
	ErrAlreadyEntered       = fmt.Errorf("%w: already entered", ErrRejected)
	ErrAlreadyBet           = fmt.Errorf("%w: already placed a bet", ErrRejected)
	ErrPitFull              = fmt.Errorf("%w: pit is full", ErrRejected)
	ErrUnknownTarget        = fmt.Errorf("%w: unknown bet target", ErrRejected)
	ErrParticipantCannotBet = fmt.Errorf("%w: participants cannot bet", ErrRejected)
	ErrNoParticipants       = fmt.Errorf("%w: no participants", ErrRejected)
	ErrNoCharacters         = fmt.Errorf("%w: no characters forged", ErrRejected)
	ErrAlreadyForged        = fmt.Errorf("%w: character already forged", ErrRejected)
	ErrInvalidUpgrade       = fmt.Errorf("%w: invalid upgrade", ErrRejected)
)

// IsRejected reports whether err is a guard violation.
func IsRejected(err error) bool {
	return errors.Is(err, ErrRejected)
}
