package coordinator

import (
	"errors"
	"fmt"

	"github.com/wfunc/matchgame/network"
)

// Kind classifies client-facing failures.
type Kind string

const (
	KindInvalidRoomCode    Kind = "InvalidRoomCode"
	KindRoomNotFound       Kind = "RoomNotFound"
	KindRoomFull           Kind = "RoomFull"
	KindNotInRoom          Kind = "NotInRoom"
	KindNotHost            Kind = "NotHost"
	KindReverseAlreadyUsed Kind = "ReverseAlreadyUsed"
	KindMalformedCommand   Kind = "MalformedCommand"

	// KindInvalidState is an addition to the protocol's error set. It covers
	// commands the room's phase forbids: submit_number outside a round, and
	// reverse or reset while the room still waits for its second player.
	KindInvalidState Kind = "InvalidState"

	// KindInternal never reaches clients with details.
	KindInternal Kind = "Internal"
)

// CommandError is reported to the issuing connection only. It never closes
// the connection.
type CommandError struct {
	Kind    Kind
	Message string
}

func (e *CommandError) Error() string { return e.Message }

// Is matches any CommandError of the same kind, so the sentinels below work
// with errors.Is regardless of message.
func (e *CommandError) Is(target error) bool {
	t, ok := target.(*CommandError)
	return ok && t.Kind == e.Kind
}

var (
	ErrInvalidRoomCode    = &CommandError{KindInvalidRoomCode, "Invalid room code"}
	ErrRoomNotFound       = &CommandError{KindRoomNotFound, "Room not found"}
	ErrRoomFull           = &CommandError{KindRoomFull, "Room is full"}
	ErrNotInRoom          = &CommandError{KindNotInRoom, "Not in a room"}
	ErrNotHost            = &CommandError{KindNotHost, "Only the host can do that"}
	ErrReverseAlreadyUsed = &CommandError{KindReverseAlreadyUsed, "Reverse already used"}
	ErrMalformedCommand   = &CommandError{KindMalformedCommand, "Invalid message"}
	ErrInvalidState       = &CommandError{KindInvalidState, "Not allowed in the current game state"}
)

func newError(kind Kind, format string, args ...any) *CommandError {
	return &CommandError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// KindOf returns the kind of a CommandError, or KindInternal for anything else.
func KindOf(err error) Kind {
	var ce *CommandError
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return KindInternal
}

// decodeError maps protocol decoding failures onto the client taxonomy.
func decodeError(err error) error {
	if errors.Is(err, network.ErrInvalidRoomCode) {
		return ErrInvalidRoomCode
	}
	return ErrMalformedCommand
}
