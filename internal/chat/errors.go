// File: internal/chat/errors.go
package chat

import (
	"errors"
	"fmt"

	"github.com/iyunix/go-relaychat/internal/domain"
)

type ErrorKind string

const (
	ErrKindInvalidID         ErrorKind = "INVALID_ID"
	ErrKindIdentityCollision ErrorKind = "IDENTITY_COLLISION"
	ErrKindUnknownReference  ErrorKind = "UNKNOWN_REFERENCE"
	ErrKindPersistence       ErrorKind = "PERSISTENCE"
	ErrKindIDExhausted       ErrorKind = "ID_EXHAUSTED"
	ErrKindOrdering          ErrorKind = "ORDERING"
)

var (
	ErrNullID              = errors.New("id is null")
	ErrIDInUse             = errors.New("id already in use")
	ErrUnknownUser         = errors.New("user not found")
	ErrUnknownConversation = errors.New("conversation not found")
	ErrPersistence         = errors.New("save to store failed")
	ErrIDSpaceExhausted    = errors.New("id generator kept producing ids in use")
	ErrForeignScope        = errors.New("id belongs to another server scope")
	ErrLocalOutOfRange     = errors.New("id local value exceeds storage range")
	ErrMessageOutOfOrder   = errors.New("message does not sort after the conversation's last message")
)

// Error describes why a creation was refused. It matches its sentinel and its
// cause with errors.Is.
type Error struct {
	Kind      ErrorKind
	Operation string
	ID        domain.ID
	Err       error
	Cause     error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("chat %s error in %s (id=%s): %v (caused by: %v)",
			e.Kind, e.Operation, e.ID, e.Err, e.Cause)
	}
	return fmt.Sprintf("chat %s error in %s (id=%s): %v", e.Kind, e.Operation, e.ID, e.Err)
}

func (e *Error) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Err}
	}
	return []error{e.Err, e.Cause}
}

func newError(kind ErrorKind, op string, id domain.ID, sentinel, cause error) *Error {
	return &Error{Kind: kind, Operation: op, ID: id, Err: sentinel, Cause: cause}
}

// reason is the metrics label for err.
func reason(err error) string {
	var ce *Error
	if errors.As(err, &ce) {
		switch ce.Kind {
		case ErrKindInvalidID:
			return "invalid_id"
		case ErrKindIdentityCollision:
			return "identity_collision"
		case ErrKindUnknownReference:
			return "unknown_reference"
		case ErrKindPersistence:
			return "persistence"
		case ErrKindIDExhausted:
			return "id_exhausted"
		case ErrKindOrdering:
			return "ordering"
		}
	}
	return "unknown"
}
