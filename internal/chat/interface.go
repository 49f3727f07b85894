// File: internal/chat/interface.go
package chat

import (
	"context"

	"github.com/iyunix/go-relaychat/internal/domain"
)

// PersistenceGateway is the only storage contract the chat core depends on.
// Each save performs exactly one durable write and returns nil only when
// exactly one row was written.
type PersistenceGateway interface {
	SaveUser(ctx context.Context, user domain.User) error
	SaveConversation(ctx context.Context, conversation domain.Conversation) error
	SaveMessage(ctx context.Context, message domain.Message, conversation domain.ID) error

	// LoadAll returns every persisted row. Messages must come back in
	// ascending creation order; bootstrap rebuilds chains in one forward pass.
	LoadAll(ctx context.Context) (*domain.Snapshot, error)
}

// Logger is the logging capability handed to the controller and the loader.
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
	Debug(msg string, keysAndValues ...interface{})
	Warn(msg string, keysAndValues ...interface{})
}
