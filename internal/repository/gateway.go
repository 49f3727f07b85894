// File: internal/repository/gateway.go
package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/iyunix/go-relaychat/internal/chat"
	"github.com/iyunix/go-relaychat/internal/domain"
)

var _ chat.PersistenceGateway = (*Gateway)(nil)

// Gateway stores chat entities in a SQL database through GORM.
type Gateway struct {
	users         UserRepository
	conversations ConversationRepository
	messages      MessageRepository
	logger        Logger
}

func NewGateway(db *gorm.DB, logger Logger) *Gateway {
	return &Gateway{
		users:         NewUserRepository(db, logger),
		conversations: NewConversationRepository(db, logger),
		messages:      NewMessageRepository(db, logger),
		logger:        logger,
	}
}

// Migrate creates the users, conversations and messages tables if missing.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&domain.UserRow{}, &domain.ConversationRow{}, &domain.MessageRow{}); err != nil {
		return fmt.Errorf("create tables: %w", err)
	}
	return nil
}

func (g *Gateway) SaveUser(ctx context.Context, user domain.User) error {
	row := user.Row()
	return g.users.Create(ctx, &row)
}

func (g *Gateway) SaveConversation(ctx context.Context, conversation domain.Conversation) error {
	row := conversation.Row()
	return g.conversations.Create(ctx, &row)
}

func (g *Gateway) SaveMessage(ctx context.Context, message domain.Message, conversation domain.ID) error {
	row := message.Row(conversation)
	return g.messages.Create(ctx, &row)
}

func (g *Gateway) LoadAll(ctx context.Context) (*domain.Snapshot, error) {
	users, err := g.users.FindAll(ctx)
	if err != nil {
		return nil, err
	}
	conversations, err := g.conversations.FindAll(ctx)
	if err != nil {
		return nil, err
	}
	messages, err := g.messages.FindAll(ctx)
	if err != nil {
		return nil, err
	}
	g.logger.Debug("[Repository] loaded rows", "users", len(users), "conversations", len(conversations), "messages", len(messages))
	return &domain.Snapshot{Users: users, Conversations: conversations, Messages: messages}, nil
}
