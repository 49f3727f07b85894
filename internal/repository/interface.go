// File: internal/repository/interface.go
package repository

import (
	"context"
	"errors"

	"github.com/iyunix/go-relaychat/internal/domain"
)

// ErrNotSaved is returned when a write did not affect exactly one row.
var ErrNotSaved = errors.New("row not saved")

// UserRepository handles user rows.
type UserRepository interface {
	Create(ctx context.Context, row *domain.UserRow) error
	FindAll(ctx context.Context) ([]domain.UserRow, error)
}

// ConversationRepository handles conversation rows.
type ConversationRepository interface {
	Create(ctx context.Context, row *domain.ConversationRow) error
	FindAll(ctx context.Context) ([]domain.ConversationRow, error)
}

// MessageRepository handles message rows.
type MessageRepository interface {
	Create(ctx context.Context, row *domain.MessageRow) error
	// FindAll returns rows by ascending creation, then id.
	FindAll(ctx context.Context) ([]domain.MessageRow, error)
}

// Logger is what the repositories log through.
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
	Debug(msg string, keysAndValues ...interface{})
	Warn(msg string, keysAndValues ...interface{})
}
