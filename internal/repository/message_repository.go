// File: internal/repository/message_repository.go
package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/iyunix/go-relaychat/internal/domain"
)

type messageRepository struct {
	db     *gorm.DB
	logger Logger
}

func NewMessageRepository(db *gorm.DB, logger Logger) MessageRepository {
	return &messageRepository{db: db, logger: logger}
}

func (r *messageRepository) Create(ctx context.Context, row *domain.MessageRow) error {
	if row.ID == 0 || row.Author == 0 || row.Conversation == 0 {
		return fmt.Errorf("invalid message row (id=%d author=%d conversation=%d)", row.ID, row.Author, row.Conversation)
	}
	result := r.db.WithContext(ctx).Create(row)
	if result.Error != nil {
		// Content stays out of the log.
		r.logger.Error("[MessageRepository] create failed", "id", row.ID, "conversation", row.Conversation, "error", result.Error)
		return fmt.Errorf("database error creating message %d: %w", row.ID, result.Error)
	}
	if result.RowsAffected != 1 {
		r.logger.Error("[MessageRepository] create affected unexpected row count", "id", row.ID, "rows", result.RowsAffected)
		return fmt.Errorf("message %d: %w", row.ID, ErrNotSaved)
	}
	return nil
}

func (r *messageRepository) FindAll(ctx context.Context) ([]domain.MessageRow, error) {
	var rows []domain.MessageRow
	if err := r.db.WithContext(ctx).Order("creation ASC, id ASC").Find(&rows).Error; err != nil {
		r.logger.Error("[MessageRepository] find all failed", "error", err)
		return nil, fmt.Errorf("database error fetching messages: %w", err)
	}
	return rows, nil
}
