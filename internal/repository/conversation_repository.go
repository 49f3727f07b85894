// File: internal/repository/conversation_repository.go
package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/iyunix/go-relaychat/internal/domain"
)

type conversationRepository struct {
	db     *gorm.DB
	logger Logger
}

func NewConversationRepository(db *gorm.DB, logger Logger) ConversationRepository {
	return &conversationRepository{db: db, logger: logger}
}

func (r *conversationRepository) Create(ctx context.Context, row *domain.ConversationRow) error {
	if row.ID == 0 || row.Owner == 0 {
		return fmt.Errorf("invalid conversation row (id=%d owner=%d)", row.ID, row.Owner)
	}
	result := r.db.WithContext(ctx).Create(row)
	if result.Error != nil {
		r.logger.Error("[ConversationRepository] create failed", "id", row.ID, "owner", row.Owner, "error", result.Error)
		return fmt.Errorf("database error creating conversation %d: %w", row.ID, result.Error)
	}
	if result.RowsAffected != 1 {
		r.logger.Error("[ConversationRepository] create affected unexpected row count", "id", row.ID, "rows", result.RowsAffected)
		return fmt.Errorf("conversation %d: %w", row.ID, ErrNotSaved)
	}
	return nil
}

func (r *conversationRepository) FindAll(ctx context.Context) ([]domain.ConversationRow, error) {
	var rows []domain.ConversationRow
	if err := r.db.WithContext(ctx).Order("creation ASC, id ASC").Find(&rows).Error; err != nil {
		r.logger.Error("[ConversationRepository] find all failed", "error", err)
		return nil, fmt.Errorf("database error fetching conversations: %w", err)
	}
	return rows, nil
}
