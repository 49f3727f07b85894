// File: internal/repository/user_repository.go
package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/iyunix/go-relaychat/internal/domain"
)

type gormUserRepository struct {
	db     *gorm.DB
	logger Logger
}

func NewUserRepository(db *gorm.DB, logger Logger) UserRepository {
	return &gormUserRepository{db: db, logger: logger}
}

// Create inserts one user row. An existing id is an error, never an update.
func (r *gormUserRepository) Create(ctx context.Context, row *domain.UserRow) error {
	if row.ID == 0 {
		return fmt.Errorf("invalid user id")
	}
	result := r.db.WithContext(ctx).Create(row)
	if result.Error != nil {
		r.logger.Error("[UserRepository] create failed", "id", row.ID, "error", result.Error)
		return fmt.Errorf("database error creating user %d: %w", row.ID, result.Error)
	}
	if result.RowsAffected != 1 {
		r.logger.Error("[UserRepository] create affected unexpected row count", "id", row.ID, "rows", result.RowsAffected)
		return fmt.Errorf("user %d: %w", row.ID, ErrNotSaved)
	}
	return nil
}

// FindAll returns every user by creation time.
func (r *gormUserRepository) FindAll(ctx context.Context) ([]domain.UserRow, error) {
	var rows []domain.UserRow
	if err := r.db.WithContext(ctx).Order("creation ASC, id ASC").Find(&rows).Error; err != nil {
		r.logger.Error("[UserRepository] find all failed", "error", err)
		return nil, fmt.Errorf("database error fetching users: %w", err)
	}
	return rows, nil
}
