// internal/repository/keydate_repository.go
package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"study_tracker/internal/middleware"
	"study_tracker/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// KeyDateRepository は重要日付の永続化を担います
type KeyDateRepository interface {
	Create(ctx context.Context, tx *gorm.DB, keyDate *model.KeyDate) error
	FindByID(ctx context.Context, db *gorm.DB, keyDateID uuid.UUID) (*model.KeyDate, error)
	FindAll(ctx context.Context, db *gorm.DB) ([]*model.KeyDate, error)
	FindByDate(ctx context.Context, db *gorm.DB, date time.Time) (*model.KeyDate, error)
	FindUpcoming(ctx context.Context, db *gorm.DB, from time.Time, limit int) ([]*model.KeyDate, error)
	Update(ctx context.Context, tx *gorm.DB, keyDateID uuid.UUID, updates map[string]interface{}) error
	Delete(ctx context.Context, tx *gorm.DB, keyDateID uuid.UUID) error
}

type gormKeyDateRepository struct{}

func NewGormKeyDateRepository() KeyDateRepository {
	return &gormKeyDateRepository{}
}

func (r *gormKeyDateRepository) Create(ctx context.Context, tx *gorm.DB, keyDate *model.KeyDate) error {
	logger := middleware.GetLogger(ctx)
	result := tx.WithContext(ctx).Create(keyDate)
	if result.Error != nil {
		logger.Error("Error creating key date in DB",
			"error", result.Error,
			"name", keyDate.Name,
		)
		return fmt.Errorf("gormKeyDateRepository.Create: %w", result.Error)
	}
	return nil
}

func (r *gormKeyDateRepository) FindByID(ctx context.Context, db *gorm.DB, keyDateID uuid.UUID) (*model.KeyDate, error) {
	logger := middleware.GetLogger(ctx)
	var keyDate model.KeyDate
	result := db.WithContext(ctx).Where("key_date_id = ?", keyDateID).First(&keyDate)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, model.ErrNotFound
		}
		logger.Error("Error finding key date by ID in DB",
			"error", result.Error,
			"key_date_id", keyDateID.String(),
		)
		return nil, fmt.Errorf("gormKeyDateRepository.FindByID: %w", result.Error)
	}
	return &keyDate, nil
}

func (r *gormKeyDateRepository) FindAll(ctx context.Context, db *gorm.DB) ([]*model.KeyDate, error) {
	logger := middleware.GetLogger(ctx)
	var keyDates []*model.KeyDate
	result := db.WithContext(ctx).Order("date ASC").Find(&keyDates)
	if result.Error != nil {
		logger.Error("Error finding all key dates in DB", "error", result.Error)
		return nil, fmt.Errorf("gormKeyDateRepository.FindAll: %w", result.Error)
	}
	return keyDates, nil
}

func (r *gormKeyDateRepository) FindByDate(ctx context.Context, db *gorm.DB, date time.Time) (*model.KeyDate, error) {
	logger := middleware.GetLogger(ctx)
	var keyDate model.KeyDate
	result := db.WithContext(ctx).Where("date = ?", model.DayOf(date)).First(&keyDate)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, model.ErrNotFound
		}
		logger.Error("Error finding key date by date in DB", "error", result.Error)
		return nil, fmt.Errorf("gormKeyDateRepository.FindByDate: %w", result.Error)
	}
	return &keyDate, nil
}

func (r *gormKeyDateRepository) FindUpcoming(ctx context.Context, db *gorm.DB, from time.Time, limit int) ([]*model.KeyDate, error) {
	logger := middleware.GetLogger(ctx)
	var keyDates []*model.KeyDate
	result := db.WithContext(ctx).
		Where("date >= ?", model.DayOf(from)).
		Order("date ASC").
		Limit(limit).
		Find(&keyDates)
	if result.Error != nil {
		logger.Error("Error finding upcoming key dates in DB", "error", result.Error)
		return nil, fmt.Errorf("gormKeyDateRepository.FindUpcoming: %w", result.Error)
	}
	return keyDates, nil
}

func (r *gormKeyDateRepository) Update(ctx context.Context, tx *gorm.DB, keyDateID uuid.UUID, updates map[string]interface{}) error {
	logger := middleware.GetLogger(ctx)
	if len(updates) == 0 {
		return nil
	}
	result := tx.WithContext(ctx).Model(&model.KeyDate{}).Where("key_date_id = ?", keyDateID).Updates(updates)
	if result.Error != nil {
		logger.Error("Error updating key date in DB",
			"error", result.Error,
			"key_date_id", keyDateID.String(),
		)
		return fmt.Errorf("gormKeyDateRepository.Update: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return model.ErrNotFound
	}
	return nil
}

func (r *gormKeyDateRepository) Delete(ctx context.Context, tx *gorm.DB, keyDateID uuid.UUID) error {
	logger := middleware.GetLogger(ctx)
	result := tx.WithContext(ctx).Where("key_date_id = ?", keyDateID).Delete(&model.KeyDate{})
	if result.Error != nil {
		logger.Error("Error deleting key date in DB",
			"error", result.Error,
			"key_date_id", keyDateID.String(),
		)
		return fmt.Errorf("gormKeyDateRepository.Delete: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return model.ErrNotFound
	}
	return nil
}
