// internal/repository/history_repository.go
package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"study_tracker/internal/middleware"
	"study_tracker/internal/model"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// HistoryRepository は変更履歴レコードの永続化を担います。
// (item_id, day) の一意性はユニーク複合インデックスで保証されます。
type HistoryRepository interface {
	Create(ctx context.Context, tx *gorm.DB, rec *model.HistoryRecord) error
	UpdateDelta(ctx context.Context, tx *gorm.DB, historyID uuid.UUID, delta model.Delta) error
	FindByItemAndDay(ctx context.Context, db *gorm.DB, itemID uuid.UUID, day time.Time) (*model.HistoryRecord, error)
	FindByItem(ctx context.Context, db *gorm.DB, itemID uuid.UUID) ([]*model.HistoryRecord, error)
	FindByDay(ctx context.Context, db *gorm.DB, day time.Time) ([]*model.HistoryRecord, error)
	FindInRange(ctx context.Context, db *gorm.DB, start, end time.Time) ([]*model.HistoryRecord, error)
	FindLatestByItem(ctx context.Context, db *gorm.DB, itemID uuid.UUID) (*model.HistoryRecord, error)
	DeleteByItem(ctx context.Context, tx *gorm.DB, itemID uuid.UUID) error
	DeleteByItems(ctx context.Context, tx *gorm.DB, itemIDs []uuid.UUID) error
}

type gormHistoryRepository struct{}

func NewGormHistoryRepository() HistoryRepository {
	return &gormHistoryRepository{}
}

func (r *gormHistoryRepository) Create(ctx context.Context, tx *gorm.DB, rec *model.HistoryRecord) error {
	logger := middleware.GetLogger(ctx)
	result := tx.WithContext(ctx).Create(rec)
	if result.Error != nil {
		logger.Error("Error creating history record in DB",
			"error", result.Error,
			"item_id", rec.ItemID.String(),
			"day", rec.Day.Format(model.DateLayout),
		)
		return fmt.Errorf("gormHistoryRepository.Create: %w", result.Error)
	}
	return nil
}

// UpdateDelta は delta のみを更新します。previous_values は作成後不変です。
func (r *gormHistoryRepository) UpdateDelta(ctx context.Context, tx *gorm.DB, historyID uuid.UUID, delta model.Delta) error {
	logger := middleware.GetLogger(ctx)
	result := tx.WithContext(ctx).Model(&model.HistoryRecord{}).
		Where("history_id = ?", historyID).
		Updates(map[string]interface{}{"delta": datatypes.NewJSONType(delta), "updated_at": time.Now().UTC()})
	if result.Error != nil {
		logger.Error("Error updating history delta in DB",
			"error", result.Error,
			"history_id", historyID.String(),
		)
		return fmt.Errorf("gormHistoryRepository.UpdateDelta: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return model.ErrNotFound
	}
	return nil
}

func (r *gormHistoryRepository) FindByItemAndDay(ctx context.Context, db *gorm.DB, itemID uuid.UUID, day time.Time) (*model.HistoryRecord, error) {
	logger := middleware.GetLogger(ctx)
	var rec model.HistoryRecord
	result := db.WithContext(ctx).Where("item_id = ? AND day = ?", itemID, model.DayOf(day)).First(&rec)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, model.ErrNotFound
		}
		logger.Error("Error finding history record by item and day in DB",
			"error", result.Error,
			"item_id", itemID.String(),
		)
		return nil, fmt.Errorf("gormHistoryRepository.FindByItemAndDay: %w", result.Error)
	}
	return &rec, nil
}

func (r *gormHistoryRepository) FindByItem(ctx context.Context, db *gorm.DB, itemID uuid.UUID) ([]*model.HistoryRecord, error) {
	logger := middleware.GetLogger(ctx)
	var recs []*model.HistoryRecord
	result := db.WithContext(ctx).Where("item_id = ?", itemID).Order("day ASC").Find(&recs)
	if result.Error != nil {
		logger.Error("Error finding history records by item in DB",
			"error", result.Error,
			"item_id", itemID.String(),
		)
		return nil, fmt.Errorf("gormHistoryRepository.FindByItem: %w", result.Error)
	}
	return recs, nil
}

func (r *gormHistoryRepository) FindByDay(ctx context.Context, db *gorm.DB, day time.Time) ([]*model.HistoryRecord, error) {
	logger := middleware.GetLogger(ctx)
	var recs []*model.HistoryRecord
	result := db.WithContext(ctx).Where("day = ?", model.DayOf(day)).Find(&recs)
	if result.Error != nil {
		logger.Error("Error finding history records by day in DB",
			"error", result.Error,
		)
		return nil, fmt.Errorf("gormHistoryRepository.FindByDay: %w", result.Error)
	}
	return recs, nil
}

func (r *gormHistoryRepository) FindInRange(ctx context.Context, db *gorm.DB, start, end time.Time) ([]*model.HistoryRecord, error) {
	logger := middleware.GetLogger(ctx)
	var recs []*model.HistoryRecord
	result := db.WithContext(ctx).
		Where("day >= ? AND day <= ?", model.DayOf(start), model.DayOf(end)).
		Order("day ASC").
		Find(&recs)
	if result.Error != nil {
		logger.Error("Error finding history records in range in DB",
			"error", result.Error,
		)
		return nil, fmt.Errorf("gormHistoryRepository.FindInRange: %w", result.Error)
	}
	return recs, nil
}

// FindLatestByItem は項目の最も新しい日付の履歴レコードを返します。
// 履歴が1件もない場合は model.ErrNotFound を返します。
func (r *gormHistoryRepository) FindLatestByItem(ctx context.Context, db *gorm.DB, itemID uuid.UUID) (*model.HistoryRecord, error) {
	logger := middleware.GetLogger(ctx)
	var rec model.HistoryRecord
	result := db.WithContext(ctx).Where("item_id = ?", itemID).Order("day DESC").First(&rec)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, model.ErrNotFound
		}
		logger.Error("Error finding latest history record in DB",
			"error", result.Error,
			"item_id", itemID.String(),
		)
		return nil, fmt.Errorf("gormHistoryRepository.FindLatestByItem: %w", result.Error)
	}
	return &rec, nil
}

func (r *gormHistoryRepository) DeleteByItem(ctx context.Context, tx *gorm.DB, itemID uuid.UUID) error {
	logger := middleware.GetLogger(ctx)
	result := tx.WithContext(ctx).Where("item_id = ?", itemID).Delete(&model.HistoryRecord{})
	if result.Error != nil {
		logger.Error("Error deleting history records by item in DB",
			"error", result.Error,
			"item_id", itemID.String(),
		)
		return fmt.Errorf("gormHistoryRepository.DeleteByItem: %w", result.Error)
	}
	return nil
}

func (r *gormHistoryRepository) DeleteByItems(ctx context.Context, tx *gorm.DB, itemIDs []uuid.UUID) error {
	logger := middleware.GetLogger(ctx)
	if len(itemIDs) == 0 {
		return nil
	}
	result := tx.WithContext(ctx).Where("item_id IN ?", itemIDs).Delete(&model.HistoryRecord{})
	if result.Error != nil {
		logger.Error("Error deleting history records for items in DB",
			"error", result.Error,
			"count", len(itemIDs),
		)
		return fmt.Errorf("gormHistoryRepository.DeleteByItems: %w", result.Error)
	}
	return nil
}
