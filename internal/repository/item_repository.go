// internal/repository/item_repository.go
package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"study_tracker/internal/middleware"
	"study_tracker/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// 一覧のソートキーのホワイトリスト。不正なキーは last_modified にフォールバックします。
var itemSortColumns = map[string]string{
	"title":                "title",
	"hours_spent":          "hours_spent",
	"progress":             "progress",
	"theory_confidence":    "theory_confidence",
	"practical_confidence": "practical_confidence",
	"last_modified":        "last_modified",
}

// ItemRepository は学習項目の永続化を担います
type ItemRepository interface {
	Create(ctx context.Context, tx *gorm.DB, item *model.StudyItem) error
	FindByID(ctx context.Context, db *gorm.DB, itemID uuid.UUID) (*model.StudyItem, error)
	List(ctx context.Context, db *gorm.DB, q model.ListQuery) ([]*model.StudyItem, error)
	Update(ctx context.Context, tx *gorm.DB, itemID uuid.UUID, updates map[string]interface{}) error
	Delete(ctx context.Context, tx *gorm.DB, itemID uuid.UUID) error
	DeleteByIDs(ctx context.Context, tx *gorm.DB, itemIDs []uuid.UUID) (int64, error)
	FindModifiedBetween(ctx context.Context, db *gorm.DB, start, end time.Time) ([]*model.StudyItem, error)
}

type gormItemRepository struct{}

func NewGormItemRepository() ItemRepository {
	return &gormItemRepository{}
}

func (r *gormItemRepository) Create(ctx context.Context, tx *gorm.DB, item *model.StudyItem) error {
	logger := middleware.GetLogger(ctx)
	result := tx.WithContext(ctx).Create(item)
	if result.Error != nil {
		logger.Error("Error creating study item in DB",
			"error", result.Error,
			"title", item.Title,
		)
		return fmt.Errorf("gormItemRepository.Create: %w", result.Error)
	}
	return nil
}

func (r *gormItemRepository) FindByID(ctx context.Context, db *gorm.DB, itemID uuid.UUID) (*model.StudyItem, error) {
	logger := middleware.GetLogger(ctx)
	var item model.StudyItem
	result := db.WithContext(ctx).Where("item_id = ?", itemID).First(&item)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, model.ErrNotFound
		}
		logger.Error("Error finding study item by ID in DB",
			"error", result.Error,
			"item_id", itemID.String(),
		)
		return nil, fmt.Errorf("gormItemRepository.FindByID: %w", result.Error)
	}
	return &item, nil
}

func (r *gormItemRepository) List(ctx context.Context, db *gorm.DB, q model.ListQuery) ([]*model.StudyItem, error) {
	logger := middleware.GetLogger(ctx)

	column, ok := itemSortColumns[q.SortBy]
	if !ok {
		column = "last_modified"
	}
	direction := "DESC"
	if strings.EqualFold(q.SortOrder, "asc") {
		direction = "ASC"
	}

	query := db.WithContext(ctx).Model(&model.StudyItem{})
	if search := strings.TrimSpace(q.Search); search != "" {
		// 大文字小文字を区別しないタイトル部分一致 (postgres/sqlite両対応)
		query = query.Where("LOWER(title) LIKE ?", "%"+strings.ToLower(search)+"%")
	}

	var items []*model.StudyItem
	result := query.Order(column + " " + direction).Find(&items)
	if result.Error != nil {
		logger.Error("Error listing study items in DB",
			"error", result.Error,
			"sort", q.SortBy,
		)
		return nil, fmt.Errorf("gormItemRepository.List: %w", result.Error)
	}
	return items, nil
}

func (r *gormItemRepository) Update(ctx context.Context, tx *gorm.DB, itemID uuid.UUID, updates map[string]interface{}) error {
	logger := middleware.GetLogger(ctx)
	if len(updates) == 0 {
		return nil
	}
	result := tx.WithContext(ctx).Model(&model.StudyItem{}).Where("item_id = ?", itemID).Updates(updates)
	if result.Error != nil {
		logger.Error("Error updating study item in DB",
			"error", result.Error,
			"item_id", itemID.String(),
		)
		return fmt.Errorf("gormItemRepository.Update: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return model.ErrNotFound
	}
	return nil
}

func (r *gormItemRepository) Delete(ctx context.Context, tx *gorm.DB, itemID uuid.UUID) error {
	logger := middleware.GetLogger(ctx)
	result := tx.WithContext(ctx).Where("item_id = ?", itemID).Delete(&model.StudyItem{})
	if result.Error != nil {
		logger.Error("Error deleting study item in DB",
			"error", result.Error,
			"item_id", itemID.String(),
		)
		return fmt.Errorf("gormItemRepository.Delete: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return model.ErrNotFound
	}
	return nil
}

func (r *gormItemRepository) DeleteByIDs(ctx context.Context, tx *gorm.DB, itemIDs []uuid.UUID) (int64, error) {
	logger := middleware.GetLogger(ctx)
	if len(itemIDs) == 0 {
		return 0, nil
	}
	result := tx.WithContext(ctx).Where("item_id IN ?", itemIDs).Delete(&model.StudyItem{})
	if result.Error != nil {
		logger.Error("Error deleting selected study items in DB",
			"error", result.Error,
			"count", len(itemIDs),
		)
		return 0, fmt.Errorf("gormItemRepository.DeleteByIDs: %w", result.Error)
	}
	return result.RowsAffected, nil
}

func (r *gormItemRepository) FindModifiedBetween(ctx context.Context, db *gorm.DB, start, end time.Time) ([]*model.StudyItem, error) {
	logger := middleware.GetLogger(ctx)
	var items []*model.StudyItem
	result := db.WithContext(ctx).
		Where("last_modified >= ? AND last_modified < ?", start, end).
		Order("last_modified DESC").
		Find(&items)
	if result.Error != nil {
		logger.Error("Error finding items by modification range in DB",
			"error", result.Error,
		)
		return nil, fmt.Errorf("gormItemRepository.FindModifiedBetween: %w", result.Error)
	}
	return items, nil
}
