// internal/service/item_service.go
package service

import (
	"context"
	"errors"
	"math"
	"strings"
	"time"

	"study_tracker/internal/config"
	"study_tracker/internal/middleware"
	"study_tracker/internal/model"
	"study_tracker/internal/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ItemService interface {
	PostItem(ctx context.Context, req *model.PostItemRequest) (*model.StudyItem, error)
	GetItem(ctx context.Context, itemID uuid.UUID) (*model.StudyItem, error)
	ListItems(ctx context.Context, q model.ListQuery) (*model.ListItemsResponse, error)
	PutItem(ctx context.Context, itemID uuid.UUID, req *model.PutItemRequest) (*model.StudyItem, error)
	DeleteItem(ctx context.Context, itemID uuid.UUID) error
	BulkDelete(ctx context.Context, req *model.BulkDeleteRequest) (int64, error)
}

type itemService struct {
	db          *gorm.DB // トランザクション用にDB接続を持つ
	itemRepo    repository.ItemRepository
	historyRepo repository.HistoryRepository
	keyDateRepo repository.KeyDateRepository
	deltaEngine DeltaEngine
	cfg         *config.Config
}

func NewItemService(db *gorm.DB, itemRepo repository.ItemRepository, historyRepo repository.HistoryRepository, keyDateRepo repository.KeyDateRepository, deltaEngine DeltaEngine, cfg *config.Config) ItemService {
	return &itemService{
		db:          db,
		itemRepo:    itemRepo,
		historyRepo: historyRepo,
		keyDateRepo: keyDateRepo,
		deltaEngine: deltaEngine,
		cfg:         cfg,
	}
}

func (s *itemService) PostItem(ctx context.Context, req *model.PostItemRequest) (*model.StudyItem, error) {
	logger := middleware.GetLogger(ctx)

	if strings.TrimSpace(req.Title) == "" {
		return nil, model.NewAppError("VALIDATION_ERROR", "タイトルは必須項目です。", "title", model.ErrInvalidInput)
	}
	if req.HoursSpent < 0 {
		return nil, model.NewAppError("VALIDATION_ERROR", "学習時間は0以上で入力してください。", "hours_spent", model.ErrInvalidInput)
	}

	now := time.Now().UTC()
	item := &model.StudyItem{
		ItemID:              uuid.New(),
		Title:               req.Title,
		Notes:               req.Notes,
		HoursSpent:          req.HoursSpent,
		Progress:            model.ClampProgress(req.Progress),
		TheoryConfidence:    model.ClampConfidence(req.TheoryConfidence),
		PracticalConfidence: model.ClampConfidence(req.PracticalConfidence),
		LastModified:        now,
		OperationType:       model.OperationCreated,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return s.itemRepo.Create(ctx, tx, item)
	})
	if err != nil {
		logger.Error("Transaction failed for PostItem", "error", err)
		return nil, model.ErrInternalServer
	}

	return item, nil
}

func (s *itemService) GetItem(ctx context.Context, itemID uuid.UUID) (*model.StudyItem, error) {
	item, err := s.itemRepo.FindByID(ctx, s.db, itemID)
	if err != nil {
		// エラーはリポジトリで変換済み
		return nil, err
	}
	return item, nil
}

func (s *itemService) ListItems(ctx context.Context, q model.ListQuery) (*model.ListItemsResponse, error) {
	logger := middleware.GetLogger(ctx)

	items, err := s.itemRepo.List(ctx, s.db, q)
	if err != nil {
		logger.Error("Error listing items", "error", err)
		return nil, model.ErrInternalServer
	}

	now := time.Now().UTC()

	var totalHours float64
	var progressSum int
	for _, item := range items {
		totalHours += item.HoursSpent
		progressSum += item.Progress
	}
	avgProgress := 0.0
	if len(items) > 0 {
		avgProgress = math.Round(float64(progressSum)/float64(len(items))*10) / 10
	}

	upcoming, err := s.keyDateRepo.FindUpcoming(ctx, s.db, now, s.cfg.App.UpcomingKeyDateLimit)
	if err != nil {
		logger.Error("Error finding upcoming key dates", "error", err)
		return nil, model.ErrInternalServer
	}
	upcomingResponses := make([]model.KeyDateResponse, 0, len(upcoming))
	for _, k := range upcoming {
		upcomingResponses = append(upcomingResponses, k.ToResponse(now))
	}

	if items == nil {
		items = []*model.StudyItem{}
	}
	return &model.ListItemsResponse{
		Items:            items,
		TotalItems:       len(items),
		TotalHours:       math.Round(totalHours*100) / 100,
		AvgProgress:      avgProgress,
		UpcomingKeyDates: upcomingResponses,
	}, nil
}

func (s *itemService) PutItem(ctx context.Context, itemID uuid.UUID, req *model.PutItemRequest) (*model.StudyItem, error) {
	logger := middleware.GetLogger(ctx).With("item_id", itemID.String())

	if strings.TrimSpace(req.Title) == "" {
		return nil, model.NewAppError("VALIDATION_ERROR", "タイトルは必須項目です。", "title", model.ErrInvalidInput)
	}
	if req.HoursSpent < 0 {
		return nil, model.NewAppError("VALIDATION_ERROR", "学習時間は0以上で入力してください。", "hours_spent", model.ErrInvalidInput)
	}

	now := time.Now().UTC()

	// 対象日。未指定なら今日、指定があれば遡及記録になる。
	effectiveDay := now
	if req.EffectiveDate != "" {
		parsed, err := model.ParseFlexibleDate(req.EffectiveDate)
		if err != nil {
			return nil, model.NewAppError("INVALID_DATE_FORMAT", "対象日の形式が正しくありません。", "effective_date", model.ErrInvalidInput)
		}
		effectiveDay = parsed
	}

	var updatedItem *model.StudyItem

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		item, err := s.itemRepo.FindByID(ctx, tx, itemID)
		if err != nil {
			return err // model.ErrNotFound or wrapped DB error
		}

		oldVals := item.Tracked()
		newVals := model.TrackedValues{
			HoursSpent:          req.HoursSpent,
			Progress:            model.ClampProgress(req.Progress),
			TheoryConfidence:    model.ClampConfidence(req.TheoryConfidence),
			PracticalConfidence: model.ClampConfidence(req.PracticalConfidence),
		}

		// 履歴は項目本体の更新と同一トランザクションで書く
		if err := s.deltaEngine.ApplyEdit(ctx, tx, itemID, oldVals, newVals, effectiveDay, now); err != nil {
			return err
		}

		updates := map[string]interface{}{
			"title":                req.Title,
			"notes":                req.Notes,
			"hours_spent":          newVals.HoursSpent,
			"progress":             newVals.Progress,
			"theory_confidence":    newVals.TheoryConfidence,
			"practical_confidence": newVals.PracticalConfidence,
			"last_modified":        now,
			"operation_type":       model.OperationModified,
		}
		if err := s.itemRepo.Update(ctx, tx, itemID, updates); err != nil {
			return err
		}

		updatedItem, err = s.itemRepo.FindByID(ctx, tx, itemID)
		if err != nil {
			logger.Error("Error fetching updated item in transaction", "error", err)
			return model.ErrInternalServer
		}
		return nil
	})

	if err != nil {
		var appErr *model.AppError
		if errors.Is(err, model.ErrNotFound) || errors.As(err, &appErr) {
			return nil, err
		}
		logger.Error("Transaction failed for PutItem", "error", err)
		return nil, model.ErrInternalServer
	}

	return updatedItem, nil
}

func (s *itemService) DeleteItem(ctx context.Context, itemID uuid.UUID) error {
	logger := middleware.GetLogger(ctx).With("item_id", itemID.String())

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := s.itemRepo.FindByID(ctx, tx, itemID); err != nil {
			return err
		}
		// 履歴は項目に従属するため先に削除する
		if err := s.historyRepo.DeleteByItem(ctx, tx, itemID); err != nil {
			return model.ErrInternalServer
		}
		return s.itemRepo.Delete(ctx, tx, itemID)
	})

	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return err
		}
		logger.Error("Transaction failed for DeleteItem", "error", err)
		return model.ErrInternalServer
	}
	return nil
}

func (s *itemService) BulkDelete(ctx context.Context, req *model.BulkDeleteRequest) (int64, error) {
	logger := middleware.GetLogger(ctx)

	var deleted int64

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var targetIDs []uuid.UUID

		switch req.Action {
		case "all":
			items, err := s.itemRepo.List(ctx, tx, model.ListQuery{Search: req.Search})
			if err != nil {
				return model.ErrInternalServer
			}
			for _, item := range items {
				targetIDs = append(targetIDs, item.ItemID)
			}
		case "selected":
			if len(req.ItemIDs) == 0 {
				return model.NewAppError("VALIDATION_ERROR", "削除する項目が選択されていません。", "item_ids", model.ErrInvalidInput)
			}
			targetIDs = req.ItemIDs
		default:
			return model.NewAppError("VALIDATION_ERROR", "操作種別の値が正しくありません。", "action", model.ErrInvalidInput)
		}

		if len(targetIDs) == 0 {
			return nil
		}
		if err := s.historyRepo.DeleteByItems(ctx, tx, targetIDs); err != nil {
			return model.ErrInternalServer
		}
		count, err := s.itemRepo.DeleteByIDs(ctx, tx, targetIDs)
		if err != nil {
			return model.ErrInternalServer
		}
		deleted = count
		return nil
	})

	if err != nil {
		var appErr *model.AppError
		if errors.As(err, &appErr) {
			return 0, err
		}
		logger.Error("Transaction failed for BulkDelete", "error", err)
		return 0, model.ErrInternalServer
	}

	logger.Info("Bulk delete completed", "action", req.Action, "deleted", deleted)
	return deleted, nil
}
