// internal/service/keydate_service.go
package service

import (
	"context"
	"errors"
	"strings"

	"study_tracker/internal/middleware"
	"study_tracker/internal/model"
	"study_tracker/internal/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type KeyDateService interface {
	PostKeyDate(ctx context.Context, req *model.PostKeyDateRequest) (*model.KeyDate, error)
	ListKeyDates(ctx context.Context) ([]*model.KeyDate, error)
	PutKeyDate(ctx context.Context, keyDateID uuid.UUID, req *model.PutKeyDateRequest) (*model.KeyDate, error)
	DeleteKeyDate(ctx context.Context, keyDateID uuid.UUID) error
}

type keyDateService struct {
	db          *gorm.DB
	keyDateRepo repository.KeyDateRepository
}

func NewKeyDateService(db *gorm.DB, keyDateRepo repository.KeyDateRepository) KeyDateService {
	return &keyDateService{
		db:          db,
		keyDateRepo: keyDateRepo,
	}
}

func (s *keyDateService) PostKeyDate(ctx context.Context, req *model.PostKeyDateRequest) (*model.KeyDate, error) {
	logger := middleware.GetLogger(ctx)

	if strings.TrimSpace(req.Name) == "" || strings.TrimSpace(req.Date) == "" {
		return nil, model.NewAppError("VALIDATION_ERROR", "名前と日付は必須項目です。", "", model.ErrInvalidInput)
	}
	date, err := model.ParseFlexibleDate(req.Date)
	if err != nil {
		return nil, model.NewAppError("INVALID_DATE_FORMAT", "日付の形式が正しくありません。", "date", model.ErrInvalidInput)
	}

	keyDate := &model.KeyDate{
		KeyDateID: uuid.New(),
		Name:      req.Name,
		Date:      date,
		Notes:     req.Notes,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return s.keyDateRepo.Create(ctx, tx, keyDate)
	})
	if err != nil {
		logger.Error("Transaction failed for PostKeyDate", "error", err)
		return nil, model.ErrInternalServer
	}

	return keyDate, nil
}

func (s *keyDateService) ListKeyDates(ctx context.Context) ([]*model.KeyDate, error) {
	logger := middleware.GetLogger(ctx)

	keyDates, err := s.keyDateRepo.FindAll(ctx, s.db)
	if err != nil {
		logger.Error("Error listing key dates", "error", err)
		return nil, model.ErrInternalServer
	}
	return keyDates, nil
}

func (s *keyDateService) PutKeyDate(ctx context.Context, keyDateID uuid.UUID, req *model.PutKeyDateRequest) (*model.KeyDate, error) {
	logger := middleware.GetLogger(ctx).With("key_date_id", keyDateID.String())

	if strings.TrimSpace(req.Name) == "" || strings.TrimSpace(req.Date) == "" {
		return nil, model.NewAppError("VALIDATION_ERROR", "名前と日付は必須項目です。", "", model.ErrInvalidInput)
	}
	date, err := model.ParseFlexibleDate(req.Date)
	if err != nil {
		return nil, model.NewAppError("INVALID_DATE_FORMAT", "日付の形式が正しくありません。", "date", model.ErrInvalidInput)
	}

	var updated *model.KeyDate

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := s.keyDateRepo.FindByID(ctx, tx, keyDateID); err != nil {
			return err
		}
		updates := map[string]interface{}{
			"name":  req.Name,
			"date":  date,
			"notes": req.Notes,
		}
		if err := s.keyDateRepo.Update(ctx, tx, keyDateID, updates); err != nil {
			return err
		}
		updated, err = s.keyDateRepo.FindByID(ctx, tx, keyDateID)
		return err
	})

	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return nil, err
		}
		logger.Error("Transaction failed for PutKeyDate", "error", err)
		return nil, model.ErrInternalServer
	}

	return updated, nil
}

func (s *keyDateService) DeleteKeyDate(ctx context.Context, keyDateID uuid.UUID) error {
	logger := middleware.GetLogger(ctx).With("key_date_id", keyDateID.String())

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return s.keyDateRepo.Delete(ctx, tx, keyDateID)
	})
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return err
		}
		logger.Error("Transaction failed for DeleteKeyDate", "error", err)
		return model.ErrInternalServer
	}
	return nil
}
