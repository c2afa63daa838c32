// internal/service/delta_engine.go
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"study_tracker/internal/middleware"
	"study_tracker/internal/model"
	"study_tracker/internal/repository"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// DeltaEngine は項目編集時の差分を計算し、(項目, 対象日) ごとに1件の履歴レコードを
// 作成または更新します。呼び出し元のトランザクション内で実行されることを前提とします。
type DeltaEngine interface {
	ApplyEdit(ctx context.Context, tx *gorm.DB, itemID uuid.UUID, oldVals, newVals model.TrackedValues, effectiveDay, now time.Time) error
}

type deltaEngine struct {
	historyRepo repository.HistoryRepository
}

func NewDeltaEngine(historyRepo repository.HistoryRepository) DeltaEngine {
	return &deltaEngine{historyRepo: historyRepo}
}

// ApplyEdit は編集前後の追跡対象値から差分を求め、履歴レコードに反映します。
//
//   - 差分が空なら何も書き込みません。
//   - 対象日が未来、またはより新しい日付の履歴が既に存在する場合は失敗し、履歴は変更されません。
//   - 対象日のレコードが無ければ previous_values に編集前の値を保存して新規作成します。
//   - 既にあれば、レコード作成時の previous_values (不変) と最新値を比較して delta のみを
//     再計算します。同日のN回の編集は「その日の元の値 → 最新値」の1レコードに畳み込まれます。
func (e *deltaEngine) ApplyEdit(ctx context.Context, tx *gorm.DB, itemID uuid.UUID, oldVals, newVals model.TrackedValues, effectiveDay, now time.Time) error {
	logger := middleware.GetLogger(ctx).With("item_id", itemID.String())

	rawDelta := model.DiffTracked(oldVals, newVals)
	if len(rawDelta) == 0 {
		return nil
	}

	day := model.DayOf(effectiveDay)
	today := model.DayOf(now)

	if day.After(today) {
		return model.NewAppError(
			"EFFECTIVE_DATE_IN_FUTURE",
			"対象日に未来の日付は指定できません。",
			"effective_date",
			model.ErrInvalidInput,
		)
	}

	// 遡及の単調性チェック: より新しい日付の履歴が既にあると、それより前には挿入できない
	latest, err := e.historyRepo.FindLatestByItem(ctx, tx, itemID)
	if err != nil && !errors.Is(err, model.ErrNotFound) {
		logger.Error("Failed to find latest history record", "error", err)
		return model.ErrInternalServer
	}
	if latest != nil && latest.Day.After(day) {
		return model.NewAppError(
			"HISTORY_ORDERING_CONFLICT",
			fmt.Sprintf("%s の履歴が既に存在するため、それより前の日付には記録できません。", latest.Day.Format(model.DateLayout)),
			"effective_date",
			model.ErrOrderingConflict,
		)
	}

	existing, err := e.historyRepo.FindByItemAndDay(ctx, tx, itemID, day)
	if err != nil && !errors.Is(err, model.ErrNotFound) {
		logger.Error("Failed to find history record for day", "error", err)
		return model.ErrInternalServer
	}

	if existing == nil {
		rec := &model.HistoryRecord{
			HistoryID:      uuid.New(),
			ItemID:         itemID,
			Day:            day,
			Delta:          datatypes.NewJSONType(rawDelta),
			PreviousValues: datatypes.NewJSONType(oldVals),
		}
		if err := e.historyRepo.Create(ctx, tx, rec); err != nil {
			logger.Error("Failed to create history record", "error", err)
			return model.ErrInternalServer
		}
		logger.Info("History record created",
			"day", day.Format(model.DateLayout),
			"changed_fields", len(rawDelta),
		)
		return nil
	}

	// 同日2回目以降の編集: その日の最初のスナップショットと最新値を比較する
	amended := model.DiffTracked(existing.PreviousValues.Data(), newVals)
	if err := e.historyRepo.UpdateDelta(ctx, tx, existing.HistoryID, amended); err != nil {
		logger.Error("Failed to amend history record", "error", err)
		return model.ErrInternalServer
	}
	logger.Info("History record amended",
		"day", day.Format(model.DateLayout),
		"changed_fields", len(amended),
	)
	return nil
}
