// internal/model/history.go
package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// 差分追跡対象のフィールド名 (タイトル・メモは対象外)
const (
	FieldHoursSpent          = "hours_spent"
	FieldProgress            = "progress"
	FieldTheoryConfidence    = "theory_confidence"
	FieldPracticalConfidence = "practical_confidence"
)

// TrackedValues は差分追跡対象4フィールドのスナップショットです
type TrackedValues struct {
	HoursSpent          float64 `json:"hours_spent"`
	Progress            int     `json:"progress"`
	TheoryConfidence    int     `json:"theory_confidence"`
	PracticalConfidence int     `json:"practical_confidence"`
}

// FieldChange は1フィールドの変更前後の値です。
// hours_spent が実数のため、JSON上は全フィールドを float64 で統一します。
type FieldChange struct {
	Old float64 `json:"old"`
	New float64 `json:"new"`
}

// Delta はフィールド名 → 変更前後ペアのマッピングです
type Delta map[string]FieldChange

// DiffTracked は old と new を比較し、変化したフィールドのみの Delta を返します。
// 変化がなければ空のマップを返します。
func DiffTracked(old, new TrackedValues) Delta {
	delta := make(Delta)
	if old.HoursSpent != new.HoursSpent {
		delta[FieldHoursSpent] = FieldChange{Old: old.HoursSpent, New: new.HoursSpent}
	}
	if old.Progress != new.Progress {
		delta[FieldProgress] = FieldChange{Old: float64(old.Progress), New: float64(new.Progress)}
	}
	if old.TheoryConfidence != new.TheoryConfidence {
		delta[FieldTheoryConfidence] = FieldChange{Old: float64(old.TheoryConfidence), New: float64(new.TheoryConfidence)}
	}
	if old.PracticalConfidence != new.PracticalConfidence {
		delta[FieldPracticalConfidence] = FieldChange{Old: float64(old.PracticalConfidence), New: float64(new.PracticalConfidence)}
	}
	return delta
}

// HistoryRecord は1項目・1日の変更サマリを表します。
// (item_id, day) で一意。PreviousValues はその日の最初の編集時点のスナップショットで、
// 作成後は変更されません。同日2回目以降の編集では Delta のみが再計算されます。
type HistoryRecord struct {
	HistoryID      uuid.UUID                         `gorm:"type:uuid;primaryKey" json:"history_id"`
	ItemID         uuid.UUID                         `gorm:"type:uuid;not null;index:idx_item_day,unique" json:"item_id"`
	Day            time.Time                         `gorm:"type:date;not null;index:idx_item_day,unique" json:"-"`
	Delta          datatypes.JSONType[Delta]         `json:"delta"`
	PreviousValues datatypes.JSONType[TrackedValues] `json:"previous_values"`
	CreatedAt      time.Time                         `json:"created_at"`
	UpdatedAt      time.Time                         `json:"updated_at"`

	// 関連 (Preload用)
	Item *StudyItem `gorm:"foreignKey:ItemID;references:ItemID" json:"-"`
}

func (HistoryRecord) TableName() string {
	return "history_records"
}

// Retrospective は作成日時の日付が対象日より後 (＝後日の遡及記録) かどうかを返します
func (h *HistoryRecord) Retrospective() bool {
	created := DayOf(h.CreatedAt)
	return created.After(h.Day)
}

// HistoryRecordResponse は履歴レコードのレスポンスDTOです
type HistoryRecordResponse struct {
	HistoryID      uuid.UUID     `json:"history_id"`
	ItemID         uuid.UUID     `json:"item_id"`
	Day            string        `json:"day"` // YYYY-MM-DD
	Delta          Delta         `json:"delta"`
	PreviousValues TrackedValues `json:"previous_values"`
	Retrospective  bool          `json:"retrospective"`
	CreatedAt      time.Time     `json:"created_at"`
	UpdatedAt      time.Time     `json:"updated_at"`
}

func (h *HistoryRecord) ToResponse() HistoryRecordResponse {
	return HistoryRecordResponse{
		HistoryID:      h.HistoryID,
		ItemID:         h.ItemID,
		Day:            h.Day.Format(DateLayout),
		Delta:          h.Delta.Data(),
		PreviousValues: h.PreviousValues.Data(),
		Retrospective:  h.Retrospective(),
		CreatedAt:      h.CreatedAt,
		UpdatedAt:      h.UpdatedAt,
	}
}

// SeriesPoint はチャート用の1日分の計測値です
type SeriesPoint struct {
	Day                 string  `json:"day"` // YYYY-MM-DD
	HoursSpent          float64 `json:"hours_spent"`
	Progress            int     `json:"progress"`
	TheoryConfidence    int     `json:"theory_confidence"`
	PracticalConfidence int     `json:"practical_confidence"`
}
