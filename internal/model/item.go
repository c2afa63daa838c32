// internal/model/item.go
package model

import (
	"time"

	"github.com/google/uuid"
)

// OperationType は学習項目への最後の操作種別です
type OperationType string

const (
	OperationCreated  OperationType = "created"
	OperationModified OperationType = "modified"
)

// 進捗・自信度のクランプ範囲
const (
	ProgressMin   = 0
	ProgressMax   = 100
	ConfidenceMin = 0
	ConfidenceMax = 5
)

// StudyItem は学習項目を表します
type StudyItem struct {
	ItemID              uuid.UUID     `gorm:"type:uuid;primaryKey" json:"item_id"`
	Title               string        `gorm:"not null" json:"title"`
	Notes               string        `json:"notes"`
	HoursSpent          float64       `gorm:"not null;default:0" json:"hours_spent"`
	Progress            int           `gorm:"not null;default:0" json:"progress"`             // 0〜100
	TheoryConfidence    int           `gorm:"not null;default:0" json:"theory_confidence"`    // 0〜5
	PracticalConfidence int           `gorm:"not null;default:0" json:"practical_confidence"` // 0〜5
	LastModified        time.Time     `gorm:"not null;index" json:"last_modified"`
	OperationType       OperationType `gorm:"not null;default:created" json:"operation_type"`
	CreatedAt           time.Time     `json:"created_at"`

	// 関連 (項目の削除で履歴も削除される)
	HistoryRecords []HistoryRecord `gorm:"foreignKey:ItemID;references:ItemID;constraint:OnDelete:CASCADE" json:"-"`
}

func (StudyItem) TableName() string {
	return "study_items"
}

// Tracked は差分追跡対象の4フィールドのスナップショットを返します
func (i *StudyItem) Tracked() TrackedValues {
	return TrackedValues{
		HoursSpent:          i.HoursSpent,
		Progress:            i.Progress,
		TheoryConfidence:    i.TheoryConfidence,
		PracticalConfidence: i.PracticalConfidence,
	}
}

// ClampProgress は進捗を 0〜100 に丸めます
func ClampProgress(v int) int {
	if v < ProgressMin {
		return ProgressMin
	}
	if v > ProgressMax {
		return ProgressMax
	}
	return v
}

// ClampConfidence は自信度を 0〜5 に丸めます
func ClampConfidence(v int) int {
	if v < ConfidenceMin {
		return ConfidenceMin
	}
	if v > ConfidenceMax {
		return ConfidenceMax
	}
	return v
}

// 項目作成リクエストDTO
type PostItemRequest struct {
	Title               string  `json:"title" validate:"required,min=1,max=200"`
	Notes               string  `json:"notes" validate:"omitempty"`
	HoursSpent          float64 `json:"hours_spent" validate:"omitempty,min=0"`
	Progress            int     `json:"progress"`
	TheoryConfidence    int     `json:"theory_confidence"`
	PracticalConfidence int     `json:"practical_confidence"`
}

// 項目更新リクエストDTO。EffectiveDate を指定すると履歴がその日付に遡及して記録されます。
type PutItemRequest struct {
	Title               string  `json:"title" validate:"required,min=1,max=200"`
	Notes               string  `json:"notes" validate:"omitempty"`
	HoursSpent          float64 `json:"hours_spent" validate:"omitempty,min=0"`
	Progress            int     `json:"progress"`
	TheoryConfidence    int     `json:"theory_confidence"`
	PracticalConfidence int     `json:"practical_confidence"`
	EffectiveDate       string  `json:"effective_date,omitempty" validate:"omitempty"`
}

// 一括削除リクエストDTO
type BulkDeleteRequest struct {
	Action  string      `json:"action" validate:"required,oneof=all selected"`
	ItemIDs []uuid.UUID `json:"item_ids,omitempty"`
	Search  string      `json:"search,omitempty"`
}

// 一覧取得時のソート・検索条件 (リクエストスコープで明示的に渡す)
type ListQuery struct {
	SortBy    string
	SortOrder string
	Search    string
}

// ListItemsResponse は一覧と集計値をまとめて返します
type ListItemsResponse struct {
	Items            []*StudyItem      `json:"items"`
	TotalItems       int               `json:"total_items"`
	TotalHours       float64           `json:"total_hours"`
	AvgProgress      float64           `json:"avg_progress"`
	UpcomingKeyDates []KeyDateResponse `json:"upcoming_key_dates"`
}

// BulkDeleteResponse は削除件数を返します
type BulkDeleteResponse struct {
	DeletedCount int64 `json:"deleted_count"`
}
